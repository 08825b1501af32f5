package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dumpit/dumpit/internal/config"
	"github.com/dumpit/dumpit/internal/file"
	"github.com/dumpit/dumpit/internal/logger"
	"github.com/dumpit/dumpit/internal/server"
	"github.com/dumpit/dumpit/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logg, err := logger.Init()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()

	cfg, err := config.Load()
	if err != nil {
		logg.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Dependencies{
		Config: cfg,
		Logger: logg,
	}

	// Backend selection happens exactly once here. Each store is a single
	// process-wide resource, reused by every request and released on shutdown.
	var blobs file.BlobStore
	switch cfg.Storage.Backend {
	case config.StorageS3:
		minioClient, err := storage.NewMinIOClient(cfg.Storage.S3)
		if err != nil {
			logg.Fatal("connect s3", zap.Error(err))
		}
		if err := storage.EnsureBucket(ctx, minioClient, cfg.Storage.S3.Bucket, cfg.Storage.S3.Region); err != nil {
			logg.Fatal("ensure bucket", zap.Error(err))
		}
		blobs = file.NewS3Store(minioClient, cfg.Storage.S3.Bucket, cfg.Storage.S3.PresignTTL)
		deps.Checks = append(deps.Checks, server.ReadinessCheck{
			Component: "s3",
			Check: func(ctx context.Context) error {
				_, err := minioClient.ListBuckets(ctx)
				return err
			},
		})
	default:
		localStore, err := file.NewLocalStore(cfg.Storage.Local.Dir, cfg.Storage.Local.PublicBase)
		if err != nil {
			logg.Fatal("init local storage", zap.Error(err))
		}
		blobs = localStore
		deps.UploadsDir = localStore.Dir()
	}

	var meta file.MetadataStore
	switch cfg.Database.Backend {
	case config.DatabaseMongo:
		mongoClient, err := storage.NewMongoClient(ctx, cfg.Database.Mongo)
		if err != nil {
			logg.Fatal("connect mongo", zap.Error(err))
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logg.Error("disconnect mongo", zap.Error(err))
			}
		}()

		mongoStore := file.NewMongoStore(mongoClient.Database(cfg.Database.Mongo.Database))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			logg.Fatal("ensure mongo indexes", zap.Error(err))
		}
		meta = mongoStore
		deps.Checks = append(deps.Checks, server.ReadinessCheck{
			Component: "mongo",
			Check: func(ctx context.Context) error {
				return mongoClient.Ping(ctx, nil)
			},
		})
	default:
		dbPool, err := storage.NewPostgresPool(ctx, cfg.Database.Postgres)
		if err != nil {
			logg.Fatal("connect postgres", zap.Error(err))
		}
		defer dbPool.Close()

		pgStore := file.NewPostgresStore(dbPool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logg.Fatal("ensure postgres schema", zap.Error(err))
		}
		meta = pgStore
		deps.Checks = append(deps.Checks, server.ReadinessCheck{
			Component: "postgres",
			Check:     dbPool.Ping,
		})
	}

	deps.FileService = file.NewService(blobs, meta, logg)

	router := server.NewRouter(deps)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("dumpit API listening",
			zap.String("address", cfg.Server.Address()),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("database", cfg.Database.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logg.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}
}
