package file

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const filesCollection = "files"

// MongoStore keeps file records as documents in a single collection. Record
// ids are ObjectID hex strings.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore builds a store on top of the shared client's database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(filesCollection)}
}

// EnsureIndexes creates the pin and upload date access paths. Called once
// at startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pin", Value: 1}}},
		{Keys: bson.D{{Key: "upload_date", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure files indexes: %w", err)
	}
	return nil
}

type fileDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	OriginalName string             `bson:"original_name"`
	StorageKey   string             `bson:"storage_key"`
	Size         int64              `bson:"size"`
	Mimetype     string             `bson:"mimetype"`
	UploadDate   time.Time          `bson:"upload_date"`
	Pin          *string            `bson:"pin"`
}

func (d fileDoc) record() Record {
	return Record{
		ID:           d.ID.Hex(),
		OriginalName: d.OriginalName,
		StorageKey:   d.StorageKey,
		Size:         d.Size,
		Mimetype:     d.Mimetype,
		UploadDate:   d.UploadDate,
		Pin:          PinFromPtr(d.Pin),
	}
}

// Persist inserts a record and returns it with the assigned ObjectID.
func (s *MongoStore) Persist(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	doc := fileDoc{
		OriginalName: rec.OriginalName,
		StorageKey:   rec.StorageKey,
		Size:         rec.Size,
		Mimetype:     rec.Mimetype,
		UploadDate:   rec.UploadDate,
		Pin:          rec.Pin.StringPtr(),
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return Record{}, fmt.Errorf("%w: insert file document: %v", ErrPersistenceWrite, err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return Record{}, fmt.Errorf("%w: unexpected inserted id type %T", ErrPersistenceWrite, res.InsertedID)
	}

	doc.ID = id
	return doc.record(), nil
}

// QueryByPin returns records scoped to pin in the contract ordering.
func (s *MongoStore) QueryByPin(ctx context.Context, pin string, opts ListOptions) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	cursor, err := s.coll.Find(ctx, bson.M{"pin": pin}, options.Find().SetSort(sortSpec(opts)))
	if err != nil {
		return nil, fmt.Errorf("%w: query by pin: %v", ErrPersistenceQuery, err)
	}

	return decodeRecords(ctx, cursor)
}

// QueryUnassigned returns anonymous records, newest first.
func (s *MongoStore) QueryUnassigned(ctx context.Context) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	sort := bson.D{{Key: "upload_date", Value: -1}, {Key: "_id", Value: 1}}
	cursor, err := s.coll.Find(ctx, bson.M{"pin": nil}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("%w: query unassigned: %v", ErrPersistenceQuery, err)
	}

	return decodeRecords(ctx, cursor)
}

// ReassignPin sets pin on every matching id and returns the post-update
// snapshot. Ids that are not valid ObjectID hex or do not exist are skipped.
// Count is MatchedCount, not ModifiedCount: re-setting an identical pin must
// still count, the same as the relational backend's RowsAffected.
func (s *MongoStore) ReassignPin(ctx context.Context, pin string, ids []string) (AssignResult, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	objectIDs := parseObjectIDs(ids)
	if len(objectIDs) == 0 {
		return AssignResult{Records: []Record{}}, nil
	}

	filter := bson.M{"_id": bson.M{"$in": objectIDs}}

	res, err := s.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"pin": pin}})
	if err != nil {
		return AssignResult{}, fmt.Errorf("%w: reassign pin: %v", ErrPersistenceWrite, err)
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return AssignResult{}, fmt.Errorf("%w: load reassigned records: %v", ErrPersistenceQuery, err)
	}

	records, err := decodeRecords(ctx, cursor)
	if err != nil {
		return AssignResult{}, err
	}

	return AssignResult{Count: res.MatchedCount, Records: records}, nil
}

// sortSpec maps the sort contract to a Mongo sort document; always suffixed
// with _id ascending so ties order identically to the relational backend.
func sortSpec(opts ListOptions) bson.D {
	dir := -1
	if opts.Order == OrderAsc {
		dir = 1
	}

	var key string
	switch opts.Field {
	case SortByType:
		key = "mimetype"
	case SortByName:
		key = "original_name"
	case SortBySize:
		key = "size"
	default:
		key = "upload_date"
	}

	return bson.D{{Key: key, Value: dir}, {Key: "_id", Value: 1}}
}

func parseObjectIDs(ids []string) []primitive.ObjectID {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		parsed, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objectIDs = append(objectIDs, parsed)
	}
	return objectIDs
}

func decodeRecords(ctx context.Context, cursor *mongo.Cursor) ([]Record, error) {
	defer cursor.Close(ctx)

	records := []Record{}
	for cursor.Next(ctx) {
		var doc fileDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode file document: %v", ErrPersistenceQuery, err)
		}
		records = append(records, doc.record())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate file documents: %v", ErrPersistenceQuery, err)
	}
	return records, nil
}
