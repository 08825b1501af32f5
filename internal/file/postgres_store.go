package file

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// PostgresStore keeps file records in a single files table. Record ids are
// the stringified BIGSERIAL primary key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a store on top of the shared connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the files table and its access-path indexes if they
// do not exist yet. Called once at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			id BIGSERIAL PRIMARY KEY,
			original_name TEXT COLLATE "C" NOT NULL,
			storage_key TEXT NOT NULL UNIQUE,
			size BIGINT NOT NULL CHECK (size >= 0),
			mimetype TEXT COLLATE "C" NOT NULL DEFAULT '',
			upload_date TIMESTAMPTZ NOT NULL,
			pin TEXT CHECK (pin <> '')
		);`,
		`CREATE INDEX IF NOT EXISTS files_pin_idx ON files (pin) WHERE pin IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS files_unassigned_idx ON files (upload_date DESC) WHERE pin IS NULL;`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure files schema: %w", err)
		}
	}
	return nil
}

const recordColumns = `id, original_name, storage_key, size, mimetype, upload_date, pin`

// Persist inserts a record and returns it with the assigned id.
func (s *PostgresStore) Persist(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO files (original_name, storage_key, size, mimetype, upload_date, pin)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + recordColumns + `;`

	row := s.pool.QueryRow(ctx, query,
		rec.OriginalName,
		rec.StorageKey,
		rec.Size,
		rec.Mimetype,
		rec.UploadDate,
		rec.Pin.StringPtr(),
	)

	stored, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("%w: insert file record: %v", ErrPersistenceWrite, err)
	}
	return stored, nil
}

// QueryByPin returns records scoped to pin in the contract ordering.
func (s *PostgresStore) QueryByPin(ctx context.Context, pin string, opts ListOptions) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := fmt.Sprintf(`
SELECT %s FROM files
WHERE pin = $1
ORDER BY %s %s, id ASC;`, recordColumns, orderByExpr(opts.Field), orderDirection(opts.Order))

	rows, err := s.pool.Query(ctx, query, pin)
	if err != nil {
		return nil, fmt.Errorf("%w: query by pin: %v", ErrPersistenceQuery, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// QueryUnassigned returns anonymous records, newest first.
func (s *PostgresStore) QueryUnassigned(ctx context.Context) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + recordColumns + ` FROM files
WHERE pin IS NULL
ORDER BY upload_date DESC, id ASC;`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query unassigned: %v", ErrPersistenceQuery, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ReassignPin sets pin on every matching id and returns the post-update
// snapshot. Ids that do not parse as serials or do not exist are skipped.
// RowsAffected counts every matched row, including rows whose pin already
// held the value, which is exactly the backend-agnostic count the contract
// requires.
func (s *PostgresStore) ReassignPin(ctx context.Context, pin string, ids []string) (AssignResult, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	serials := parseSerialIDs(ids)
	if len(serials) == 0 {
		return AssignResult{Records: []Record{}}, nil
	}

	tag, err := s.pool.Exec(ctx, `UPDATE files SET pin = $1 WHERE id = ANY($2);`, pin, serials)
	if err != nil {
		return AssignResult{}, fmt.Errorf("%w: reassign pin: %v", ErrPersistenceWrite, err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT `+recordColumns+` FROM files
WHERE id = ANY($1)
ORDER BY id ASC;`, serials)
	if err != nil {
		return AssignResult{}, fmt.Errorf("%w: load reassigned records: %v", ErrPersistenceQuery, err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return AssignResult{}, err
	}

	return AssignResult{Count: tag.RowsAffected(), Records: records}, nil
}

// orderByColumn maps a sort field to its column. The mapping doubles as a
// whitelist: the field enum is closed, so the ORDER BY clause is never built
// from caller input.
func orderByColumn(field SortField) string {
	switch field {
	case SortByType:
		return "mimetype"
	case SortByName:
		return "original_name"
	case SortBySize:
		return "size"
	default:
		return "upload_date"
	}
}

// orderByExpr builds the ORDER BY expression for a field. Text columns carry
// COLLATE "C" so the ordering is byte-wise regardless of the database locale
// and agrees with the document backend's binary string comparison.
func orderByExpr(field SortField) string {
	col := orderByColumn(field)
	switch field {
	case SortByType, SortByName:
		return col + ` COLLATE "C"`
	default:
		return col
	}
}

func orderDirection(order SortOrder) string {
	if order == OrderAsc {
		return "ASC"
	}
	return "DESC"
}

func parseSerialIDs(ids []string) []int64 {
	serials := make([]int64, 0, len(ids))
	for _, id := range ids {
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		serials = append(serials, parsed)
	}
	return serials
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec Record
		id  int64
		pin *string
	)
	if err := row.Scan(&id, &rec.OriginalName, &rec.StorageKey, &rec.Size, &rec.Mimetype, &rec.UploadDate, &pin); err != nil {
		return Record{}, err
	}
	rec.ID = strconv.FormatInt(id, 10)
	rec.Pin = PinFromPtr(pin)
	return rec, nil
}

type recordRows interface {
	rowScanner
	Next() bool
	Err() error
}

func collectRecords(rows recordRows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan file record: %v", ErrPersistenceQuery, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate file records: %v", ErrPersistenceQuery, err)
	}
	return records, nil
}
