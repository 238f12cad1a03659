package instrument

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSnapshotLimit = 50
	maxSnapshotLimit     = 200
)

// SQLiteSnapshotStore implements SnapshotStore using SQLite.
//
// Documents are stored as JSON in the snapshots table.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// NewSQLiteSnapshotStore creates a snapshot store backed by an open
// SQLite connection.
func NewSQLiteSnapshotStore(db *sql.DB) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{db: db}
}

// Save implements SnapshotStore.
func (s *SQLiteSnapshotStore) Save(ctx context.Context, instrument string, snap *Snapshot) (*SnapshotRecord, error) {
	if instrument == "" {
		return nil, fmt.Errorf("%w: instrument name is required", ErrInvalidConfig)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: snapshot is required", ErrInvalidConfig)
	}

	doc, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshalling snapshot: %w", err)
	}

	rec := &SnapshotRecord{
		ID:         uuid.New().String(),
		Instrument: instrument,
		Document:   snap,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, instrument, document, created_at) VALUES (?, ?, ?, ?)",
		rec.ID,
		rec.Instrument,
		string(doc),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting snapshot: %w", err)
	}
	return rec, nil
}

// List implements SnapshotStore. Records are returned newest first;
// limit defaults to 50 and is clamped to 200.
func (s *SQLiteSnapshotStore) List(ctx context.Context, instrument string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}

	query := "SELECT id, instrument, document, created_at FROM snapshots"
	args := []any{}
	if instrument != "" {
		query += " WHERE instrument = ?"
		args = append(args, instrument)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshotRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return records, nil
}

// Get implements SnapshotStore.
func (s *SQLiteSnapshotStore) Get(ctx context.Context, id string) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, instrument, document, created_at FROM snapshots WHERE id = ?", id)

	rec, err := scanSnapshotRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanSnapshotRecord(scan func(...any) error) (*SnapshotRecord, error) {
	var (
		rec       SnapshotRecord
		doc       string
		createdAt string
	)
	if err := scan(&rec.ID, &rec.Instrument, &doc, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning snapshot row: %w", err)
	}

	if err := json.Unmarshal([]byte(doc), &rec.Document); err != nil {
		return nil, fmt.Errorf("unmarshalling snapshot document: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot timestamp %q: %w", createdAt, err)
	}
	rec.CreatedAt = ts
	return &rec, nil
}
