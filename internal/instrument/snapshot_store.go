package instrument

import (
	"context"
	"time"
)

// SnapshotRecord is a persisted snapshot document.
//
// Each record stores the full JSON snapshot of one root instrument at
// capture time, providing a reproducibility log that survives restarts.
type SnapshotRecord struct {
	// ID is the unique identifier of the record (UUID).
	ID string `json:"id"`

	// Instrument is the root instrument name the snapshot was taken of.
	Instrument string `json:"instrument"`

	// Document is the captured snapshot.
	Document *Snapshot `json:"document"`

	// CreatedAt is the capture timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotStore persists and retrieves snapshot documents.
//
// Implementations must be thread-safe and use UTC timestamps.
type SnapshotStore interface {
	// Save persists a snapshot for the named instrument and returns the
	// stored record.
	Save(ctx context.Context, instrument string, snap *Snapshot) (*SnapshotRecord, error)

	// List returns recent records, newest first. An empty instrument
	// name matches all instruments; limit is clamped by the
	// implementation.
	List(ctx context.Context, instrument string, limit int) ([]SnapshotRecord, error)

	// Get returns a record by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*SnapshotRecord, error)
}
