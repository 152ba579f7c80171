// package ledger persists the relay's sync history in sqlite.
//
// The ledger is partitioned into three sets (loved, hated, reset-pending)
// and records what has already been pushed to the taste services so that
// repeated passes are idempotent and interrupted passes can resume. Every
// mutation is committed immediately; after a crash the ledger lags the
// adapter calls by at most one mutation.
package ledger

import (
	"database/sql"
	"fmt"

	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

// Partition names one of the ledger's three sets.
type Partition int

const (
	Loved Partition = iota
	Hated
	ResetPending
)

// Partitions lists every valid partition, in lifecycle order.
var Partitions = []Partition{Loved, Hated, ResetPending}

func (p Partition) String() string {
	switch p {
	case Loved:
		return "loved"
	case Hated:
		return "hated"
	case ResetPending:
		return "reset-pending"
	default:
		return fmt.Sprintf("Partition(%d)", int(p))
	}
}

// table returns the sqlite table backing the partition. Only strings
// returned here are interpolated into SQL. An out-of-range partition is a
// programming error, not a data error.
func (p Partition) table() string {
	switch p {
	case Loved:
		return "loved"
	case Hated:
		return "hated"
	case ResetPending:
		return "reset_pending"
	default:
		panic(fmt.Sprintf("invalid ledger partition: %d", int(p)))
	}
}

// Entry is one synced-track record.
type Entry struct {
	ID          string
	Title       string
	Artist      string
	LocalID     string
	RecordingID string
}

// Track converts the entry back into a track identity.
func (e Entry) Track() track.Track {
	return track.Track{
		Title:       e.Title,
		Artist:      e.Artist,
		LocalID:     e.LocalID,
		RecordingID: e.RecordingID,
	}
}

// EntryFor builds a ledger entry from a track identity.
func EntryFor(t track.Track) Entry {
	return Entry{
		Title:       t.Title,
		Artist:      t.Artist,
		LocalID:     t.LocalID,
		RecordingID: t.RecordingID,
	}
}

// Ledger provides partitioned access to the sync history tables.
type Ledger struct {
	db *sql.DB
}

// New creates a Ledger over an open database. Callers run
// [shared.RunMigrations] before handing the connection over.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// nullable maps empty strings to NULL so the partial unique indexes see
// missing identifiers as absent rather than as the empty string.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Add inserts an entry into a partition. Inserting a duplicate (same
// recording ID, or same title+artist when no recording ID is known) is a
// no-op, not an error.
func (l *Ledger) Add(p Partition, e Entry) error {
	if e.ID == "" {
		e.ID = shared.GenerateID()
	}

	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (id, recording_id, local_id, title, artist) VALUES (?, ?, ?, ?, ?)",
		p.table(),
	)
	_, err := l.db.Exec(query, e.ID, nullable(e.RecordingID), nullable(e.LocalID), e.Title, e.Artist)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", p, err)
	}
	return nil
}

// Delete removes the entry with the given recording ID from a partition.
// No-op if absent.
func (l *Ledger) Delete(p Partition, recordingID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE recording_id = ?", p.table())
	if _, err := l.db.Exec(query, recordingID); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", p, err)
	}
	return nil
}

// DeleteByID removes a single entry by primary key. No-op if absent.
func (l *Ledger) DeleteByID(p Partition, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", p.table())
	if _, err := l.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", p, err)
	}
	return nil
}

// Find looks up an entry in a partition, matching on recording ID first,
// then on exact title+artist. Returns nil when no entry matches.
func (l *Ledger) Find(p Partition, recordingID, title, artist string) (*Entry, error) {
	if recordingID != "" {
		if e, err := l.findWhere(p, "recording_id = ?", recordingID); e != nil || err != nil {
			return e, err
		}
	}
	return l.findWhere(p, "title = ? AND artist = ?", title, artist)
}

// FindByLocalID looks up an entry by the media server's own track ID
// first, then by exact title+artist. This is the lookup used before the
// metadata resolver is consulted, so previously resolved recording IDs
// stay stable and the expensive external query is skipped.
func (l *Ledger) FindByLocalID(p Partition, localID, title, artist string) (*Entry, error) {
	if localID != "" {
		if e, err := l.findWhere(p, "local_id = ?", localID); e != nil || err != nil {
			return e, err
		}
	}
	return l.findWhere(p, "title = ? AND artist = ?", title, artist)
}

func (l *Ledger) findWhere(p Partition, where string, args ...any) (*Entry, error) {
	query := fmt.Sprintf(
		"SELECT id, title, artist, local_id, recording_id FROM %s WHERE %s LIMIT 1",
		p.table(), where,
	)
	return l.scanOne(l.db.QueryRow(query, args...))
}

// All returns every entry in a partition.
func (l *Ledger) All(p Partition) ([]Entry, error) {
	query := fmt.Sprintf("SELECT id, title, artist, local_id, recording_id FROM %s ORDER BY created_at", p.table())
	rows, err := l.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var localID, recordingID sql.NullString
		if err := rows.Scan(&e.ID, &e.Title, &e.Artist, &localID, &recordingID); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", p, err)
		}
		e.LocalID = localID.String
		e.RecordingID = recordingID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries in a partition.
func (l *Ledger) Count(p Partition) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", p.table())
	if err := l.db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", p, err)
	}
	return n, nil
}

// Move transfers an entry from one partition to another in a single
// transaction, preserving its ID. This is the only way entries change
// partition, which keeps the partitions mutually exclusive.
func (l *Ledger) Move(from, to Partition, e Entry) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin move: %w", err)
	}
	defer tx.Rollback()

	delQuery := fmt.Sprintf("DELETE FROM %s WHERE id = ?", from.table())
	if _, err := tx.Exec(delQuery, e.ID); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", from, err)
	}

	insQuery := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (id, recording_id, local_id, title, artist) VALUES (?, ?, ?, ?, ?)",
		to.table(),
	)
	if _, err := tx.Exec(insQuery, e.ID, nullable(e.RecordingID), nullable(e.LocalID), e.Title, e.Artist); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", to, err)
	}

	return tx.Commit()
}

// scanOne reads a single entry row, mapping sql.ErrNoRows to nil.
func (l *Ledger) scanOne(row *sql.Row) (*Entry, error) {
	var e Entry
	var localID, recordingID sql.NullString
	err := row.Scan(&e.ID, &e.Title, &e.Artist, &localID, &recordingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.LocalID = localID.String
	e.RecordingID = recordingID.String
	return &e, nil
}
