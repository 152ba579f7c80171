package ledger

import (
	"database/sql"
	"testing"

	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

func setupLedger(t *testing.T) (*Ledger, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return New(db), db
}

func TestAdd(t *testing.T) {
	t.Run("inserts and assigns an ID", func(t *testing.T) {
		l, _ := setupLedger(t)

		e := EntryFor(track.New("Karma Police", "Radiohead").WithRecordingID("mbid-1"))
		if err := l.Add(Loved, e); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}

		found, err := l.Find(Loved, "mbid-1", "", "")
		if err != nil {
			t.Fatalf("failed to find entry: %v", err)
		}
		if found == nil {
			t.Fatal("expected entry, got nil")
		}
		if found.ID == "" {
			t.Error("expected generated ID")
		}
		if found.Title != "Karma Police" || found.Artist != "Radiohead" {
			t.Errorf("unexpected entry: %+v", found)
		}
	})

	t.Run("duplicate recording ID is a no-op", func(t *testing.T) {
		l, _ := setupLedger(t)

		e := EntryFor(track.New("Karma Police", "Radiohead").WithRecordingID("mbid-1"))
		for i := 0; i < 3; i++ {
			if err := l.Add(Loved, e); err != nil {
				t.Fatalf("add %d failed: %v", i, err)
			}
		}

		n, err := l.Count(Loved)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 entry, got %d", n)
		}
	})

	t.Run("duplicate title and artist without recording ID is a no-op", func(t *testing.T) {
		l, _ := setupLedger(t)

		e := EntryFor(track.New("Karma Police", "Radiohead"))
		if err := l.Add(Loved, e); err != nil {
			t.Fatalf("first add failed: %v", err)
		}
		if err := l.Add(Loved, e); err != nil {
			t.Fatalf("second add failed: %v", err)
		}

		n, _ := l.Count(Loved)
		if n != 1 {
			t.Errorf("expected 1 entry, got %d", n)
		}
	})

	t.Run("same metadata with distinct recording IDs both persist", func(t *testing.T) {
		l, _ := setupLedger(t)

		l.Add(Loved, EntryFor(track.New("Hurt", "Nine Inch Nails").WithRecordingID("mbid-1")))
		l.Add(Loved, EntryFor(track.New("Hurt", "Nine Inch Nails").WithRecordingID("mbid-2")))

		n, _ := l.Count(Loved)
		if n != 2 {
			t.Errorf("expected 2 entries, got %d", n)
		}
	})
}

func TestFind(t *testing.T) {
	l, _ := setupLedger(t)

	l.Add(Loved, Entry{
		Title:       "Karma Police",
		Artist:      "Radiohead",
		LocalID:     "local-1",
		RecordingID: "mbid-1",
	})

	t.Run("by recording ID", func(t *testing.T) {
		found, err := l.Find(Loved, "mbid-1", "wrong title", "wrong artist")
		if err != nil {
			t.Fatalf("failed to find: %v", err)
		}
		if found == nil || found.RecordingID != "mbid-1" {
			t.Errorf("expected entry for mbid-1, got %+v", found)
		}
	})

	t.Run("falls back to title and artist", func(t *testing.T) {
		found, err := l.Find(Loved, "missing-id", "Karma Police", "Radiohead")
		if err != nil {
			t.Fatalf("failed to find: %v", err)
		}
		if found == nil {
			t.Fatal("expected fallback match, got nil")
		}
	})

	t.Run("absent entry returns nil without error", func(t *testing.T) {
		found, err := l.Find(Loved, "", "No Surprises", "Radiohead")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found != nil {
			t.Errorf("expected nil, got %+v", found)
		}
	})

	t.Run("by local ID before metadata", func(t *testing.T) {
		found, err := l.FindByLocalID(Loved, "local-1", "wrong", "wrong")
		if err != nil {
			t.Fatalf("failed to find: %v", err)
		}
		if found == nil || found.RecordingID != "mbid-1" {
			t.Errorf("expected entry for local-1, got %+v", found)
		}
	})
}

func TestMove(t *testing.T) {
	l, _ := setupLedger(t)

	l.Add(Loved, EntryFor(track.New("Karma Police", "Radiohead").WithRecordingID("mbid-1")))
	e, err := l.Find(Loved, "mbid-1", "", "")
	if err != nil || e == nil {
		t.Fatalf("setup find failed: %v %+v", err, e)
	}

	if err := l.Move(Loved, ResetPending, *e); err != nil {
		t.Fatalf("failed to move: %v", err)
	}

	t.Run("gone from source partition", func(t *testing.T) {
		found, _ := l.Find(Loved, "mbid-1", "", "")
		if found != nil {
			t.Errorf("entry still in loved: %+v", found)
		}
	})

	t.Run("present in destination with same ID", func(t *testing.T) {
		found, _ := l.Find(ResetPending, "mbid-1", "", "")
		if found == nil {
			t.Fatal("entry missing from reset-pending")
		}
		if found.ID != e.ID {
			t.Errorf("ID changed on move: %q -> %q", e.ID, found.ID)
		}
	})
}

func TestDelete(t *testing.T) {
	l, _ := setupLedger(t)

	l.Add(Hated, EntryFor(track.New("Bad Song", "Bad Band").WithRecordingID("mbid-9")))

	if err := l.Delete(Hated, "mbid-9"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	n, _ := l.Count(Hated)
	if n != 0 {
		t.Errorf("expected empty partition, got %d entries", n)
	}

	// absent entry is a no-op
	if err := l.Delete(Hated, "mbid-9"); err != nil {
		t.Errorf("deleting absent entry errored: %v", err)
	}
}

func TestAll(t *testing.T) {
	l, _ := setupLedger(t)

	l.Add(Loved, EntryFor(track.New("A", "X").WithRecordingID("mbid-1")))
	l.Add(Loved, EntryFor(track.New("B", "Y").WithRecordingID("mbid-2")))

	entries, err := l.All(Loved)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Track().RecordingID == "" {
			t.Errorf("entry lost recording ID: %+v", e)
		}
	}
}

func TestPartitionTable(t *testing.T) {
	t.Run("valid partitions", func(t *testing.T) {
		for _, p := range Partitions {
			if p.table() == "" {
				t.Errorf("empty table name for %s", p)
			}
		}
	})

	t.Run("invalid partition panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on invalid partition")
			}
		}()
		Partition(42).table()
	})
}
