package musicbrainz

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

type stubSearch struct {
	candidates []Candidate
	err        error

	searchCalls  int
	trackIDCalls int
	lastTrackID  string
}

func (s *stubSearch) Search(ctx context.Context, title, artist string) ([]Candidate, error) {
	s.searchCalls++
	return s.candidates, s.err
}

func (s *stubSearch) SearchByTrackID(ctx context.Context, trackID string) ([]Candidate, error) {
	s.trackIDCalls++
	s.lastTrackID = trackID
	return s.candidates, s.err
}

func testResolver(stub *stubSearch) *Resolver {
	return NewResolver(stub, log.New(io.Discard))
}

func TestResolve(t *testing.T) {
	t.Run("known recording ID short-circuits", func(t *testing.T) {
		stub := &stubSearch{}
		r := testResolver(stub)

		id, err := r.Resolve(context.Background(), track.New("Hurt", "Johnny Cash").WithRecordingID("mbid-1"))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if id != "mbid-1" {
			t.Errorf("expected mbid-1, got %q", id)
		}
		if stub.searchCalls+stub.trackIDCalls != 0 {
			t.Error("resolver should not query when the ID is already known")
		}
	})

	t.Run("track ID hint prefers tid search", func(t *testing.T) {
		stub := &stubSearch{candidates: []Candidate{
			{ID: "mbid-2", Title: "Hurt", ArtistCredit: []ArtistCredit{{Name: "Johnny Cash"}}},
		}}
		r := testResolver(stub)

		tr := track.Track{Title: "Hurt", Artist: "Johnny Cash", LocalID: "track-mbid-7"}
		id, err := r.Resolve(context.Background(), tr)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if id != "mbid-2" {
			t.Errorf("expected mbid-2, got %q", id)
		}
		if stub.trackIDCalls != 1 || stub.lastTrackID != "track-mbid-7" {
			t.Errorf("expected one tid search for track-mbid-7, got %d (%q)", stub.trackIDCalls, stub.lastTrackID)
		}
		if stub.searchCalls != 0 {
			t.Error("title/artist search should be skipped when a hint exists")
		}
	})

	t.Run("exact match requires title and artist", func(t *testing.T) {
		stub := &stubSearch{candidates: []Candidate{
			{ID: "mbid-wrong", Title: "Hurt", ArtistCredit: []ArtistCredit{{Name: "Nine Inch Nails"}}},
			{ID: "mbid-right", Title: "Hurt", ArtistCredit: []ArtistCredit{{Name: "Johnny Cash"}}},
		}}
		r := testResolver(stub)

		id, err := r.Resolve(context.Background(), track.New("Hurt", "Johnny Cash"))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if id != "mbid-right" {
			t.Errorf("expected mbid-right, got %q", id)
		}
	})

	t.Run("malformed candidates are skipped", func(t *testing.T) {
		stub := &stubSearch{candidates: []Candidate{
			{ID: "", Title: "Hurt"},
			{ID: "mbid-no-artist", Title: "Hurt"},
			{ID: "mbid-ok", Title: "Hurt", ArtistCredit: []ArtistCredit{{Name: "Johnny Cash"}}},
		}}
		r := testResolver(stub)

		id, err := r.Resolve(context.Background(), track.New("Hurt", "Johnny Cash"))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if id != "mbid-ok" {
			t.Errorf("expected mbid-ok, got %q", id)
		}
	})

	t.Run("miss is not an error", func(t *testing.T) {
		stub := &stubSearch{}
		r := testResolver(stub)

		id, err := r.Resolve(context.Background(), track.New("Obscure", "Nobody"))
		if err != nil {
			t.Fatalf("expected nil error on miss, got %v", err)
		}
		if id != "" {
			t.Errorf("expected empty ID, got %q", id)
		}
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		wantErr := errors.New("connection refused")
		stub := &stubSearch{err: wantErr}
		r := testResolver(stub)

		_, err := r.Resolve(context.Background(), track.New("Hurt", "Johnny Cash"))
		if !errors.Is(err, wantErr) {
			t.Errorf("expected transport error, got %v", err)
		}
	})
}
