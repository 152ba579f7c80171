package relay

import (
	"context"
	"testing"

	"github.com/hc-nolan/ratingrelay/internal/plex"
	tu "github.com/hc-nolan/ratingrelay/internal/testing"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

func TestReverseSync(t *testing.T) {
	t.Run("imports remote loves missing from the source", func(t *testing.T) {
		src := &tu.MockSource{
			SearchResults: map[string][]plex.RawTrack{
				"no surprises": {{RatingKey: "55", Title: "No Surprises", Artist: "Radiohead"}},
			},
		}
		adapter := tu.NewMockAdapter("A", true)
		adapter.Loved = []track.Track{track.New("No Surprises", "Radiohead").WithRecordingID("mbid-9")}

		cfg := testConfig()
		cfg.Relay.TwoWay = true
		e, _ := testEngine(t, src, &tu.MockResolver{}, cfg, adapter)

		res, err := e.Run(context.Background())
		if err != nil {
			t.Fatalf("pass failed: %v", err)
		}
		if len(src.RateCalls) != 1 {
			t.Fatalf("expected 1 rating, got %d", len(src.RateCalls))
		}
		if src.RateCalls[0].RatingKey != "55" || src.RateCalls[0].Rating != cfg.Relay.LoveThreshold {
			t.Errorf("unexpected rating call: %+v", src.RateCalls[0])
		}
		if res.SourceAdded != 1 {
			t.Errorf("expected SourceAdded 1, got %d", res.SourceAdded)
		}
	})

	t.Run("already rated tracks are not re-rated", func(t *testing.T) {
		src := &tu.MockSource{
			Above: []plex.RawTrack{{RatingKey: "1", Title: "No Surprises", Artist: "Radiohead"}},
		}
		resolver := &tu.MockResolver{IDs: map[string]string{"No Surprises|Radiohead": "mbid-9"}}
		adapter := tu.NewMockAdapter("A", true)
		adapter.Loved = []track.Track{track.New("No Surprises", "Radiohead").WithRecordingID("mbid-9")}

		cfg := testConfig()
		cfg.Relay.TwoWay = true
		e, _ := testEngine(t, src, resolver, cfg, adapter)

		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("pass failed: %v", err)
		}
		if len(src.RateCalls) != 0 {
			t.Errorf("expected no rating calls, got %d", len(src.RateCalls))
		}
	})

	t.Run("tracks missing from the library are skipped", func(t *testing.T) {
		src := &tu.MockSource{SearchResults: map[string][]plex.RawTrack{}}
		adapter := tu.NewMockAdapter("A", true)
		adapter.Loved = []track.Track{track.New("Not In Library", "Someone")}

		cfg := testConfig()
		cfg.Relay.TwoWay = true
		e, _ := testEngine(t, src, &tu.MockResolver{}, cfg, adapter)

		res, err := e.Run(context.Background())
		if err != nil {
			t.Fatalf("pass failed: %v", err)
		}
		if len(src.RateCalls) != 0 || res.SourceAdded != 0 {
			t.Errorf("unexpected import: %d calls, %d added", len(src.RateCalls), res.SourceAdded)
		}
	})

	t.Run("partial matches are not synced", func(t *testing.T) {
		// right title in the library, wrong artist
		src := &tu.MockSource{
			SearchResults: map[string][]plex.RawTrack{
				"hurt": {{RatingKey: "90", Title: "Hurt", Artist: "Nine Inch Nails"}},
			},
		}
		adapter := tu.NewMockAdapter("A", true)
		adapter.Loved = []track.Track{track.New("Hurt", "Johnny Cash")}

		cfg := testConfig()
		cfg.Relay.TwoWay = true
		e, _ := testEngine(t, src, &tu.MockResolver{}, cfg, adapter)

		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("pass failed: %v", err)
		}
		if len(src.RateCalls) != 0 {
			t.Errorf("partial match was synced: %+v", src.RateCalls)
		}
	})

	t.Run("smart quote retry finds the track", func(t *testing.T) {
		src := &tu.MockSource{
			SearchResults: map[string][]plex.RawTrack{
				"don’t stop": {{RatingKey: "12", Title: "Don’t Stop", Artist: "Fleetwood Mac"}},
			},
		}
		adapter := tu.NewMockAdapter("A", true)
		adapter.Loved = []track.Track{track.New("Don't Stop", "Fleetwood Mac")}

		cfg := testConfig()
		cfg.Relay.TwoWay = true
		e, _ := testEngine(t, src, &tu.MockResolver{}, cfg, adapter)

		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("pass failed: %v", err)
		}
		if len(src.RateCalls) != 1 || src.RateCalls[0].RatingKey != "12" {
			t.Errorf("smart quote retry failed: %+v", src.RateCalls)
		}
	})

	t.Run("disabled without two-way", func(t *testing.T) {
		src := &tu.MockSource{
			SearchResults: map[string][]plex.RawTrack{
				"no surprises": {{RatingKey: "55", Title: "No Surprises", Artist: "Radiohead"}},
			},
		}
		adapter := tu.NewMockAdapter("A", true)
		adapter.Loved = []track.Track{track.New("No Surprises", "Radiohead")}

		e, _ := testEngine(t, src, &tu.MockResolver{}, testConfig(), adapter)

		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("pass failed: %v", err)
		}
		if len(src.RateCalls) != 0 {
			t.Errorf("reverse sync ran without two_way: %+v", src.RateCalls)
		}
	})
}
