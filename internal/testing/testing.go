// package testing contains shared testing utilities
package testing

import (
	"context"
	"strings"

	"github.com/hc-nolan/ratingrelay/internal/plex"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

// MockAdapter is a test double for [services.Adapter] that records every
// mutating call and serves a configurable remote snapshot.
type MockAdapter struct {
	AdapterName string
	Hateable    bool

	Loved []track.Track
	Hated []track.Track

	LoveCalls  []track.Track
	HateCalls  []track.Track
	ResetCalls []track.Track

	// Calls records every mutating call in order, as "love <track>",
	// "hate <track>" or "reset <track>".
	Calls []string

	LoveErr   error
	HateErr   error
	ResetErr  error
	remoteErr error
}

func NewMockAdapter(name string, hateable bool) *MockAdapter {
	return &MockAdapter{AdapterName: name, Hateable: hateable}
}

func (m *MockAdapter) Name() string       { return m.AdapterName }
func (m *MockAdapter) SupportsHate() bool { return m.Hateable }

func (m *MockAdapter) Love(ctx context.Context, t track.Track) error {
	m.LoveCalls = append(m.LoveCalls, t)
	m.Calls = append(m.Calls, "love "+t.String())
	return m.LoveErr
}

func (m *MockAdapter) Hate(ctx context.Context, t track.Track) error {
	m.HateCalls = append(m.HateCalls, t)
	m.Calls = append(m.Calls, "hate "+t.String())
	return m.HateErr
}

func (m *MockAdapter) Reset(ctx context.Context, t track.Track) error {
	m.ResetCalls = append(m.ResetCalls, t)
	m.Calls = append(m.Calls, "reset "+t.String())
	return m.ResetErr
}

func (m *MockAdapter) AllLoved(ctx context.Context) ([]track.Track, error) {
	return m.Loved, m.remoteErr
}

func (m *MockAdapter) AllHated(ctx context.Context) ([]track.Track, error) {
	return m.Hated, m.remoteErr
}

// FailEnumeration makes AllLoved/AllHated return the given error.
func (m *MockAdapter) FailEnumeration(err error) { m.remoteErr = err }

// RateCall records one rating submission to the mock source.
type RateCall struct {
	RatingKey string
	Rating    int
}

// MockSource is a test double for [plex.Source].
type MockSource struct {
	Above []plex.RawTrack
	Below []plex.RawTrack

	// SearchResults maps lower-cased search titles to results.
	SearchResults map[string][]plex.RawTrack

	RateCalls []RateCall

	Err error
}

func (m *MockSource) TracksAbove(ctx context.Context, threshold int) ([]plex.RawTrack, error) {
	return m.Above, m.Err
}

func (m *MockSource) TracksBelow(ctx context.Context, threshold int) ([]plex.RawTrack, error) {
	return m.Below, m.Err
}

func (m *MockSource) SearchTracks(ctx context.Context, title string) ([]plex.RawTrack, error) {
	return m.SearchResults[strings.ToLower(title)], m.Err
}

func (m *MockSource) Rate(ctx context.Context, ratingKey string, rating int) error {
	m.RateCalls = append(m.RateCalls, RateCall{RatingKey: ratingKey, Rating: rating})
	return m.Err
}

// MockResolver is a test double for [services.RecordingResolver], keyed
// on "title|artist".
type MockResolver struct {
	IDs   map[string]string
	Err   error
	Calls int
}

func (m *MockResolver) Resolve(ctx context.Context, t track.Track) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if t.RecordingID != "" {
		return t.RecordingID, nil
	}
	return m.IDs[t.Title+"|"+t.Artist], nil
}
