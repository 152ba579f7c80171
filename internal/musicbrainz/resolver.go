package musicbrainz

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

// SearchClient is the slice of [Client] the resolver needs. Tests swap in
// a stub; production code passes a *Client.
type SearchClient interface {
	Search(ctx context.Context, title, artist string) ([]Candidate, error)
	SearchByTrackID(ctx context.Context, trackID string) ([]Candidate, error)
}

// Resolver finds canonical recording IDs for track identities.
//
// Query policy: when the media server supplied a track-level MBID hint the
// tid: query is used, otherwise the title/artist query. The policy is
// fixed; callers never choose per-call.
type Resolver struct {
	client SearchClient
	logger *log.Logger
}

// NewResolver creates a Resolver over the given search client.
func NewResolver(client SearchClient, logger *log.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// Resolve returns the canonical recording ID for a track, or "" when the
// search yields no exact title+artist match. A miss is not an error; only
// transport failures are.
//
// This is the most expensive lookup in the pipeline. Callers check the
// ledger first and only resolve on a ledger miss.
func (r *Resolver) Resolve(ctx context.Context, t track.Track) (string, error) {
	if t.RecordingID != "" {
		return t.RecordingID, nil
	}

	var candidates []Candidate
	var err error
	if t.LocalID != "" {
		r.logger.Debug("searching MusicBrainz by track ID", "tid", t.LocalID)
		candidates, err = r.client.SearchByTrackID(ctx, t.LocalID)
	} else {
		r.logger.Debug("searching MusicBrainz by title/artist", "title", t.Title, "artist", t.Artist)
		candidates, err = r.client.Search(ctx, t.Title, t.Artist)
	}
	if err != nil {
		return "", err
	}

	if id := exactMatch(t, candidates); id != "" {
		return id, nil
	}

	r.logger.Warn("no MusicBrainz recording matched", "title", t.Title, "artist", t.Artist)
	return "", nil
}

// exactMatch scans candidates for the first whose normalized title and
// artist both equal the input's. Candidates with missing fields are
// skipped, never fatal.
func exactMatch(t track.Track, candidates []Candidate) string {
	wantTitle := track.Normalize(t.Title)
	wantArtist := track.Normalize(t.Artist)

	for _, c := range candidates {
		if c.ID == "" || len(c.ArtistCredit) == 0 {
			continue
		}
		if track.Normalize(c.Title) == wantTitle && track.Normalize(c.ArtistCredit[0].Name) == wantArtist {
			return c.ID
		}
	}
	return ""
}
