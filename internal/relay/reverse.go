package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/hc-nolan/ratingrelay/internal/plex"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

// reverseSync imports feedback recorded directly on the taste services
// back into the media server. Remote tracks with no counterpart in the
// source's current matching set are searched for in the music library and
// rated at the configured threshold, once per track.
func (e *Engine) reverseSync(ctx context.Context, remotes []*remote, loved, hated []track.Track, res *PassResult) {
	e.sendProgress(phaseUpdate(ReverseSync, 1, len(remotes), "Importing feedback into media server..."))

	for _, r := range remotes {
		if r.failed() {
			continue
		}

		res.SourceAdded += e.importRemote(ctx, r.loved, loved, e.cfg.Relay.LoveThreshold, r.adapter.Name())

		if e.cfg.HateEnabled() && r.adapter.SupportsHate() {
			res.SourceAdded += e.importRemote(ctx, r.hated, hated, e.cfg.Relay.HateThreshold, r.adapter.Name())
		}
	}
}

// importRemote rates remote tracks missing from the source's current set.
// Partial matches (title but not artist) are logged and conservatively
// not synced, never guessed.
func (e *Engine) importRemote(ctx context.Context, remoteTracks, current []track.Track, rating int, service string) int {
	added := 0

	for _, rt := range remoteTracks {
		if idx, nearMiss := track.Match(rt, current); idx >= 0 {
			e.logger.Debug("already rated on source", "service", service, "track", rt.String())
			continue
		} else if nearMiss {
			e.logger.Warn("remote track matched a source title but not its artist, not syncing",
				"service", service, "track", rt.String())
			continue
		}

		found, err := e.searchSource(ctx, rt)
		if err != nil {
			e.logger.Error("source search failed", "track", rt.String(), "err", err)
			continue
		}
		if found == nil {
			e.logger.Info("track not in source library", "service", service, "track", rt.String())
			continue
		}

		e.logger.Info("importing rating into source", "service", service, "track", rt.String(), "rating", rating)
		if err := e.source.Rate(ctx, found.RatingKey, rating); err != nil {
			e.logger.Error("failed to rate on source", "track", rt.String(), "err", err)
			continue
		}
		added++
	}

	return added
}

// searchSource finds a track in the media library by title, retrying with
// smart quotes when the plain search comes back empty (services disagree
// on apostrophe characters). The result must pass the full title+artist
// match; near misses are surfaced with a similarity score for triage.
func (e *Engine) searchSource(ctx context.Context, t track.Track) (*plex.RawTrack, error) {
	results, err := e.source.SearchTracks(ctx, strings.ToLower(t.Title))
	if err != nil {
		return nil, err
	}

	if len(results) == 0 && strings.Contains(t.Title, "'") {
		results, err = e.source.SearchTracks(ctx, strings.ToLower(strings.ReplaceAll(t.Title, "'", "’")))
		if err != nil {
			return nil, err
		}
	}

	candidates := make([]track.Track, len(results))
	for i, r := range results {
		candidates[i] = r.Identity()
	}

	idx, nearMiss := track.Match(t, candidates)
	if idx < 0 {
		if nearMiss {
			best := bestSimilarity(t, candidates)
			e.logger.Warn("library search matched title but not artist",
				"track", t.String(), "similarity", fmt.Sprintf("%.2f", best))
		}
		return nil, nil
	}

	return &results[idx], nil
}

func bestSimilarity(t track.Track, candidates []track.Track) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := track.Similarity(t, c); s > best {
			best = s
		}
	}
	return best
}
