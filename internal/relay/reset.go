package relay

import (
	"context"

	"github.com/hc-nolan/ratingrelay/internal/ledger"
	"github.com/hc-nolan/ratingrelay/internal/services"
)

// ResetResult reports what a full rollback withdrew.
type ResetResult struct {
	Adapters     map[string]int // feedback withdrawals per service
	SourceReset  int            // source ratings cleared (full rollback only)
	LedgerPurged int            // ledger entries removed
	Degraded     bool
}

// ResetAll withdraws every piece of feedback previously recorded on every
// configured adapter, and purges the ledger. When includeSource is true
// the media server's own loved/hated ratings are cleared as well.
//
// This is destructive and irreversible for the whole account; the CLI
// requires explicit confirmation before calling it.
func (e *Engine) ResetAll(ctx context.Context, includeSource bool) (*ResetResult, error) {
	res := &ResetResult{Adapters: make(map[string]int)}

	for _, a := range e.adapters {
		count, err := e.resetAdapter(ctx, a)
		res.Adapters[a.Name()] = count
		if err != nil {
			e.logger.Error("abandoning service reset", "service", a.Name(), "err", err)
			res.Degraded = true
		}
	}

	if includeSource {
		count, err := e.resetSource(ctx)
		res.SourceReset = count
		if err != nil {
			e.logger.Error("source rollback incomplete", "err", err)
			res.Degraded = true
		}
	}

	for _, p := range ledger.Partitions {
		entries, err := e.ledger.All(p)
		if err != nil {
			return res, err
		}
		for _, entry := range entries {
			if err := e.ledger.DeleteByID(p, entry.ID); err != nil {
				return res, err
			}
			res.LedgerPurged++
		}
	}

	return res, nil
}

// resetAdapter withdraws everything one service currently reports.
// Rate-limit retry is handled inside the adapter; an error escaping here
// abandons the rest of this service's rollback.
func (e *Engine) resetAdapter(ctx context.Context, adapter services.Adapter) (int, error) {
	loved, err := adapter.AllLoved(ctx)
	if err != nil {
		return 0, err
	}
	hated, err := adapter.AllHated(ctx)
	if err != nil {
		return 0, err
	}

	all := append(loved, hated...)
	e.logger.Info("resetting service feedback", "service", adapter.Name(), "count", len(all))

	count := 0
	for i, t := range all {
		e.logger.Debug("resetting", "service", adapter.Name(), "progress", i+1, "total", len(all), "track", t.String())
		if err := adapter.Reset(ctx, t); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// resetSource clears the rating on every track currently above the love
// threshold or below the hate threshold on the media server.
func (e *Engine) resetSource(ctx context.Context) (int, error) {
	tracks, err := e.source.TracksAbove(ctx, e.cfg.Relay.LoveThreshold)
	if err != nil {
		return 0, err
	}
	if e.cfg.HateEnabled() {
		hated, err := e.source.TracksBelow(ctx, e.cfg.Relay.HateThreshold)
		if err != nil {
			return 0, err
		}
		tracks = append(tracks, hated...)
	}

	e.logger.Info("clearing source ratings", "count", len(tracks))

	count := 0
	for _, rt := range tracks {
		if err := e.source.Rate(ctx, rt.RatingKey, 0); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
