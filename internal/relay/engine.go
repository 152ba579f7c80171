// package relay implements the reconciliation pass between the
// authoritative media server and the configured taste services.
//
// A pass is fully sequential: fetch source state, fetch each service's
// remote state, stage removals into the ledger's reset-pending partition,
// apply resets, then diff and push additions. Withdrawals run before
// additions so a track that moved between partitions ends the pass with
// its new feedback intact. The ledger commits after every mutation, so an
// interrupted pass resumes safely on the next run.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/ledger"
	"github.com/hc-nolan/ratingrelay/internal/plex"
	"github.com/hc-nolan/ratingrelay/internal/services"
	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

// Engine drives relay passes. Construct with [NewEngine].
type Engine struct {
	source   plex.Source
	resolver services.RecordingResolver
	ledger   *ledger.Ledger
	adapters []services.Adapter
	cfg      *shared.Config
	logger   *log.Logger
	progress chan<- ProgressUpdate
}

// EngineOpts contains the collaborators an Engine needs.
type EngineOpts struct {
	Source   plex.Source
	Resolver services.RecordingResolver
	Ledger   *ledger.Ledger
	Adapters []services.Adapter // nil entries (unconfigured services) are dropped
	Config   *shared.Config
	Logger   *log.Logger
	Progress chan<- ProgressUpdate
}

// NewEngine creates an Engine from the configured collaborators. At least
// one taste service must be available or the pass could do nothing.
func NewEngine(opts EngineOpts) (*Engine, error) {
	var adapters []services.Adapter
	for _, a := range opts.Adapters {
		if a != nil {
			adapters = append(adapters, a)
		}
	}
	if len(adapters) == 0 {
		return nil, shared.ErrNoServices
	}
	if opts.Source == nil {
		return nil, shared.ErrSourceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Engine{
		source:   opts.Source,
		resolver: opts.Resolver,
		ledger:   opts.Ledger,
		adapters: adapters,
		cfg:      opts.Config,
		logger:   opts.Logger,
		progress: opts.Progress,
	}, nil
}

// remote is one adapter's state snapshot for the current pass. Remote
// state is always re-fetched per pass; users can change feedback in the
// service's own UI between runs.
type remote struct {
	adapter services.Adapter
	loved   []track.Track
	hated   []track.Track
	lovedID map[string]bool
	hatedID map[string]bool
	stats   *AdapterStats
}

// failed reports whether this adapter has been abandoned for the pass.
func (r *remote) failed() bool { return r.stats.Failed }

// fail abandons the adapter's remaining work for this pass. Other
// adapters and ledger bookkeeping continue.
func (r *remote) fail(logger *log.Logger, err error) {
	logger.Error("abandoning service for this pass", "service", r.adapter.Name(), "err", err)
	r.stats.Failed = true
}

// containsLoved reports whether the adapter's loved snapshot has the
// track: by recording ID when both sides have one, by fuzzy title/artist
// match otherwise.
func (r *remote) containsLoved(t track.Track, logger *log.Logger) bool {
	return contains(t, r.loved, r.lovedID, logger)
}

func (r *remote) containsHated(t track.Track, logger *log.Logger) bool {
	return contains(t, r.hated, r.hatedID, logger)
}

func contains(t track.Track, list []track.Track, ids map[string]bool, logger *log.Logger) bool {
	if t.RecordingID != "" && ids[t.RecordingID] {
		return true
	}
	idx, nearMiss := track.Match(t, list)
	if idx >= 0 {
		return true
	}
	if nearMiss {
		// Usually a data quality issue worth a look, not a silent drop.
		logger.Warn("title matched remotely but artist did not", "track", t.String())
	}
	return false
}

// Run executes one relay pass and reports its counters. A degraded pass
// (some adapter failed partway) returns a result and nil error; a fully
// failed pass (source unreachable) returns an error.
func (e *Engine) Run(ctx context.Context) (*PassResult, error) {
	res := newPassResult()
	remotes := make([]*remote, 0, len(e.adapters))
	for _, a := range e.adapters {
		r := &remote{adapter: a, stats: &AdapterStats{}}
		res.Adapters[a.Name()] = r.stats
		remotes = append(remotes, r)
	}

	e.sendProgress(phaseUpdate(FetchSource, 1, 1, "Querying media server for rated tracks..."))
	lovedRaw, err := e.source.TracksAbove(ctx, e.cfg.Relay.LoveThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}
	e.logger.Info("fetched loved tracks from source", "count", len(lovedRaw))

	var hatedRaw []plex.RawTrack
	if e.cfg.HateEnabled() {
		hatedRaw, err = e.source.TracksBelow(ctx, e.cfg.Relay.HateThreshold)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
		}
		e.logger.Info("fetched hated tracks from source", "count", len(hatedRaw))
	}

	res.SourceLoved = len(lovedRaw)
	res.SourceHated = len(hatedRaw)

	e.fetchRemotes(ctx, remotes)

	loved := e.identify(ctx, lovedRaw, ledger.Loved)
	var hated []track.Track
	if e.cfg.HateEnabled() {
		hated = e.identify(ctx, hatedRaw, ledger.Hated)
	}

	// Removals and resets run before additions so a track that flipped
	// partition (loved last pass, hated now) keeps its new feedback: the
	// stale entry's reset lands first, the push lands last. The hated
	// partition is left untouched when hate syncing is disabled; an empty
	// fetch means "not propagating", not "nothing qualifies".
	e.stageRemovals(loved, ledger.Loved, res)
	if e.cfg.HateEnabled() {
		e.stageRemovals(hated, ledger.Hated, res)
	}

	e.applyResets(ctx, remotes, res)

	e.pushAdditions(ctx, loved, ledger.Loved, remotes, res)
	e.pushAdditions(ctx, hated, ledger.Hated, remotes, res)

	if e.cfg.Relay.TwoWay {
		e.reverseSync(ctx, remotes, loved, hated, res)
	}

	for _, r := range remotes {
		if r.failed() {
			res.Degraded = true
		}
	}

	e.sendProgress(phaseUpdate(Done, 1, 1, "Pass complete"))
	return res, nil
}

// fetchRemotes snapshots each adapter's current feedback. An adapter that
// cannot even be enumerated is abandoned for the pass.
func (e *Engine) fetchRemotes(ctx context.Context, remotes []*remote) {
	for i, r := range remotes {
		e.sendProgress(phaseUpdate(FetchRemote, i+1, len(remotes), "Fetching feedback from %s...", r.adapter.Name()))

		loved, err := r.adapter.AllLoved(ctx)
		if err != nil {
			r.fail(e.logger, err)
			continue
		}
		r.loved = loved
		r.lovedID = idSet(loved)
		e.logger.Info("fetched remote loved tracks", "service", r.adapter.Name(), "count", len(loved))

		if r.adapter.SupportsHate() {
			hated, err := r.adapter.AllHated(ctx)
			if err != nil {
				r.fail(e.logger, err)
				continue
			}
			r.hated = hated
			r.hatedID = idSet(hated)
			e.logger.Info("fetched remote hated tracks", "service", r.adapter.Name(), "count", len(hated))
		}
	}
}

func idSet(tracks []track.Track) map[string]bool {
	ids := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if t.RecordingID != "" {
			ids[t.RecordingID] = true
		}
	}
	return ids
}

// identify establishes canonical identities for the source's current
// tracks. The ledger is consulted before the metadata resolver, which
// keeps previously resolved IDs stable and avoids redundant external
// queries. Tracks that cannot be resolved are skipped for this pass; they
// stay in the source's current set and are retried next pass.
func (e *Engine) identify(ctx context.Context, raw []plex.RawTrack, p ledger.Partition) []track.Track {
	var out []track.Track
	seen := make(map[string]bool, len(raw))

	for _, rt := range raw {
		t := rt.Identity()

		entry, err := e.ledger.FindByLocalID(p, t.LocalID, t.Title, t.Artist)
		if err != nil {
			e.logger.Error("ledger lookup failed", "track", t.String(), "err", err)
			continue
		}

		if entry != nil && entry.RecordingID != "" {
			t.RecordingID = entry.RecordingID
		} else {
			id, err := e.resolver.Resolve(ctx, t)
			if err != nil {
				e.logger.Warn("recording lookup failed", "track", t.String(), "err", err)
				continue
			}
			if id == "" {
				e.logger.Warn("skipping unresolvable track for this pass", "track", t.String())
				continue
			}
			t.RecordingID = id
		}

		if seen[t.RecordingID] {
			continue
		}
		seen[t.RecordingID] = true

		// RatingKey is not part of identity; reverse sync re-queries for it.
		out = append(out, t)
	}

	return out
}

// pushAdditions records the current source set in the ledger and pushes
// feedback to each adapter whose remote snapshot does not already contain
// the track.
func (e *Engine) pushAdditions(ctx context.Context, current []track.Track, p ledger.Partition, remotes []*remote, res *PassResult) {
	if len(current) == 0 {
		return
	}

	e.sendProgress(phaseUpdate(PushAdditions, 1, len(current), "Pushing %s tracks...", p))

	for i, t := range current {
		e.sendProgress(phaseUpdate(PushAdditions, i+1, len(current), "Pushing %s: %s", p, t.String()))

		if err := e.ledger.Add(p, ledger.EntryFor(t)); err != nil {
			e.logger.Error("ledger insert failed", "track", t.String(), "err", err)
			continue
		}

		for _, r := range remotes {
			if r.failed() {
				continue
			}

			switch p {
			case ledger.Loved:
				if r.containsLoved(t, e.logger) {
					e.logger.Debug("already loved", "service", r.adapter.Name(), "track", t.String())
					r.stats.Skipped++
					continue
				}
				e.logger.Info("new love", "service", r.adapter.Name(), "track", t.String())
				if err := r.adapter.Love(ctx, t); err != nil {
					r.fail(e.logger, err)
					continue
				}
				r.stats.Loved++
			case ledger.Hated:
				if !r.adapter.SupportsHate() {
					continue
				}
				if r.containsHated(t, e.logger) {
					e.logger.Debug("already hated", "service", r.adapter.Name(), "track", t.String())
					r.stats.Skipped++
					continue
				}
				e.logger.Info("new hate", "service", r.adapter.Name(), "track", t.String())
				if err := r.adapter.Hate(ctx, t); err != nil {
					r.fail(e.logger, err)
					continue
				}
				r.stats.Hated++
			}
		}
	}
}

// stageRemovals moves ledger entries that no longer appear in the
// source's current set into the reset-pending partition. This is the only
// way entries leave loved/hated.
func (e *Engine) stageRemovals(current []track.Track, p ledger.Partition, res *PassResult) {
	entries, err := e.ledger.All(p)
	if err != nil {
		e.logger.Error("ledger enumeration failed", "partition", p, "err", err)
		return
	}

	currentIDs := make(map[string]bool, len(current))
	currentKeys := make(map[string]bool, len(current))
	for _, t := range current {
		if t.RecordingID != "" {
			currentIDs[t.RecordingID] = true
		}
		currentKeys[t.Key()] = true
	}

	e.sendProgress(phaseUpdate(DiffRemovals, 1, 1, "Checking for tracks to reset (%s)...", p))

	for _, entry := range entries {
		present := false
		if entry.RecordingID != "" {
			present = currentIDs[entry.RecordingID]
		} else {
			present = currentKeys[entry.Track().Key()]
		}
		if present {
			continue
		}

		e.logger.Info("track no longer meets threshold", "partition", p, "track", entry.Track().String())
		if err := e.ledger.Move(p, ledger.ResetPending, entry); err != nil {
			e.logger.Error("failed to stage reset", "track", entry.Track().String(), "err", err)
			continue
		}
		res.ResetsStaged++
	}
}

// applyResets withdraws feedback for every reset-pending entry on every
// adapter, then deletes the entry. Entries that could not be withdrawn
// everywhere stay pending; retrying them next pass is free and idempotent.
func (e *Engine) applyResets(ctx context.Context, remotes []*remote, res *PassResult) {
	entries, err := e.ledger.All(ledger.ResetPending)
	if err != nil {
		e.logger.Error("ledger enumeration failed", "partition", ledger.ResetPending, "err", err)
		return
	}

	for i, entry := range entries {
		t := entry.Track()
		e.sendProgress(phaseUpdate(ApplyResets, i+1, len(entries), "Resetting %s", t.String()))

		cleared := true
		for _, r := range remotes {
			if r.failed() {
				cleared = false
				continue
			}

			err := r.adapter.Reset(ctx, t)
			if errors.Is(err, shared.ErrNoRecordingID) {
				// Recording-keyed services cannot reset without an ID.
				// Leaving the entry pending is safe: retry is free.
				e.logger.Warn("cannot reset without recording ID, leaving pending", "service", r.adapter.Name(), "track", t.String())
				cleared = false
				continue
			}
			if err != nil {
				r.fail(e.logger, err)
				cleared = false
				continue
			}
			r.stats.Resets++
		}

		if cleared {
			if err := e.ledger.DeleteByID(ledger.ResetPending, entry.ID); err != nil {
				e.logger.Error("failed to clear reset entry", "track", t.String(), "err", err)
				continue
			}
			res.ResetsCleared++
		}
	}

	if pending, err := e.ledger.Count(ledger.ResetPending); err == nil {
		res.ResetsPending = pending
	}
}
