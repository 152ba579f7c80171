// package services defines interface Adapter for the external taste
// services feedback is relayed to, and its ListenBrainz and Last.fm
// implementations.
package services

import (
	"context"

	"github.com/hc-nolan/ratingrelay/internal/track"
)

// Adapter is the uniform capability surface of one taste service.
//
// Implementations own no persistent state; remote state is re-fetched
// through AllLoved/AllHated on every pass because it can change
// independently (a user can un-love a track in the service's own UI).
type Adapter interface {
	// Name returns the service name for logs and stats.
	Name() string

	// SupportsHate reports whether the service records negative feedback.
	// Callers check this instead of probing Hate for a runtime error.
	SupportsHate() bool

	// Love records positive feedback for a track. Submitting a track the
	// service already loves must not duplicate state.
	Love(ctx context.Context, t track.Track) error

	// Hate records negative feedback for a track.
	Hate(ctx context.Context, t track.Track) error

	// Reset withdraws any feedback previously recorded for a track.
	// Idempotent.
	Reset(ctx context.Context, t track.Track) error

	// AllLoved enumerates every track the service currently reports as
	// loved, materialized into one slice.
	AllLoved(ctx context.Context) ([]track.Track, error)

	// AllHated enumerates every track the service currently reports as
	// hated. Services without negative feedback return an empty slice.
	AllHated(ctx context.Context) ([]track.Track, error)
}

// RecordingResolver resolves canonical recording IDs for adapters whose
// service is keyed on them. *musicbrainz.Resolver implements it.
type RecordingResolver interface {
	Resolve(ctx context.Context, t track.Track) (string, error)
}
