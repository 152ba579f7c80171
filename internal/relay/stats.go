package relay

// AdapterStats counts per-service outcomes for one pass.
type AdapterStats struct {
	Loved   int  // new loves pushed this pass
	Hated   int  // new hates pushed this pass
	Resets  int  // feedback withdrawals applied this pass
	Skipped int  // tracks skipped (already present, or unresolvable)
	Failed  bool // adapter abandoned partway through the pass
}

// PassResult reports what one pass did. Counters are reported even when
// some adapters were skipped or failed partway.
type PassResult struct {
	SourceLoved int // tracks at or above the love threshold on the source
	SourceHated int // tracks at or below the hate threshold on the source

	Adapters map[string]*AdapterStats

	ResetsStaged  int // entries moved into reset-pending this pass
	ResetsCleared int // reset-pending entries fully withdrawn and deleted
	ResetsPending int // entries still pending after the pass

	SourceAdded int // ratings imported into the source in two-way mode

	// Degraded is true when at least one adapter failed partway. A
	// degraded pass still returns a nil error; only a fully failed pass
	// (source unreachable, no adapters) is an error.
	Degraded bool
}

func newPassResult() *PassResult {
	return &PassResult{Adapters: make(map[string]*AdapterStats)}
}
