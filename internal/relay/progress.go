package relay

import "fmt"

// ProgressUpdate represents a progress event during a relay pass.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pass phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Phase enumerates the states of one relay pass, in execution order.
type Phase int

const (
	FetchSource Phase = iota
	FetchRemote
	DiffRemovals
	ApplyResets
	PushAdditions
	ReverseSync
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchRemote:
		return "fetch_remote"
	case DiffRemovals:
		return "diff_removals"
	case ApplyResets:
		return "apply_resets"
	case PushAdditions:
		return "push_additions"
	case ReverseSync:
		return "reverse_sync"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never stalls the pass.
func (e *Engine) sendProgress(update ProgressUpdate) {
	if e.progress == nil {
		return
	}
	select {
	case e.progress <- update:
	default:
	}
}

func phaseUpdate(p Phase, step, total int, format string, args ...any) ProgressUpdate {
	return ProgressUpdate{
		Phase:   p,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf(format, args...),
	}
}
