package types

import "time"

// State is the lifecycle state of the current prediction.
type State string

// Prediction lifecycle states. Resolving is distinct from Locked so that a
// resolve call interrupted mid-flight can be detected and retried with the
// same committed outcome.
const (
	StateIdle      State = "idle"
	StateCreated   State = "created"
	StateLocked    State = "locked"
	StateResolving State = "resolving"
	StateResolved  State = "resolved"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether the state ends the prediction's lifecycle.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateCancelled || s == StateFailed
}

// Prediction is the single active wagering event managed by the orchestrator.
// Only the orchestrator's processing loop mutates it.
type Prediction struct {
	// ID is assigned by Twitch once the create call succeeds.
	ID    string
	Title string

	// OutcomeLabels holds exactly two outcome names (team names) in order.
	// Immutable once the prediction is created.
	OutcomeLabels []string

	State State

	// WinningOutcome is committed at the first transition to Resolving and
	// never changed afterwards, even across retried resolve calls.
	WinningOutcome string

	CreatedAt time.Time

	// LockDeadline is zero when auto-lock is disabled (manual lock only).
	LockDeadline time.Time
}

// Snapshot is a read-only copy of the prediction for HTTP consumers.
type Snapshot struct {
	ID             string    `json:"id,omitempty"`
	Title          string    `json:"title,omitempty"`
	OutcomeLabels  []string  `json:"outcome_labels,omitempty"`
	State          State     `json:"state"`
	WinningOutcome string    `json:"winning_outcome,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	LockDeadline   time.Time `json:"lock_deadline,omitempty"`
}

// Snapshot returns a copy safe to hand outside the processing loop.
func (p *Prediction) Snapshot() Snapshot {
	labels := make([]string, len(p.OutcomeLabels))
	copy(labels, p.OutcomeLabels)

	return Snapshot{
		ID:             p.ID,
		Title:          p.Title,
		OutcomeLabels:  labels,
		State:          p.State,
		WinningOutcome: p.WinningOutcome,
		CreatedAt:      p.CreatedAt,
		LockDeadline:   p.LockDeadline,
	}
}
