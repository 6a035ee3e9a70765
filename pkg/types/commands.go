package types

// CommandKind identifies a manual trigger command from the control surface.
type CommandKind string

const (
	CommandCreate CommandKind = "create"
	CommandLock   CommandKind = "lock"
	CommandPayout CommandKind = "payout"
	CommandCancel CommandKind = "cancel"
	// CommandAck acknowledges a failed prediction so the engine returns to
	// idle. Failed is never cleared silently.
	CommandAck CommandKind = "ack"
)

// Valid reports whether the kind is a known command.
func (k CommandKind) Valid() bool {
	switch k {
	case CommandCreate, CommandLock, CommandPayout, CommandCancel, CommandAck:
		return true
	}
	return false
}

// Command is a validated manual trigger forwarded to the orchestrator queue.
type Command struct {
	Kind CommandKind `json:"command"`

	// OutcomeOverride forces the winning outcome on payout instead of the
	// feed-derived winner. Must match one of the prediction's outcome labels.
	OutcomeOverride string `json:"outcome_override,omitempty"`
}

// CommandStatus is the synchronous processing result reported to the caller.
type CommandStatus string

const (
	// StatusApplied means the command was accepted and the remote call (if
	// any) succeeded.
	StatusApplied CommandStatus = "applied"
	// StatusRejected means the command is invalid in the current state. No
	// remote call was made and no state changed.
	StatusRejected CommandStatus = "rejected"
	// StatusFailed means the command was accepted but the remote call failed.
	StatusFailed CommandStatus = "failed"
)

// CommandResult is returned to the gateway caller once the orchestrator has
// processed the command.
type CommandResult struct {
	Status CommandStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}
