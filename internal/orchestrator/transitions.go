package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

// storeTimeout bounds the history write so a slow sink cannot stall the
// processing loop for long.
const storeTimeout = 5 * time.Second

// handleEvent applies one normalized feed event to the state machine.
func (o *Orchestrator) handleEvent(ev types.MatchEvent) {
	EventsTotal.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case types.MatchStarted:
		o.onMatchStarted(ev)
	case types.MatchEnded:
		o.onMatchEnded(ev)
	case types.MatchVoided:
		o.onMatchVoided()
	default:
		o.logger.Warn("unknown-event-type", zap.String("type", string(ev.Type)))
	}
}

func (o *Orchestrator) onMatchStarted(ev types.MatchEvent) {
	if len(ev.Teams) != 2 || ev.Teams[0] == "" || ev.Teams[1] == "" {
		o.logger.Warn("match-started-without-teams")
		return
	}

	o.match = matchState{
		teams:  []string{ev.Teams[0], ev.Teams[1]},
		bestOf: ev.BestOf,
	}

	o.logger.Info("match-started",
		zap.Strings("teams", o.match.teams),
		zap.Int("best-of", o.match.bestOf))

	if o.pred.State != types.StateIdle {
		// A prediction is still active; a voided event precedes any
		// replacement match, so this is just new team intel.
		return
	}

	if o.autoCreate || o.pendingCreate {
		o.pendingCreate = false
		if err := o.doCreate(); err != nil {
			o.logger.Error("auto-create-failed", zap.Error(err))
		}
	}
}

func (o *Orchestrator) onMatchEnded(ev types.MatchEvent) {
	o.match.winner = ev.Winner

	switch o.pred.State {
	case types.StateCreated:
		if err := o.doLock(); err != nil {
			o.logger.Error("lock-on-match-end-failed", zap.Error(err))
			return
		}
		if err := o.doResolve(ev.Winner); err != nil {
			o.logger.Error("resolve-on-match-end-failed", zap.Error(err))
		}
	case types.StateLocked:
		if err := o.doResolve(ev.Winner); err != nil {
			o.logger.Error("resolve-on-match-end-failed", zap.Error(err))
		}
	case types.StateResolving:
		// A resolve was interrupted before completing; retry with the
		// committed outcome regardless of what this event says.
		if err := o.doResolve(o.pred.WinningOutcome); err != nil {
			o.logger.Error("resolve-retry-failed", zap.Error(err))
		}
	default:
		o.logger.Debug("match-ended-ignored",
			zap.String("state", string(o.pred.State)),
			zap.String("winner", ev.Winner))
	}
}

func (o *Orchestrator) onMatchVoided() {
	o.pendingCreate = false
	o.match = matchState{}

	switch o.pred.State {
	case types.StateCreated, types.StateLocked:
		if err := o.doCancel(); err != nil {
			o.logger.Error("cancel-on-match-void-failed", zap.Error(err))
		}
	case types.StateResolving:
		// The outcome is already committed; the interrupted resolve wins.
		o.logger.Warn("match-voided-during-resolve",
			zap.String("committed-outcome", o.pred.WinningOutcome))
	default:
		o.logger.Debug("match-voided-ignored", zap.String("state", string(o.pred.State)))
	}
}

// handleLockDeadline processes the auto-lock timer. Fires from a previous
// prediction generation are ignored.
func (o *Orchestrator) handleLockDeadline(fire timerFire) {
	if fire.generation != o.generation || o.pred.State != types.StateCreated {
		return
	}

	o.logger.Info("lock-deadline-elapsed", zap.String("prediction-id", o.pred.ID))

	if err := o.doLock(); err != nil {
		o.logger.Error("auto-lock-failed", zap.Error(err))
	}
}

// handleCommand validates a manual command against current state and applies
// it. Commands that cannot be accepted are rejected without any remote call.
func (o *Orchestrator) handleCommand(cmd types.Command) types.CommandResult {
	switch cmd.Kind {
	case types.CommandCreate:
		return o.cmdCreate()
	case types.CommandLock:
		return o.cmdLock()
	case types.CommandPayout:
		return o.cmdPayout(cmd.OutcomeOverride)
	case types.CommandCancel:
		return o.cmdCancel()
	case types.CommandAck:
		return o.cmdAck()
	default:
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: fmt.Sprintf("unknown command %q", cmd.Kind),
		}
	}
}

func (o *Orchestrator) cmdCreate() types.CommandResult {
	if o.pred.State != types.StateIdle {
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: fmt.Sprintf("prediction already active (state %s)", o.pred.State),
		}
	}

	if len(o.match.teams) != 2 {
		// Buffer the intent; the create fires once teams are identified.
		o.pendingCreate = true
		o.logger.Info("create-buffered-awaiting-teams")
		return types.CommandResult{
			Status: types.StatusApplied,
			Reason: "buffered until team names are known",
		}
	}

	if err := o.doCreate(); err != nil {
		return types.CommandResult{Status: types.StatusFailed, Reason: err.Error()}
	}

	return types.CommandResult{Status: types.StatusApplied}
}

func (o *Orchestrator) cmdLock() types.CommandResult {
	switch o.pred.State {
	case types.StateCreated:
		if err := o.doLock(); err != nil {
			return types.CommandResult{Status: types.StatusFailed, Reason: err.Error()}
		}
		return types.CommandResult{Status: types.StatusApplied}
	case types.StateLocked:
		// Already locked, idempotent success.
		return types.CommandResult{Status: types.StatusApplied, Reason: "already locked"}
	default:
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: fmt.Sprintf("cannot lock in state %s", o.pred.State),
		}
	}
}

func (o *Orchestrator) cmdPayout(override string) types.CommandResult {
	switch o.pred.State {
	case types.StateCreated, types.StateLocked, types.StateResolving:
	default:
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: fmt.Sprintf("cannot payout in state %s", o.pred.State),
		}
	}

	winner := o.pred.WinningOutcome
	if winner == "" {
		winner = override
	}
	if winner == "" {
		winner = o.match.winner
	}
	if winner == "" {
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: "winning outcome not known; match may not be finished",
		}
	}

	if !o.validOutcome(winner) {
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: fmt.Sprintf("outcome %q is not one of the prediction outcomes", winner),
		}
	}

	if o.pred.State == types.StateCreated {
		if err := o.doLock(); err != nil {
			return types.CommandResult{Status: types.StatusFailed, Reason: err.Error()}
		}
	}

	if err := o.doResolve(winner); err != nil {
		return types.CommandResult{Status: types.StatusFailed, Reason: err.Error()}
	}

	return types.CommandResult{Status: types.StatusApplied}
}

func (o *Orchestrator) cmdCancel() types.CommandResult {
	switch o.pred.State {
	case types.StateCreated, types.StateLocked:
	default:
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: fmt.Sprintf("cannot cancel in state %s", o.pred.State),
		}
	}

	if err := o.doCancel(); err != nil {
		return types.CommandResult{Status: types.StatusFailed, Reason: err.Error()}
	}

	return types.CommandResult{Status: types.StatusApplied}
}

func (o *Orchestrator) cmdAck() types.CommandResult {
	if o.pred.State != types.StateFailed {
		return types.CommandResult{
			Status: types.StatusRejected,
			Reason: fmt.Sprintf("nothing to acknowledge in state %s", o.pred.State),
		}
	}

	o.logger.Info("failure-acknowledged", zap.String("prediction-id", o.pred.ID))
	o.finalize(types.StateFailed)

	return types.CommandResult{Status: types.StatusApplied}
}

// doCreate starts a prediction for the current match.
func (o *Orchestrator) doCreate() error {
	title := fmt.Sprintf("%s vs %s", o.match.teams[0], o.match.teams[1])
	if o.match.bestOf > 0 {
		title = fmt.Sprintf("%s (BO%d)", title, o.match.bestOf)
	}

	labels := []string{o.match.teams[0], o.match.teams[1]}

	id, err := o.remote.Create(o.ctx, title, labels, o.windowSeconds)
	if err != nil {
		o.toFailed("create", err)
		return fmt.Errorf("create prediction: %w", err)
	}

	now := time.Now()
	o.mu.Lock()
	o.pred = types.Prediction{
		ID:            id,
		Title:         title,
		OutcomeLabels: labels,
		State:         types.StateIdle, // published by setState below
		CreatedAt:     now,
		LockDeadline:  now.Add(time.Duration(o.windowSeconds) * time.Second),
	}
	o.mu.Unlock()
	o.setState(types.StateCreated)

	o.armLockTimer()

	return nil
}

// doLock closes wagers on the current prediction. Safe to call when the
// remote side already locked (auto-window elapsed server-side).
func (o *Orchestrator) doLock() error {
	err := o.remote.Lock(o.ctx, o.pred.ID)
	if err != nil {
		o.toFailed("lock", err)
		return fmt.Errorf("lock prediction: %w", err)
	}

	o.stopLockTimer()
	o.setState(types.StateLocked)

	return nil
}

// doResolve commits the winning outcome (first call only) and pays out.
// Every retry resolves with the committed outcome, never a different one.
func (o *Orchestrator) doResolve(winner string) error {
	o.mu.Lock()
	if o.pred.WinningOutcome == "" {
		o.pred.WinningOutcome = winner
	}
	committed := o.pred.WinningOutcome
	o.mu.Unlock()

	if committed != winner {
		o.logger.Warn("resolve-outcome-already-committed",
			zap.String("committed", committed),
			zap.String("requested", winner))
	}

	o.setState(types.StateResolving)

	err := o.remote.Resolve(o.ctx, o.pred.ID, committed)
	if err != nil {
		o.toFailed("resolve", err)
		return fmt.Errorf("resolve prediction: %w", err)
	}

	o.setState(types.StateResolved)
	o.finalize(types.StateResolved)

	return nil
}

// doCancel voids the prediction and refunds participants.
func (o *Orchestrator) doCancel() error {
	err := o.remote.Cancel(o.ctx, o.pred.ID)
	if err != nil {
		o.toFailed("cancel", err)
		return fmt.Errorf("cancel prediction: %w", err)
	}

	o.stopLockTimer()
	o.setState(types.StateCancelled)
	o.finalize(types.StateCancelled)

	return nil
}

// toFailed moves the prediction to Failed after a remote failure. Failed is
// terminal until acknowledged; it is never cleared silently.
func (o *Orchestrator) toFailed(op string, err error) {
	RemoteFailuresTotal.WithLabelValues(op).Inc()
	o.stopLockTimer()

	o.logger.Error("prediction-failed",
		zap.String("op", op),
		zap.String("prediction-id", o.pred.ID),
		zap.Error(err))

	o.setState(types.StateFailed)
}

// finalize records the terminal outcome and resets to Idle so a new
// prediction can begin.
func (o *Orchestrator) finalize(final types.State) {
	if o.store != nil && o.pred.ID != "" {
		rec := &Record{
			ID:             uuid.NewString(),
			PredictionID:   o.pred.ID,
			Title:          o.pred.Title,
			OutcomeLabels:  o.pred.OutcomeLabels,
			FinalState:     final,
			WinningOutcome: o.pred.WinningOutcome,
			CreatedAt:      o.pred.CreatedAt,
			EndedAt:        time.Now(),
		}

		// History is best-effort and must not stall the processing loop;
		// the write runs off-loop and Close waits for it.
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()

			storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()

			if err := o.store.StoreRecord(storeCtx, rec); err != nil {
				o.logger.Error("store-record-failed", zap.Error(err))
			}
		}()
	}

	o.stopLockTimer()
	o.generation++

	o.mu.Lock()
	o.pred = types.Prediction{State: types.StateIdle}
	o.mu.Unlock()

	TransitionsTotal.WithLabelValues(string(final), string(types.StateIdle)).Inc()
	o.logger.Info("prediction-reset", zap.String("final-state", string(final)))
}

func (o *Orchestrator) validOutcome(label string) bool {
	for _, l := range o.pred.OutcomeLabels {
		if l == label {
			return true
		}
	}
	return false
}

// armLockTimer schedules the local auto-lock at the lock deadline. The remote
// side locks on its own at the window; this converges local state without
// waiting for a feed signal.
func (o *Orchestrator) armLockTimer() {
	o.stopLockTimer()

	gen := o.generation
	wait := time.Until(o.pred.LockDeadline)

	o.lockTimer = time.AfterFunc(wait, func() {
		select {
		case o.queue <- queueItem{timer: &timerFire{generation: gen}}:
		case <-o.ctx.Done():
		}
	})
}

func (o *Orchestrator) stopLockTimer() {
	if o.lockTimer != nil {
		o.lockTimer.Stop()
		o.lockTimer = nil
	}
}
