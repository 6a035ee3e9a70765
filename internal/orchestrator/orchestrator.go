package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

// RemoteClient is the outbound prediction API surface the orchestrator
// drives. Calls block until they succeed, exhaust retries or hit a terminal
// error; the orchestrator never issues a second call while one is in flight.
type RemoteClient interface {
	Create(ctx context.Context, title string, outcomes []string, windowSeconds int) (string, error)
	Lock(ctx context.Context, id string) error
	Resolve(ctx context.Context, id, winningOutcome string) error
	Cancel(ctx context.Context, id string) error
}

// Record is the terminal outcome of one prediction, written to storage once
// its lifecycle ends.
type Record struct {
	ID             string
	PredictionID   string
	Title          string
	OutcomeLabels  []string
	FinalState     types.State
	WinningOutcome string
	CreatedAt      time.Time
	EndedAt        time.Time
}

// Storage is the sink for finished prediction records.
type Storage interface {
	StoreRecord(ctx context.Context, rec *Record) error
	Close() error
}

// queueItem is one unit of work on the serialized queue: a feed event, a
// manual command awaiting a reply, or an auto-lock timer firing.
type queueItem struct {
	event *types.MatchEvent
	cmd   *types.Command
	reply chan types.CommandResult
	timer *timerFire
}

// timerFire carries the generation the auto-lock timer was armed for, so a
// stale fire after a reset is ignored.
type timerFire struct {
	generation uint64
}

// matchState is the orchestrator's view of the current match, fed by the
// event stream. Teams may become known before or after a create intent.
type matchState struct {
	teams  []string
	bestOf int
	winner string
}

// Orchestrator is the single writer of prediction state. All feed events and
// manual commands funnel through one ordered queue and are processed one at a
// time, which removes interleaving races by construction.
type Orchestrator struct {
	remote RemoteClient
	store  Storage
	logger *zap.Logger

	// windowSeconds is the auto-lock window passed to create calls.
	windowSeconds int

	autoCreate bool

	queue  chan queueItem
	events <-chan types.MatchEvent

	mu   sync.RWMutex
	pred types.Prediction

	// Loop-owned state, never touched outside the processing goroutine.
	generation    uint64
	match         matchState
	pendingCreate bool
	lockTimer     *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds orchestrator configuration.
type Config struct {
	Remote        RemoteClient
	Storage       Storage
	Events        <-chan types.MatchEvent
	WindowSeconds int
	AutoCreate    bool
	QueueSize     int
	Logger        *zap.Logger
}

// New creates a new orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Remote == nil {
		return nil, fmt.Errorf("remote client cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.WindowSeconds < 1 {
		return nil, fmt.Errorf("window seconds must be positive")
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Orchestrator{
		remote:        cfg.Remote,
		store:         cfg.Storage,
		logger:        cfg.Logger,
		windowSeconds: cfg.WindowSeconds,
		autoCreate:    cfg.AutoCreate,
		queue:         make(chan queueItem, queueSize),
		events:        cfg.Events,
		pred:          types.Prediction{State: types.StateIdle},
	}, nil
}

// Start launches the processing loop and the feed pump.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.ctx, o.cancel = context.WithCancel(ctx)

	o.logger.Info("orchestrator-starting",
		zap.Int("window-seconds", o.windowSeconds),
		zap.Bool("auto-create", o.autoCreate))

	// An adopted still-open prediction needs its auto-lock re-armed. A
	// deadline already in the past fires immediately and locks on the
	// first loop iteration.
	if o.pred.State == types.StateCreated && !o.pred.LockDeadline.IsZero() {
		o.armLockTimer()
	}

	// Pump feed events into the single ordered queue so they serialize with
	// manual commands in arrival order.
	o.wg.Add(1)
	go o.pumpEvents()

	o.wg.Add(1)
	go o.processLoop()

	return nil
}

func (o *Orchestrator) pumpEvents() {
	defer o.wg.Done()

	if o.events == nil {
		return
	}

	for {
		select {
		case <-o.ctx.Done():
			return
		case ev, ok := <-o.events:
			if !ok {
				return
			}
			evCopy := ev
			select {
			case o.queue <- queueItem{event: &evCopy}:
			case <-o.ctx.Done():
				return
			}
		}
	}
}

func (o *Orchestrator) processLoop() {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			return
		case item := <-o.queue:
			o.process(item)
		}
	}
}

func (o *Orchestrator) process(item queueItem) {
	switch {
	case item.event != nil:
		o.handleEvent(*item.event)
	case item.cmd != nil:
		result := o.handleCommand(*item.cmd)
		CommandsTotal.WithLabelValues(string(item.cmd.Kind), string(result.Status)).Inc()
		if item.reply != nil {
			// Buffered reply channel: never blocks the loop.
			item.reply <- result
		}
	case item.timer != nil:
		o.handleLockDeadline(*item.timer)
	}
}

// Submit enqueues a manual command and blocks until the orchestrator reports
// the processing result, or ctx expires.
func (o *Orchestrator) Submit(ctx context.Context, cmd types.Command) (types.CommandResult, error) {
	reply := make(chan types.CommandResult, 1)

	select {
	case o.queue <- queueItem{cmd: &cmd, reply: reply}:
	case <-ctx.Done():
		return types.CommandResult{}, fmt.Errorf("enqueue command: %w", ctx.Err())
	}

	select {
	case result := <-reply:
		return result, nil
	case <-ctx.Done():
		return types.CommandResult{}, fmt.Errorf("await command result: %w", ctx.Err())
	}
}

// Adopt seeds the orchestrator with a prediction discovered on the remote
// side at startup, so a crash/restart mid-lifecycle resumes instead of
// desynchronizing. A non-zero lockDeadline re-arms the auto-lock for a
// still-open prediction once Start runs. Must be called before Start.
func (o *Orchestrator) Adopt(id, title string, labels []string, state types.State, winner string, lockDeadline time.Time) {
	o.mu.Lock()
	o.pred = types.Prediction{
		ID:             id,
		Title:          title,
		OutcomeLabels:  labels,
		State:          state,
		WinningOutcome: winner,
		CreatedAt:      time.Now(),
		LockDeadline:   lockDeadline,
	}
	o.mu.Unlock()

	o.logger.Info("prediction-adopted-from-remote",
		zap.String("prediction-id", id),
		zap.String("state", string(state)))
}

// Snapshot returns a read-only copy of the current prediction.
func (o *Orchestrator) Snapshot() types.Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.pred.Snapshot()
}

// setState publishes a state transition.
func (o *Orchestrator) setState(to types.State) {
	o.mu.Lock()
	from := o.pred.State
	o.pred.State = to
	o.mu.Unlock()

	TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	o.logger.Info("prediction-state-changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("prediction-id", o.pred.ID))
}

// Close stops the orchestrator and waits for the loop to drain.
func (o *Orchestrator) Close() error {
	o.logger.Info("closing-orchestrator")

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.stopLockTimer()

	o.logger.Info("orchestrator-closed")

	return nil
}
