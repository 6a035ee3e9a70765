package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

// Feed maintains the long-lived websocket connection to the SCCT score
// broadcast and normalizes its messages into domain match events.
type Feed struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	config       Config
	tracker      *matchTracker
	eventChan    chan types.MatchEvent
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	connected    atomic.Bool
}

// Config holds feed configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	EventBufferSize       int
	Logger                *zap.Logger
}

// New creates a new SCCT feed.
func New(cfg Config) *Feed {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Feed{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		tracker:      &matchTracker{},
		eventChan:    make(chan types.MatchEvent, cfg.EventBufferSize),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start connects to SCCT and starts the feed goroutines. The initial
// connection failing is not fatal: the reconnect loop keeps trying, since the
// caster may simply not be running yet.
func (f *Feed) Start() error {
	f.logger.Info("feed-starting", zap.String("url", f.url))

	err := f.connect(f.ctx)
	if err != nil {
		f.logger.Warn("initial-connection-failed-will-retry", zap.Error(err))
	} else {
		f.wg.Add(1)
		go f.readLoop()
	}

	f.wg.Add(2)
	go f.pingLoop()
	go f.reconnectLoop()

	return nil
}

// connect establishes a websocket connection to SCCT.
func (f *Feed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: f.config.DialTimeout,
	}

	f.logger.Info("connecting-to-scct", zap.String("url", f.url))

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.connected.Store(true)
	FeedConnected.Set(1)

	f.logger.Info("scct-connected")

	return nil
}

// Connected reports whether the feed currently has a live connection.
func (f *Feed) Connected() bool {
	return f.connected.Load()
}

// EventChan returns the channel of normalized match events.
func (f *Feed) EventChan() <-chan types.MatchEvent {
	return f.eventChan
}

// readLoop reads scoreboard messages until the connection drops.
func (f *Feed) readLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn("read-error", zap.Error(err))
			f.connected.Store(false)
			FeedConnected.Set(0)
			return
		}

		var msg scoreboardMessage
		err = json.Unmarshal(message, &msg)
		if err != nil {
			preview := string(message)
			if len(preview) > 100 {
				preview = preview[:100]
			}
			f.logger.Debug("unparseable-scct-message",
				zap.Error(err),
				zap.String("preview", preview))
			continue
		}

		MessagesReceivedTotal.WithLabelValues(msg.Event).Inc()

		// Only the full-state broadcast carries match details.
		if msg.Event != "ALL_DATA" {
			f.logger.Debug("scct-control-message", zap.String("event", msg.Event))
			continue
		}

		// The send blocks when the consumer lags. Lifecycle events must
		// arrive in order and without gaps, so backpressure stalls the
		// read loop rather than dropping an event.
		for _, ev := range f.tracker.observe(msg.Data, time.Now()) {
			EventsEmittedTotal.WithLabelValues(string(ev.Type)).Inc()

			select {
			case f.eventChan <- ev:
			case <-f.ctx.Done():
				return
			}
		}
	}
}

// pingLoop sends periodic PING messages to keep the connection alive.
func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			if !f.connected.Load() {
				continue
			}

			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				f.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop re-establishes the connection when it drops. After a
// reconnect the tracker is resynced so the first snapshot re-derives the
// match state instead of assuming continuity across the gap.
func (f *Feed) reconnectLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		if f.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		f.logger.Warn("connection-lost-initiating-reconnect")

		err := f.reconnectMgr.Reconnect(f.ctx, f.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			f.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		f.tracker.resync()

		f.logger.Info("reconnection-complete-restarting-read-loop")

		f.wg.Add(1)
		go f.readLoop()
	}
}

// Close gracefully shuts down the feed.
func (f *Feed) Close() error {
	f.logger.Info("closing-feed")

	f.cancel()

	f.mu.RLock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.RUnlock()

	f.wg.Wait()

	close(f.eventChan)

	FeedConnected.Set(0)

	f.logger.Info("feed-closed")

	return nil
}
