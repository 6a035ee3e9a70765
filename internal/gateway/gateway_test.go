package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

type fakeSubmitter struct {
	lastCmd types.Command
	result  types.CommandResult
	err     error
	called  bool
}

func (f *fakeSubmitter) Submit(ctx context.Context, cmd types.Command) (types.CommandResult, error) {
	f.called = true
	f.lastCmd = cmd
	return f.result, f.err
}

func newTestGateway(t *testing.T, sub *fakeSubmitter) *Gateway {
	t.Helper()

	g, err := New(&Config{
		Orchestrator: sub,
		Timeout:      time.Second,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}

	return g
}

func TestExecute_ForwardsValidCommands(t *testing.T) {
	tests := []struct {
		name string
		cmd  types.Command
	}{
		{name: "create", cmd: types.Command{Kind: types.CommandCreate}},
		{name: "lock", cmd: types.Command{Kind: types.CommandLock}},
		{name: "payout", cmd: types.Command{Kind: types.CommandPayout}},
		{name: "payout_with_override", cmd: types.Command{Kind: types.CommandPayout, OutcomeOverride: "Serral"}},
		{name: "cancel", cmd: types.Command{Kind: types.CommandCancel}},
		{name: "ack", cmd: types.Command{Kind: types.CommandAck}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{result: types.CommandResult{Status: types.StatusApplied}}
			g := newTestGateway(t, sub)

			result := g.Execute(context.Background(), tt.cmd)
			if result.Status != types.StatusApplied {
				t.Errorf("status = %q, want %q", result.Status, types.StatusApplied)
			}
			if !sub.called {
				t.Error("command never reached the orchestrator")
			}
			if sub.lastCmd != tt.cmd {
				t.Errorf("forwarded %+v, want %+v", sub.lastCmd, tt.cmd)
			}
		})
	}
}

func TestExecute_RejectsInvalidShape(t *testing.T) {
	tests := []struct {
		name string
		cmd  types.Command
	}{
		{name: "unknown_kind", cmd: types.Command{Kind: "explode"}},
		{name: "override_on_lock", cmd: types.Command{Kind: types.CommandLock, OutcomeOverride: "Serral"}},
		{name: "override_whitespace", cmd: types.Command{Kind: types.CommandPayout, OutcomeOverride: " Serral"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			g := newTestGateway(t, sub)

			result := g.Execute(context.Background(), tt.cmd)
			if result.Status != types.StatusRejected {
				t.Errorf("status = %q, want %q", result.Status, types.StatusRejected)
			}
			if sub.called {
				t.Error("invalid command reached the orchestrator")
			}
		})
	}
}

func TestExecute_SubmitErrorBecomesFailed(t *testing.T) {
	sub := &fakeSubmitter{err: fmt.Errorf("queue full")}
	g := newTestGateway(t, sub)

	result := g.Execute(context.Background(), types.Command{Kind: types.CommandLock})
	if result.Status != types.StatusFailed {
		t.Errorf("status = %q, want %q", result.Status, types.StatusFailed)
	}
	if result.Reason == "" {
		t.Error("failed result has no reason")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("nil config accepted")
	}
	if _, err := New(&Config{Logger: zap.NewNop()}); err == nil {
		t.Error("nil orchestrator accepted")
	}
	if _, err := New(&Config{Orchestrator: &fakeSubmitter{}}); err == nil {
		t.Error("nil logger accepted")
	}
}
