package feed

import (
	"testing"
	"time"

	"github.com/jaedolph/scct-predictions/pkg/types"
)

func TestScoreboardWinner(t *testing.T) {
	tests := []struct {
		name      string
		data      scoreboardData
		wantName  string
		wantDrawn bool
	}{
		{
			name:     "bo5_team1_reaches_three",
			data:     scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 3, Score2: 1},
			wantName: "Maru",
		},
		{
			name:     "bo5_team2_reaches_three",
			data:     scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 2, Score2: 3},
			wantName: "Serral",
		},
		{
			name: "bo5_still_live",
			data: scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 2, Score2: 2},
		},
		{
			name:     "bo3_first_to_two",
			data:     scoreboardData{Team1: "Dark", Team2: "Clem", BestOf: 3, Score1: 2, Score2: 0},
			wantName: "Dark",
		},
		{
			name:      "bo4_all_maps_played_even",
			data:      scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 4, Score1: 2, Score2: 2},
			wantDrawn: true,
		},
		{
			name: "bo4_even_but_maps_remaining",
			data: scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 4, Score1: 1, Score2: 1},
		},
		{
			name:     "bo4_decided",
			data:     scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 4, Score1: 3, Score2: 1},
			wantName: "Maru",
		},
		{
			name: "bestof_unset",
			data: scoreboardData{Team1: "Maru", Team2: "Serral", Score1: 5, Score2: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, drawn := tt.data.winner()
			if name != tt.wantName {
				t.Errorf("winner = %q, want %q", name, tt.wantName)
			}
			if drawn != tt.wantDrawn {
				t.Errorf("drawn = %v, want %v", drawn, tt.wantDrawn)
			}
		})
	}
}

func eventTypes(events []types.MatchEvent) []types.MatchEventType {
	out := make([]types.MatchEventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func assertTypes(t *testing.T, events []types.MatchEvent, want ...types.MatchEventType) {
	t.Helper()
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestTracker_MatchLifecycle(t *testing.T) {
	tracker := &matchTracker{}
	now := time.Now()

	// Teams appear: match started.
	events := tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5}, now)
	assertTypes(t, events, types.MatchStarted)
	if events[0].Teams[0] != "Maru" || events[0].Teams[1] != "Serral" {
		t.Errorf("teams = %v", events[0].Teams)
	}
	if events[0].BestOf != 5 {
		t.Errorf("best of = %d, want 5", events[0].BestOf)
	}

	// Mid-match score updates emit nothing.
	events = tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 1}, now)
	assertTypes(t, events)
	events = tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 2, Score2: 1}, now)
	assertTypes(t, events)

	// Winning score reached: match ended.
	events = tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 3, Score2: 1}, now)
	assertTypes(t, events, types.MatchEnded)
	if events[0].Winner != "Maru" {
		t.Errorf("winner = %q, want Maru", events[0].Winner)
	}

	// Scores reset with the same teams: a new match starts.
	events = tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5}, now)
	assertTypes(t, events, types.MatchStarted)
}

func TestTracker_DuplicateSnapshotsDeduped(t *testing.T) {
	tracker := &matchTracker{}
	now := time.Now()

	snap := scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 3}

	events := tracker.observe(snap, now)
	assertTypes(t, events, types.MatchStarted, types.MatchEnded)

	// Caster re-broadcasts the identical state.
	events = tracker.observe(snap, now)
	assertTypes(t, events)
}

func TestTracker_FirstSnapshotAlreadyDecided(t *testing.T) {
	// Connecting mid-broadcast to a finished match emits started then ended
	// so the consumer sees a consistent sequence.
	tracker := &matchTracker{}

	events := tracker.observe(scoreboardData{Team1: "Dark", Team2: "Clem", BestOf: 3, Score1: 2}, time.Now())
	assertTypes(t, events, types.MatchStarted, types.MatchEnded)
	if events[1].Winner != "Dark" {
		t.Errorf("winner = %q, want Dark", events[1].Winner)
	}
}

func TestTracker_TeamsClearedVoidsLiveMatch(t *testing.T) {
	tracker := &matchTracker{}
	now := time.Now()

	tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 1}, now)

	events := tracker.observe(scoreboardData{BestOf: 5}, now)
	assertTypes(t, events, types.MatchVoided)

	// Clearing an already-empty board emits nothing further.
	events = tracker.observe(scoreboardData{BestOf: 3}, now)
	assertTypes(t, events)
}

func TestTracker_TeamChangeVoidsAndRestarts(t *testing.T) {
	tracker := &matchTracker{}
	now := time.Now()

	tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 1}, now)

	events := tracker.observe(scoreboardData{Team1: "Dark", Team2: "Clem", BestOf: 3}, now)
	assertTypes(t, events, types.MatchVoided, types.MatchStarted)
	if events[1].Teams[0] != "Dark" {
		t.Errorf("new match teams = %v", events[1].Teams)
	}
}

func TestTracker_DrawVoids(t *testing.T) {
	tracker := &matchTracker{}
	now := time.Now()

	tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 4}, now)

	events := tracker.observe(scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 4, Score1: 2, Score2: 2}, now)
	assertTypes(t, events, types.MatchVoided)
}

func TestTracker_ResyncReprocessesSnapshot(t *testing.T) {
	tracker := &matchTracker{}
	now := time.Now()

	snap := scoreboardData{Team1: "Maru", Team2: "Serral", BestOf: 5, Score1: 1}
	tracker.observe(snap, now)

	// Without resync the duplicate is dropped.
	events := tracker.observe(snap, now)
	assertTypes(t, events)

	// After a reconnect the same snapshot is re-derived; phase is unchanged
	// so no spurious events appear either.
	tracker.resync()
	events = tracker.observe(snap, now)
	assertTypes(t, events)
}
