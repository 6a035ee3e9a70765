package feed

import (
	"fmt"
	"time"

	"github.com/jaedolph/scct-predictions/pkg/types"
)

// scoreboardMessage is the raw SCCT score broadcast. The caster re-sends the
// full state on every change and on reconnect.
type scoreboardMessage struct {
	Event string         `json:"event"`
	Data  scoreboardData `json:"data"`
}

type scoreboardData struct {
	Team1  string `json:"team1"`
	Team2  string `json:"team2"`
	BestOf int    `json:"bestof"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
}

// winner returns the winning team name, or "" when the match is still live.
// drawn is set when all maps are played with even scores (even series length),
// which cannot be paid out on a two-outcome prediction.
func (d scoreboardData) winner() (name string, drawn bool) {
	if d.BestOf <= 0 {
		return "", false
	}

	winningScore := d.BestOf/2 + 1
	switch {
	case d.Score1 >= winningScore:
		return d.Team1, false
	case d.Score2 >= winningScore:
		return d.Team2, false
	}

	if d.BestOf%2 == 0 && d.Score1 == d.Score2 && d.Score1+d.Score2 == d.BestOf {
		return "", true
	}

	return "", false
}

func (d scoreboardData) signature() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", d.Team1, d.Team2, d.BestOf, d.Score1, d.Score2)
}

// matchPhase is the tracker's view of the current match.
type matchPhase int

const (
	phaseNone matchPhase = iota
	phaseLive
	phaseEnded
)

// matchTracker turns raw scoreboard snapshots into domain events. Only the
// feed's read loop calls observe, so no locking is needed; resync is called
// between read loops (after a reconnect).
type matchTracker struct {
	phase   matchPhase
	team1   string
	team2   string
	lastSig string
}

// resync drops the dedupe signature so the first snapshot after a reconnect
// is re-derived instead of assumed continuous.
func (t *matchTracker) resync() {
	t.lastSig = ""
}

// observe folds one snapshot into the tracker and returns the domain events
// it implies, in order.
func (t *matchTracker) observe(d scoreboardData, now time.Time) []types.MatchEvent {
	sig := d.signature()
	if sig == t.lastSig {
		// Caster re-broadcast of an already-seen state.
		return nil
	}
	t.lastSig = sig

	var events []types.MatchEvent

	// No teams on the board: an active match was cleared.
	if d.Team1 == "" || d.Team2 == "" {
		if t.phase == phaseLive {
			events = append(events, types.MatchEvent{Type: types.MatchVoided, ReceivedAt: now})
		}
		t.phase = phaseNone
		t.team1, t.team2 = "", ""
		return events
	}

	// Different teams than the match we were tracking: the old match was
	// replaced without ending.
	if t.phase == phaseLive && (d.Team1 != t.team1 || d.Team2 != t.team2) {
		events = append(events, types.MatchEvent{Type: types.MatchVoided, ReceivedAt: now})
		t.phase = phaseNone
	}

	// Same teams starting over (scores back to zero) is a new match.
	if t.phase == phaseEnded && (d.Team1 != t.team1 || d.Team2 != t.team2 || (d.Score1 == 0 && d.Score2 == 0)) {
		t.phase = phaseNone
	}

	winner, drawn := d.winner()

	if t.phase == phaseNone {
		events = append(events, types.MatchEvent{
			Type:       types.MatchStarted,
			Teams:      []string{d.Team1, d.Team2},
			BestOf:     d.BestOf,
			ReceivedAt: now,
		})
		t.phase = phaseLive
		t.team1, t.team2 = d.Team1, d.Team2
	}

	if t.phase == phaseLive {
		switch {
		case winner != "":
			events = append(events, types.MatchEvent{
				Type:       types.MatchEnded,
				Winner:     winner,
				ReceivedAt: now,
			})
			t.phase = phaseEnded
		case drawn:
			events = append(events, types.MatchEvent{Type: types.MatchVoided, ReceivedAt: now})
			t.phase = phaseEnded
		}
	}

	return events
}
