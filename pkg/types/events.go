package types

import "time"

// MatchEventType identifies a normalized match-state event from the feed.
type MatchEventType string

const (
	// MatchStarted means a match with known teams is underway.
	MatchStarted MatchEventType = "started"
	// MatchEnded means a team reached the winning score.
	MatchEnded MatchEventType = "ended"
	// MatchVoided means the match was abandoned, replaced or drawn and the
	// prediction cannot be paid out.
	MatchVoided MatchEventType = "voided"
)

// MatchEvent is a normalized match-state event. The orchestrator never sees
// raw SCCT message shapes, only these tagged variants.
type MatchEvent struct {
	Type MatchEventType

	// Teams holds the two team names, set on MatchStarted.
	Teams []string

	// Winner is the winning team name, set on MatchEnded.
	Winner string

	// BestOf is the series length reported by the caster, set on MatchStarted.
	BestOf int

	ReceivedAt time.Time
}
