package twitch

import "time"

// Wire types for the Helix endpoints the client touches. Helix wraps every
// response in a "data" array, even single-object lookups.

type userResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

type outcomePayload struct {
	Title string `json:"title"`
}

type createPredictionRequest struct {
	BroadcasterID    string           `json:"broadcaster_id"`
	Title            string           `json:"title"`
	Outcomes         []outcomePayload `json:"outcomes"`
	PredictionWindow int              `json:"prediction_window"`
}

type endPredictionRequest struct {
	BroadcasterID    string `json:"broadcaster_id"`
	ID               string `json:"id"`
	Status           string `json:"status"`
	WinningOutcomeID string `json:"winning_outcome_id,omitempty"`
}

// Remote prediction statuses as reported by Helix.
const (
	StatusActive   = "ACTIVE"
	StatusLocked   = "LOCKED"
	StatusResolved = "RESOLVED"
	StatusCanceled = "CANCELED"
)

type predictionOutcome struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type predictionData struct {
	ID               string              `json:"id"`
	BroadcasterID    string              `json:"broadcaster_id"`
	Title            string              `json:"title"`
	Status           string              `json:"status"`
	WinningOutcomeID string              `json:"winning_outcome_id"`
	Outcomes         []predictionOutcome `json:"outcomes"`
	PredictionWindow int                 `json:"prediction_window"`
	CreatedAt        time.Time           `json:"created_at"`
}

type predictionResponse struct {
	Data []predictionData `json:"data"`
}

type apiErrorBody struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RemotePrediction is the authoritative remote view of a prediction, used for
// startup resync and post-failure reconciliation.
type RemotePrediction struct {
	ID             string
	Title          string
	Status         string
	OutcomeLabels  []string
	WinningOutcome string
	WindowSeconds  int
	CreatedAt      time.Time
}
