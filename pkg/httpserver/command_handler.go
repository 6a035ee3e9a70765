package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

// CommandHandler handles HTTP requests from the Stream Deck control surface.
type CommandHandler struct {
	commands  CommandExecutor
	snapshots SnapshotProvider
	logger    *zap.Logger
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(commands CommandExecutor, snapshots SnapshotProvider, logger *zap.Logger) *CommandHandler {
	return &CommandHandler{
		commands:  commands,
		snapshots: snapshots,
		logger:    logger,
	}
}

// CommandResponse represents the HTTP response for a manual command.
type CommandResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	State  string `json:"state"`
}

// PredictionResponse represents the HTTP response for the current
// prediction state.
type PredictionResponse struct {
	State          string   `json:"state"`
	PredictionID   string   `json:"prediction_id,omitempty"`
	Title          string   `json:"title,omitempty"`
	Outcomes       []string `json:"outcomes,omitempty"`
	WinningOutcome string   `json:"winning_outcome,omitempty"`
	LockDeadline   string   `json:"lock_deadline,omitempty"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleCommand handles POST /api/command requests. The call blocks until
// the command has been processed so the Stream Deck button press gets a
// definitive result.
func (h *CommandHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	// The wire format is types.Command itself: {"command": ..., "outcome_override": ...}.
	var cmd types.Command

	err := json.NewDecoder(r.Body).Decode(&cmd)
	if err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if cmd.Kind == "" {
		h.writeError(w, "missing required field: command", http.StatusBadRequest)
		return
	}

	h.logger.Debug("command-request-received",
		zap.String("command", string(cmd.Kind)),
		zap.String("outcome-override", cmd.OutcomeOverride))

	result := h.commands.Execute(r.Context(), cmd)

	response := CommandResponse{
		Status: string(result.Status),
		Reason: result.Reason,
	}
	if h.snapshots != nil {
		response.State = string(h.snapshots.Snapshot().State)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(result.Status))

	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// HandlePrediction handles GET /api/prediction requests.
func (h *CommandHandler) HandlePrediction(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeError(w, "prediction state not available", http.StatusNotFound)
		return
	}

	snap := h.snapshots.Snapshot()

	response := PredictionResponse{
		State:          string(snap.State),
		PredictionID:   snap.ID,
		Title:          snap.Title,
		Outcomes:       snap.OutcomeLabels,
		WinningOutcome: snap.WinningOutcome,
	}
	if !snap.LockDeadline.IsZero() {
		response.LockDeadline = snap.LockDeadline.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// statusCode maps a command result onto an HTTP status: rejected commands
// are caller errors, failed commands mean the upstream API call failed.
func statusCode(status types.CommandStatus) int {
	switch status {
	case types.StatusApplied:
		return http.StatusOK
	case types.StatusRejected:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// writeError writes a JSON error response.
func (h *CommandHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
