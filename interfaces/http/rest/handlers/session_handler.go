package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"designgraph/application/commands"
	"designgraph/application/commands/bus"
	"designgraph/application/orchestrator"
	"designgraph/application/queries"
	querybus "designgraph/application/queries/bus"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	pkgerrors "designgraph/pkg/errors"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 4 << 20

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
}

// RunTaskRequest is the body of POST /sessions/{sessionID}/tasks
type RunTaskRequest struct {
	Task      string             `json:"task"`
	RequestID string             `json:"request_id"`
	Args      valueobjects.Attrs `json:"args"`
}

// ApprovePatchRequest is the body of POST /sessions/{sessionID}/patches
type ApprovePatchRequest struct {
	ExpectedVersion int64       `json:"expected_version"`
	Patch           patch.Patch `json:"patch"`
}

// SessionHandler handles session, task and patch requests
type SessionHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// CreateSession handles POST /sessions. A missing session_id is generated.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	result, err := h.commandBus.Send(r.Context(), commands.CreateSessionCommand{SessionID: req.SessionID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetGraphQuery{SessionID: chi.URLParam(r, "sessionID")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetLayerView handles GET /sessions/{sessionID}/layers/{layer}
func (h *SessionHandler) GetLayerView(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetLayerViewQuery{
		SessionID: chi.URLParam(r, "sessionID"),
		Layer:     chi.URLParam(r, "layer"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetAppliedOps handles GET /sessions/{sessionID}/ops
func (h *SessionHandler) GetAppliedOps(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetAppliedOpsQuery{SessionID: chi.URLParam(r, "sessionID")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RunTask handles POST /sessions/{sessionID}/tasks. Complete and blocked
// outcomes answer 200, pending answers 202.
func (h *SessionHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	var req RunTaskRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.RunTaskCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Task:      req.Task,
		RequestID: req.RequestID,
		Args:      req.Args,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondEnvelope(w, result.(*orchestrator.Response))
}

// ApprovePatch handles POST /sessions/{sessionID}/patches
func (h *SessionHandler) ApprovePatch(w http.ResponseWriter, r *http.Request) {
	var req ApprovePatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.ApprovePatchCommand{
		SessionID:       chi.URLParam(r, "sessionID"),
		ExpectedVersion: req.ExpectedVersion,
		Patch:           req.Patch,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondEnvelope(w, result.(*orchestrator.Response))
}

func (h *SessionHandler) respondEnvelope(w http.ResponseWriter, resp *orchestrator.Response) {
	status := http.StatusOK
	if resp.Status == orchestrator.StatusPending {
		status = http.StatusAccepted
	}
	respondJSON(w, status, resp)
}

// decode reads a JSON body into dst and answers 400 on failure
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		appErr := pkgerrors.GetAppError(err)
		if appErr == nil {
			appErr = pkgerrors.NewValidationError("invalid request body: " + err.Error()).WithCause(err)
		}
		h.errors.Handle(w, r, appErr)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
