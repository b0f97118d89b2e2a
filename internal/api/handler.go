package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reviewcreator/internal/events"
	"reviewcreator/internal/models"
	"reviewcreator/internal/service"

	"github.com/go-chi/chi/v5"
)

type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type OutcomeResponse struct {
	Outcome  models.OutcomeKind `json:"outcome"`
	ReviewID string             `json:"review_id,omitempty"`
	Reason   models.SkipReason  `json:"reason,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type Handler struct {
	svc    ServiceInterface
	queue  Publisher
	r      *chi.Mux
	logger *slog.Logger
}

func NewHandler(s ServiceInterface, q Publisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: s, queue: q, r: chi.NewRouter(), logger: logger}
	h.routes()
	return h
}

func (h *Handler) Router() http.Handler { return h.r }

func (h *Handler) routes() {
	h.r.Get("/healthz", h.healthz)
	h.r.Post("/commits", h.notify)
	h.r.Post("/commits/{repository}/{changeset}/reprocess", h.reprocess)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string, statusCode int) {
	errorResp := ErrorResponse{}
	errorResp.Error.Code = code
	errorResp.Error.Message = message
	h.writeJSON(w, errorResp, statusCode)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// notify accepts a commit notification and queues it. Processing failures are
// never reported back to the commit source.
func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	var ev models.CommitEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.logger.Warn("invalid JSON in commit notification", "error", err)
		h.writeError(w, "BAD_REQUEST", "invalid JSON", http.StatusBadRequest)
		return
	}
	if ev.Repository == "" || ev.ChangesetID == "" {
		h.writeError(w, "BAD_REQUEST", "repository and changeset_id are required", http.StatusBadRequest)
		return
	}

	if err := h.queue.Publish(ev); err != nil {
		h.logger.Error("failed to queue commit", "repository", ev.Repository, "changeset", ev.ChangesetID, "error", err)
		if errors.Is(err, events.ErrQueueFull) {
			h.writeError(w, "QUEUE_FULL", err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.writeError(w, "UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("commit queued", "repository", ev.Repository, "changeset", ev.ChangesetID)
	w.WriteHeader(http.StatusAccepted)
}

// reprocess runs the engine for one changeset and reports the outcome. It is
// the operator's manual retry.
func (h *Handler) reprocess(w http.ResponseWriter, r *http.Request) {
	ev := models.CommitEvent{
		Repository:  chi.URLParam(r, "repository"),
		ChangesetID: chi.URLParam(r, "changeset"),
	}
	h.logger.Info("reprocess request", "repository", ev.Repository, "changeset", ev.ChangesetID)

	out := h.svc.ProcessCommit(r.Context(), ev)
	resp := OutcomeResponse{Outcome: out.Kind, ReviewID: out.ReviewID, Reason: out.Reason}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}

	status := http.StatusOK
	switch {
	case out.Kind == models.OutcomeCreated:
		status = http.StatusCreated
	case out.Kind != models.OutcomeFailed:
	case errors.Is(out.Err, models.ErrChangesetNotFound):
		status = http.StatusNotFound
	case service.IsConfigError(out.Err):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}
	h.writeJSON(w, resp, status)
}
