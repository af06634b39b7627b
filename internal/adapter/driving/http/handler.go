package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/killsync/internal/application"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter: key admission, killmail lookup,
// sync status, health and metrics.
type Handler struct {
	keys     *application.KeyService
	kills    driven.KillmailStore
	settings *application.Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	keys *application.KeyService,
	kills driven.KillmailStore,
	settings *application.Settings,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		keys:     keys,
		kills:    kills,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/keys", h.AddKey)
	mux.HandleFunc("POST /api/v1/keys/{keyID}/validate", h.RevalidateKey)
	mux.HandleFunc("GET /api/v1/killmails/{killID}", h.GetKillmail)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// AddKey admits an API key for a user and enumerates its characters.
func (h *Handler) AddKey(w http.ResponseWriter, r *http.Request) {
	var req AddKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.keys.Add(r.Context(), req.UserID, req.KeyID, req.VCode, req.Label)
	if err != nil {
		var gateErr *application.GateError
		switch {
		case errors.As(err, &gateErr):
			writeError(w, gateStatus(gateErr), gateErr.Error())
		case errors.Is(err, driven.ErrCredentialExists):
			writeError(w, http.StatusConflict, "key already registered")
		default:
			h.logger.Error("failed to add key", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

// RevalidateKey re-runs the access check for a key on its owner's request,
// clearing a recorded key error on success.
func (h *Handler) RevalidateKey(w http.ResponseWriter, r *http.Request) {
	keyID, err := strconv.ParseInt(r.PathValue("keyID"), 10, 64)
	if err != nil || keyID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	var req RevalidateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.keys.Revalidate(r.Context(), req.UserID, keyID)
	if err != nil {
		var gateErr *application.GateError
		switch {
		case errors.As(err, &gateErr):
			writeError(w, gateStatus(gateErr), gateErr.Error())
		case errors.Is(err, driven.ErrCredentialNotFound):
			writeError(w, http.StatusNotFound, "key not found")
		case errors.Is(err, application.ErrNotKeyOwner):
			writeError(w, http.StatusForbidden, "key belongs to another user")
		default:
			h.logger.Error("failed to revalidate key", "key_id", keyID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

// GetKillmail returns a stored killmail by kill id.
func (h *Handler) GetKillmail(w http.ResponseWriter, r *http.Request) {
	killID, err := strconv.ParseInt(r.PathValue("killID"), 10, 64)
	if err != nil || killID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid kill id")
		return
	}

	km, err := h.kills.Get(r.Context(), killID)
	if err != nil {
		h.logger.Error("failed to get killmail", "kill_id", killID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if km == nil {
		writeError(w, http.StatusNotFound, "killmail not found")
		return
	}

	writeJSON(w, http.StatusOK, toKillmailResponse(*km))
}

// Status reports the shard count and whether polling is suspended.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	shards, err := h.settings.ShardCount(r.Context())
	if err != nil {
		h.logger.Error("failed to read shard count", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stopped, until, err := h.settings.Stopped(r.Context(), h.now())
	if err != nil {
		h.logger.Error("failed to read api stop", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := StatusResponse{Shards: shards, Stopped: stopped}
	if stopped {
		resp.StoppedUntil = until.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func gateStatus(err *application.GateError) int {
	switch err.Reason {
	case application.GateMalformed, application.GateLikelySwapped:
		return http.StatusBadRequest
	case application.GateRemote:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}
