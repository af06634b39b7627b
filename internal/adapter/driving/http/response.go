package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// AddKeyRequest is the body of POST /api/v1/keys. KeyID is a string so the
// admission check sees exactly what the user typed.
type AddKeyRequest struct {
	UserID int64  `json:"user_id"`
	KeyID  string `json:"key_id"`
	VCode  string `json:"v_code"`
	Label  string `json:"label"`
}

// RevalidateKeyRequest is the body of POST /api/v1/keys/{keyID}/validate.
type RevalidateKeyRequest struct {
	UserID int64 `json:"user_id"`
}

// KillmailResponse is the JSON representation of a stored killmail.
type KillmailResponse struct {
	KillID    int64           `json:"kill_id"`
	Hash      string          `json:"hash"`
	Source    string          `json:"source"`
	Processed bool            `json:"processed"`
	Kill      json.RawMessage `json:"kill"`
}

// StatusResponse is the JSON representation of the sync status.
type StatusResponse struct {
	Shards       int    `json:"shards"`
	Stopped      bool   `json:"stopped"`
	StoppedUntil string `json:"stopped_until,omitempty"`
}

func toKillmailResponse(km model.Killmail) KillmailResponse {
	return KillmailResponse{
		KillID:    km.KillID,
		Hash:      km.Hash,
		Source:    km.Source,
		Processed: km.Processed,
		Kill:      json.RawMessage(km.Payload),
	}
}
