package server

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/onnwee/barrens-chat/backend/auth"
	"github.com/onnwee/barrens-chat/backend/chat"
)

// Handlers holds dependencies for the REST endpoints.
type Handlers struct {
	db             *sql.DB
	store          chat.Store
	verifier       auth.Verifier
	personaEnabled bool
}

// NewHandlers creates the handler set.
func NewHandlers(db *sql.DB, store chat.Store, verifier auth.Verifier, personaEnabled bool) *Handlers {
	return &Handlers{db: db, store: store, verifier: verifier, personaEnabled: personaEnabled}
}

// apiError is the JSON error body shared by the REST endpoints, mirroring
// the websocket error event shape.
type apiError struct {
	Code    chat.ErrorCode `json:"code"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code chat.ErrorCode, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// identityFrom verifies the request credential: the `token` cookie, or an
// Authorization bearer token for non-browser clients.
func (h *Handlers) identityFrom(r *http.Request) (auth.Identity, error) {
	credential := ""
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		credential = cookie.Value
	} else if bearer := r.Header.Get("Authorization"); len(bearer) > 7 && bearer[:7] == "Bearer " {
		credential = bearer[7:]
	}
	return h.verifier.Verify(credential)
}
