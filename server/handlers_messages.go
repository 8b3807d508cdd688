package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/barrens-chat/backend/chat"
	"github.com/onnwee/barrens-chat/backend/telemetry"
)

// HandleMessages serves GET /api/messages: one newest-first page of room
// history with cursor pagination. Requires a valid credential; the room has
// no anonymous readers.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, chat.CodeValidationError, "method not allowed")
		return
	}

	if _, err := h.identityFrom(r); err != nil {
		telemetry.AuthFailures.Inc()
		writeError(w, http.StatusUnauthorized, chat.CodeAuthFailed, "authentication failed")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, chat.CodeValidationError, "limit must be an integer")
			return
		}
		limit = n
	}

	page, err := h.store.ListMessages(r.Context(), cursor, limit)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, chat.CodeValidationError, "invalid cursor")
			return
		}
		telemetry.LoggerWithCorr(r.Context()).Error("failed to list messages", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, chat.CodeInternalError, "failed to load messages")
		return
	}

	// Encode an empty page as an empty array, not null.
	if page.Messages == nil {
		page.Messages = []chat.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, page)
}
