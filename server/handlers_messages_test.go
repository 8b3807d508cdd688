package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/barrens-chat/backend/auth"
	"github.com/onnwee/barrens-chat/backend/chat"
	"github.com/onnwee/barrens-chat/backend/testutil"
)

func seedFakeMessages(t *testing.T, store *testutil.FakeStore, n int) {
	t.Helper()
	userID := "u1"
	for i := 0; i < n; i++ {
		_, err := store.CreateMessage(context.Background(), chat.MessageDraft{
			Content:           "hello",
			Kind:              chat.KindText,
			AuthorUserID:      &userID,
			AuthorDisplayName: "Thrall",
		})
		if err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}
}

func messagesRequest(t *testing.T, h *Handlers, verifier *auth.JWTVerifier, query string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/messages"+query, nil)
	if authed {
		token, err := verifier.Sign(auth.Identity{UserID: "u1", Username: "Thrall"}, time.Hour)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}
	rec := httptest.NewRecorder()
	h.HandleMessages(rec, req)
	return rec
}

func TestHandleMessagesRequiresAuth(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret)
	h := NewHandlers(nil, testutil.NewFakeStore(), verifier, false)

	rec := messagesRequest(t, h, verifier, "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != chat.CodeAuthFailed {
		t.Fatalf("code = %s, want AUTH_FAILED", body.Code)
	}
}

func TestHandleMessagesBearerToken(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret)
	h := NewHandlers(nil, testutil.NewFakeStore(), verifier, false)
	token, err := verifier.Sign(auth.Identity{UserID: "u1", Username: "Thrall"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.HandleMessages(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleMessagesEmptyRoom(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret)
	h := NewHandlers(nil, testutil.NewFakeStore(), verifier, false)

	rec := messagesRequest(t, h, verifier, "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var page chat.MessagePage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.Messages == nil || len(page.Messages) != 0 {
		t.Fatalf("messages = %v, want empty array", page.Messages)
	}
	if page.NextCursor != "" {
		t.Fatalf("nextCursor = %q, want empty", page.NextCursor)
	}
}

func TestHandleMessagesPagination(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret)
	store := testutil.NewFakeStore()
	h := NewHandlers(nil, store, verifier, false)
	seedFakeMessages(t, store, 5)

	rec := messagesRequest(t, h, verifier, "?limit=2", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var first chat.MessagePage
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode page 1: %v", err)
	}
	if len(first.Messages) != 2 || first.NextCursor == "" {
		t.Fatalf("page 1 = %d messages, cursor %q; want 2 with cursor", len(first.Messages), first.NextCursor)
	}
	// Newest first.
	if !first.Messages[0].CreatedAt.After(first.Messages[1].CreatedAt) {
		t.Fatal("page 1 not newest-first")
	}

	rec = messagesRequest(t, h, verifier, "?limit=2&cursor="+first.NextCursor, true)
	var second chat.MessagePage
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode page 2: %v", err)
	}
	if len(second.Messages) != 2 {
		t.Fatalf("page 2 = %d messages, want 2", len(second.Messages))
	}
	if !second.Messages[0].CreatedAt.Before(first.Messages[1].CreatedAt) {
		t.Fatal("page 2 does not continue past page 1")
	}
}

func TestHandleMessagesLimitCapped(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret)
	store := testutil.NewFakeStore()
	h := NewHandlers(nil, store, verifier, false)
	seedFakeMessages(t, store, 120)

	rec := messagesRequest(t, h, verifier, "?limit=500", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var page chat.MessagePage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(page.Messages) != 100 {
		t.Fatalf("got %d messages for limit 500, want cap of 100", len(page.Messages))
	}
	if page.NextCursor == "" {
		t.Fatal("nextCursor empty with messages beyond the cap")
	}
}

func TestHandleMessagesBadInputs(t *testing.T) {
	verifier := auth.NewJWTVerifier(testSecret)
	h := NewHandlers(nil, testutil.NewFakeStore(), verifier, false)

	t.Run("non-integer limit", func(t *testing.T) {
		rec := messagesRequest(t, h, verifier, "?limit=many", true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid cursor", func(t *testing.T) {
		rec := messagesRequest(t, h, verifier, "?cursor=yesterday", true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		var body apiError
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Code != chat.CodeValidationError {
			t.Fatalf("code = %s, want VALIDATION_ERROR", body.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		rec := httptest.NewRecorder()
		h.HandleMessages(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want 405", rec.Code)
		}
	})
}
