package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/barrens-chat/backend/chat"
	"github.com/onnwee/barrens-chat/backend/db"
	"github.com/onnwee/barrens-chat/backend/testutil"
)

func seedMessages(t *testing.T, store *db.Store, n int) []chat.ChatMessage {
	t.Helper()
	ctx := context.Background()
	userID := "u1"
	out := make([]chat.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		msg, err := store.CreateMessage(ctx, chat.MessageDraft{
			Content:           "message " + string(rune('a'+i)),
			Kind:              chat.KindText,
			AuthorUserID:      &userID,
			AuthorDisplayName: "Thrall",
		})
		if err != nil {
			t.Fatalf("CreateMessage(%d): %v", i, err)
		}
		out = append(out, msg)
		// Distinct createdAt values keep the cursor ordering unambiguous.
		time.Sleep(2 * time.Millisecond)
	}
	return out
}

func TestStoreCreateAndListMessages(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	created := seedMessages(t, store, 3)

	page, err := store.ListMessages(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(page.Messages))
	}
	if page.NextCursor != "" {
		t.Fatalf("NextCursor = %q for exhausted history, want empty", page.NextCursor)
	}
	// Newest first.
	if page.Messages[0].ID != created[2].ID || page.Messages[2].ID != created[0].ID {
		t.Fatalf("order = [%s %s %s], want newest first", page.Messages[0].ID, page.Messages[1].ID, page.Messages[2].ID)
	}
	if got := page.Messages[0]; got.AuthorUserID == nil || *got.AuthorUserID != "u1" || got.IsPersona {
		t.Fatalf("message fields not round-tripped: %+v", got)
	}
}

func TestStoreListMessagesPagination(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	created := seedMessages(t, store, 5)

	first, err := store.ListMessages(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListMessages page 1: %v", err)
	}
	if len(first.Messages) != 2 || first.NextCursor == "" {
		t.Fatalf("page 1 = %d messages, cursor %q; want 2 with cursor", len(first.Messages), first.NextCursor)
	}
	if first.Messages[0].ID != created[4].ID || first.Messages[1].ID != created[3].ID {
		t.Fatal("page 1 is not the two newest messages")
	}

	second, err := store.ListMessages(ctx, first.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListMessages page 2: %v", err)
	}
	if len(second.Messages) != 2 || second.NextCursor == "" {
		t.Fatalf("page 2 = %d messages, cursor %q; want 2 with cursor", len(second.Messages), second.NextCursor)
	}
	if second.Messages[0].ID != created[2].ID || second.Messages[1].ID != created[1].ID {
		t.Fatal("page 2 does not continue where page 1 stopped")
	}

	last, err := store.ListMessages(ctx, second.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListMessages page 3: %v", err)
	}
	if len(last.Messages) != 1 || last.NextCursor != "" {
		t.Fatalf("page 3 = %d messages, cursor %q; want 1 with no cursor", len(last.Messages), last.NextCursor)
	}
	if last.Messages[0].ID != created[0].ID {
		t.Fatal("page 3 is not the oldest message")
	}
}

func TestStoreListMessagesInvalidCursor(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)

	_, err := store.ListMessages(context.Background(), "yesterday", 10)
	if err == nil {
		t.Fatal("ListMessages with bad cursor: error = nil")
	}
	if !errors.Is(err, chat.ErrInvalidCursor) {
		t.Fatalf("error = %v, want chat.ErrInvalidCursor in chain", err)
	}
}

func TestStoreListMessagesLimitCapped(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	// Identical timestamps are fine here; only the page size is under test.
	userID := "u1"
	for i := 0; i < 101; i++ {
		if _, err := store.CreateMessage(ctx, chat.MessageDraft{
			Content:           "spam",
			Kind:              chat.KindText,
			AuthorUserID:      &userID,
			AuthorDisplayName: "Thrall",
		}); err != nil {
			t.Fatalf("CreateMessage(%d): %v", i, err)
		}
	}

	page, err := store.ListMessages(ctx, "", 500)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page.Messages) != 100 {
		t.Fatalf("got %d messages for limit 500, want cap of 100", len(page.Messages))
	}
	if page.NextCursor == "" {
		t.Fatal("NextCursor empty with one message beyond the cap")
	}
}

func TestStoreRecentMessagesChronological(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	created := seedMessages(t, store, 4)

	recent, err := store.RecentMessages(ctx, 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d messages, want 3", len(recent))
	}
	// Oldest of the three first.
	if recent[0].ID != created[1].ID || recent[2].ID != created[3].ID {
		t.Fatal("RecentMessages not in chronological order")
	}
}

func TestStorePersonas(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	if err := db.SeedPersonas(ctx, database); err != nil {
		t.Fatalf("SeedPersonas: %v", err)
	}
	// Seeding again must not duplicate.
	if err := db.SeedPersonas(ctx, database); err != nil {
		t.Fatalf("SeedPersonas rerun: %v", err)
	}

	personas, err := store.ListActivePersonas(ctx)
	if err != nil {
		t.Fatalf("ListActivePersonas: %v", err)
	}
	if len(personas) != 3 {
		t.Fatalf("got %d personas, want 3", len(personas))
	}
	names := map[string]bool{}
	for _, p := range personas {
		if !p.IsActive {
			t.Errorf("persona %s inactive in active listing", p.Name)
		}
		if p.SystemPrompt == "" {
			t.Errorf("persona %s has empty system prompt", p.Name)
		}
		names[p.Name] = true
	}
	for _, want := range []string{"Legolasxxx", "Chuckfacts", "Recruitron"} {
		if !names[want] {
			t.Errorf("seeded persona %s missing", want)
		}
	}

	// Deactivated personas drop out of the listing.
	if _, err := database.ExecContext(ctx, "UPDATE personas SET is_active = FALSE WHERE name = 'Recruitron'"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	personas, err = store.ListActivePersonas(ctx)
	if err != nil {
		t.Fatalf("ListActivePersonas after deactivation: %v", err)
	}
	if len(personas) != 2 {
		t.Fatalf("got %d personas after deactivation, want 2", len(personas))
	}
}
