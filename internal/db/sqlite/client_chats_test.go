package sqlite

import (
	"context"
	"errors"
	"testing"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

func TestGetSettingsForUnknownChat(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	_, err := client.GetSettings(context.Background(), -42)
	if !errors.Is(err, ngerrors.ErrChatNotRegistered) {
		t.Fatalf("expected ErrChatNotRegistered, got %v", err)
	}
	if err := client.SaveSettings(context.Background(), -42, nil); !errors.Is(err, ngerrors.ErrChatNotRegistered) {
		t.Fatalf("expected ErrChatNotRegistered on save, got %v", err)
	}
}

func TestEnsureChatIsIdempotentAndKeepsSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	s, err := client.EnsureChat(ctx, -100, "Group", "group")
	if err != nil {
		t.Fatalf("ensure chat: %v", err)
	}
	if len(s.StopWords.Lists) < 2 {
		t.Fatalf("expected default stop-word lists, got %#v", s.StopWords.Lists)
	}

	s.Flood.MessageLimit = 3
	if err := client.SaveSettings(ctx, -100, s); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	again, err := client.EnsureChat(ctx, -100, "Renamed", "")
	if err != nil {
		t.Fatalf("ensure chat again: %v", err)
	}
	if again.Flood.MessageLimit != 3 {
		t.Fatalf("expected saved settings to survive ensure, got limit %d", again.Flood.MessageLimit)
	}

	chats, err := client.ListChats(ctx)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 1 || chats[0].Title != "Renamed" || chats[0].Username != "group" {
		t.Fatalf("unexpected chats: %#v", chats)
	}
}
