package sqlite

import (
	"context"
	"testing"
)

func TestUserStateIsCreatedLazily(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	state, err := client.GetUserState(ctx, 1, 2)
	if err != nil {
		t.Fatalf("get user state: %v", err)
	}
	if state.Warnings != 0 || state.Reputation != 0 || state.IsTrusted || state.IsWhitelisted {
		t.Fatalf("expected zero state, got %#v", state)
	}
}

func TestUserStateCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	for want := 1; want <= 3; want++ {
		got, err := client.AddWarning(ctx, 1, 2)
		if err != nil {
			t.Fatalf("add warning: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d warnings, got %d", want, got)
		}
	}
	if err := client.ResetWarnings(ctx, 1, 2); err != nil {
		t.Fatalf("reset warnings: %v", err)
	}

	rep, err := client.AdjustReputation(ctx, 1, 2, 1)
	if err != nil || rep != 1 {
		t.Fatalf("upvote: %d (%v)", rep, err)
	}
	rep, err = client.AdjustReputation(ctx, 1, 2, -1)
	if err != nil || rep != 0 {
		t.Fatalf("downvote: %d (%v)", rep, err)
	}

	if err := client.SetTrust(ctx, 1, 2, true); err != nil {
		t.Fatalf("set trust: %v", err)
	}
	if err := client.SetWhitelist(ctx, 1, 3, true); err != nil {
		t.Fatalf("set whitelist: %v", err)
	}

	state, err := client.GetUserState(ctx, 1, 2)
	if err != nil {
		t.Fatalf("get user state: %v", err)
	}
	if state.Warnings != 0 || !state.IsTrusted {
		t.Fatalf("unexpected state: %#v", state)
	}

	whitelisted, err := client.ListWhitelisted(ctx, 1)
	if err != nil {
		t.Fatalf("list whitelisted: %v", err)
	}
	if len(whitelisted) != 1 || whitelisted[0].UserID != 3 {
		t.Fatalf("unexpected whitelist: %#v", whitelisted)
	}

	if err := client.DeleteUserStates(ctx, 1, []int64{2, 3}); err != nil {
		t.Fatalf("delete user states: %v", err)
	}
	states, err := client.ListUserStates(ctx, 1)
	if err != nil {
		t.Fatalf("list user states: %v", err)
	}
	if len(states) != 0 {
		t.Fatalf("expected no states, got %#v", states)
	}
}
