package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

func TestJoinRequestLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	now := time.Unix(1_700_000_000, 0)
	expires := now.Add(3 * time.Minute)
	req := &db.JoinRequest{
		ChatID:    -100,
		UserID:    5,
		Questions: []string{"Who are you?", "Why here?"},
		CreatedAt: now,
		ExpiresAt: &expires,
	}
	if err := client.UpsertJoinRequest(ctx, req); err != nil {
		t.Fatalf("upsert join request: %v", err)
	}

	stored, err := client.StoreJoinAnswers(ctx, -100, 5, []string{"me", "fun"})
	if err != nil {
		t.Fatalf("store answers: %v", err)
	}
	if stored == nil || len(stored.Answers) != 2 || len(stored.Questions) != 2 || stored.Status != db.JoinRequestPending {
		t.Fatalf("unexpected stored request: %#v", stored)
	}

	pending, err := client.ListPendingJoinRequests(ctx, -100)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending request, got %d (%v)", len(pending), err)
	}

	expired, err := client.GetExpiredJoinRequests(ctx, now.Add(time.Hour))
	if err != nil || len(expired) != 1 {
		t.Fatalf("expected one expired request, got %d (%v)", len(expired), err)
	}

	if err := client.SetJoinRequestStatus(ctx, -100, 5, db.JoinRequestApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := client.GetJoinRequest(ctx, -100, 5)
	if err != nil {
		t.Fatalf("get join request: %v", err)
	}
	if got.Status != db.JoinRequestApproved || got.ExpiresAt != nil {
		t.Fatalf("expected approved request without expiry, got %#v", got)
	}

	err = client.SetJoinRequestStatus(ctx, -100, 5, db.JoinRequestRejected)
	if !errors.Is(err, ngerrors.ErrInvalidTransition) {
		t.Fatalf("expected terminal status to be final, got %v", err)
	}
	err = client.SetJoinRequestStatus(ctx, -100, 5, db.JoinRequestPending)
	if !errors.Is(err, ngerrors.ErrInvalidTransition) {
		t.Fatalf("expected no revert to pending, got %v", err)
	}

	if err := client.SetJoinRequestStatus(ctx, -100, 6, db.JoinRequestApproved); !errors.Is(err, ngerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown request, got %v", err)
	}

	if err := client.DeleteJoinRequest(ctx, -100, 5); err != nil {
		t.Fatalf("delete join request: %v", err)
	}
	got, err = client.GetJoinRequest(ctx, -100, 5)
	if err != nil || got != nil {
		t.Fatalf("expected request deleted, got %#v (%v)", got, err)
	}
}
