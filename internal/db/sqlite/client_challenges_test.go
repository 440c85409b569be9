package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
)

func newTestClient(t *testing.T) *sqliteClient {
	t.Helper()
	client, err := NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCreateCaptchaReplacesPendingRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	now := time.Now()
	first := &db.PendingCaptcha{
		ChatID:    -100111,
		UserID:    777,
		Token:     "cap|first|human",
		Attempts:  1,
		CreatedAt: now,
		ExpiresAt: now.Add(2 * time.Minute),
	}
	second := &db.PendingCaptcha{
		ChatID:    -100111,
		UserID:    777,
		Token:     "cap|second|7",
		CreatedAt: now,
		ExpiresAt: now.Add(3 * time.Minute),
	}

	if err := client.CreateCaptcha(ctx, first); err != nil {
		t.Fatalf("create first captcha: %v", err)
	}
	if err := client.CreateCaptcha(ctx, second); err != nil {
		t.Fatalf("create second captcha: %v", err)
	}

	got, err := client.GetCaptcha(ctx, -100111, 777)
	if err != nil {
		t.Fatalf("get captcha: %v", err)
	}
	if got == nil || got.Token != second.Token || got.Attempts != 0 {
		t.Fatalf("expected replaced captcha, got %#v", got)
	}
}

func TestCaptchaUpdateDeleteAndExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	now := time.Unix(1_700_000_000, 0)
	live := &db.PendingCaptcha{ChatID: 1, UserID: 10, Token: "cap|a|human", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	stale := &db.PendingCaptcha{ChatID: 1, UserID: 11, Token: "cap|b|human", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}
	for _, c := range []*db.PendingCaptcha{live, stale} {
		if err := client.CreateCaptcha(ctx, c); err != nil {
			t.Fatalf("create captcha: %v", err)
		}
	}

	live.Attempts = 2
	if err := client.UpdateCaptcha(ctx, live); err != nil {
		t.Fatalf("update captcha: %v", err)
	}
	got, err := client.GetCaptcha(ctx, 1, 10)
	if err != nil || got == nil || got.Attempts != 2 {
		t.Fatalf("unexpected captcha after update: %#v (%v)", got, err)
	}

	expired, err := client.GetExpiredCaptchas(ctx, now)
	if err != nil {
		t.Fatalf("get expired captchas: %v", err)
	}
	if len(expired) != 1 || expired[0].UserID != 11 {
		t.Fatalf("unexpected expired captchas: %#v", expired)
	}

	if err := client.DeleteCaptcha(ctx, 1, 10); err != nil {
		t.Fatalf("delete captcha: %v", err)
	}
	got, err = client.GetCaptcha(ctx, 1, 10)
	if err != nil {
		t.Fatalf("get deleted captcha: %v", err)
	}
	if got != nil {
		t.Fatalf("expected captcha to be deleted, got %#v", got)
	}
}
