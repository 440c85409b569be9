package db

import (
	"context"
	"time"

	"github.com/iamwavecut/ngguard/internal/settings"
)

// Client is the persistent store behind the moderation engine.
type Client interface {
	Close() error

	EnsureChat(ctx context.Context, chatID int64, title, username string) (*settings.ChatSettings, error)
	GetSettings(ctx context.Context, chatID int64) (*settings.ChatSettings, error)
	SaveSettings(ctx context.Context, chatID int64, s *settings.ChatSettings) error
	ListChats(ctx context.Context) ([]*Chat, error)

	GetUserState(ctx context.Context, chatID, userID int64) (*UserState, error)
	AddWarning(ctx context.Context, chatID, userID int64) (int, error)
	ResetWarnings(ctx context.Context, chatID, userID int64) error
	AdjustReputation(ctx context.Context, chatID, userID int64, delta int) (int, error)
	SetTrust(ctx context.Context, chatID, userID int64, trusted bool) error
	SetWhitelist(ctx context.Context, chatID, userID int64, whitelisted bool) error
	ListUserStates(ctx context.Context, chatID int64) ([]*UserState, error)
	ListWhitelisted(ctx context.Context, chatID int64) ([]*UserState, error)
	DeleteUserStates(ctx context.Context, chatID int64, userIDs []int64) error

	CreateCaptcha(ctx context.Context, captcha *PendingCaptcha) error
	GetCaptcha(ctx context.Context, chatID, userID int64) (*PendingCaptcha, error)
	UpdateCaptcha(ctx context.Context, captcha *PendingCaptcha) error
	DeleteCaptcha(ctx context.Context, chatID, userID int64) error
	GetExpiredCaptchas(ctx context.Context, now time.Time) ([]*PendingCaptcha, error)

	UpsertJoinRequest(ctx context.Context, req *JoinRequest) error
	StoreJoinAnswers(ctx context.Context, chatID, userID int64, answers []string) (*JoinRequest, error)
	SetJoinRequestStatus(ctx context.Context, chatID, userID int64, status JoinRequestStatus) error
	GetJoinRequest(ctx context.Context, chatID, userID int64) (*JoinRequest, error)
	ListPendingJoinRequests(ctx context.Context, chatID int64) ([]*JoinRequest, error)
	GetExpiredJoinRequests(ctx context.Context, now time.Time) ([]*JoinRequest, error)
	DeleteJoinRequest(ctx context.Context, chatID, userID int64) error
}
