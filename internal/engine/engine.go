// Package engine turns inbound chat events into moderation results. It owns the
// settings cache, the admin cache and the rate windows; everything durable lives
// in the store.
package engine

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/iamwavecut/ngguard/internal/captcha"
	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/observability"
	"github.com/iamwavecut/ngguard/internal/ratewindow"
	"github.com/iamwavecut/ngguard/internal/settings"
)

const (
	DefaultSettingsTTL = 60 * time.Second
	DefaultAdminTTL    = 120 * time.Second
	DefaultCacheSize   = 4096

	joinDedupWindow = 10 * time.Second
)

type (
	// Store is the part of the persistent store the pipelines read and write.
	Store interface {
		captcha.Store
		EnsureChat(ctx context.Context, chatID int64, title, username string) (*settings.ChatSettings, error)
		GetSettings(ctx context.Context, chatID int64) (*settings.ChatSettings, error)
		GetUserState(ctx context.Context, chatID, userID int64) (*db.UserState, error)
		AddWarning(ctx context.Context, chatID, userID int64) (int, error)
		AdjustReputation(ctx context.Context, chatID, userID int64, delta int) (int, error)
		UpsertJoinRequest(ctx context.Context, req *db.JoinRequest) error
	}

	// Directory resolves chat membership facts from the messaging platform.
	Directory interface {
		IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
		DisplayName(ctx context.Context, chatID, userID int64) (string, error)
	}

	Engine struct {
		store   Store
		dir     Directory
		captcha *captcha.Service
		now     func() time.Time
		logger  *log.Entry
		tracer  trace.Tracer

		settingsTTL time.Duration
		cacheSize   int
		adminTTL    time.Duration
		windowCap   int

		settings *expirable.LRU[int64, *settings.ChatSettings]
		loads    singleflight.Group
		admins   *ristretto.Cache
		flood    *ratewindow.Tracker
		raids    *ratewindow.Tracker
		joins    *ratewindow.Tracker
	}

	Option func(*Engine)

	detectFunc func(ctx context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error
)

// WithClock replaces the wall clock used for rate windows, night mode and captcha expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithSettingsTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.settingsTTL = ttl }
}

func WithCacheSize(size int) Option {
	return func(e *Engine) { e.cacheSize = size }
}

func WithAdminTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.adminTTL = ttl }
}

// WithWindowCapacity bounds the timestamps kept per rate window key.
func WithWindowCapacity(capacity int) Option {
	return func(e *Engine) { e.windowCap = capacity }
}

func New(store Store, dir Directory, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:       store,
		dir:         dir,
		now:         time.Now,
		logger:      log.WithField("component", "engine"),
		tracer:      otel.Tracer(observability.TracerName),
		settingsTTL: DefaultSettingsTTL,
		cacheSize:   DefaultCacheSize,
		adminTTL:    DefaultAdminTTL,
		windowCap:   ratewindow.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(e)
	}

	admins, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(e.cacheSize) * 10,
		MaxCost:     int64(e.cacheSize) * 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "cant create admin cache")
	}

	e.admins = admins
	e.settings = expirable.NewLRU[int64, *settings.ChatSettings](e.cacheSize, nil, e.settingsTTL)
	e.flood = ratewindow.New(e.windowCap)
	e.raids = ratewindow.New(e.windowCap)
	e.joins = ratewindow.New(e.windowCap)
	e.captcha = captcha.NewService(store, captcha.WithClock(e.now))
	return e, nil
}

func (e *Engine) Close() error {
	e.settings.Purge()
	e.admins.Close()
	return nil
}

// GetSettings returns a copy of the chat's settings, served from cache when fresh.
// A chat that was never registered yields ErrChatNotRegistered.
func (e *Engine) GetSettings(ctx context.Context, chatID int64) (*settings.ChatSettings, error) {
	if s, ok := e.settings.Get(chatID); ok {
		return s.Clone(), nil
	}
	v, err, _ := e.loads.Do("get:"+strconv.FormatInt(chatID, 10), func() (any, error) {
		s, err := e.store.GetSettings(ctx, chatID)
		if err != nil {
			return nil, err
		}
		e.settings.Add(chatID, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*settings.ChatSettings).Clone(), nil
}

// InvalidateSettingsCache drops the cached settings so the next event reads the store.
func (e *Engine) InvalidateSettingsCache(chatID int64) {
	e.settings.Remove(chatID)
}

// settingsFor registers the chat on first sight. The returned value is shared and must not be mutated.
func (e *Engine) settingsFor(ctx context.Context, chat Chat) (*settings.ChatSettings, error) {
	if s, ok := e.settings.Get(chat.ID); ok {
		return s, nil
	}
	v, err, _ := e.loads.Do("ensure:"+strconv.FormatInt(chat.ID, 10), func() (any, error) {
		s, err := e.store.EnsureChat(ctx, chat.ID, chat.Title, chat.Username)
		if err != nil {
			return nil, err
		}
		e.settings.Add(chat.ID, s)
		return s, nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "cant load chat settings")
	}
	return v.(*settings.ChatSettings), nil
}

func (e *Engine) isAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	key := fmt.Sprintf("%d:%d", chatID, userID)
	if v, ok := e.admins.Get(key); ok {
		return v.(bool), nil
	}
	if e.dir == nil {
		return false, nil
	}
	isAdmin, err := e.dir.IsAdmin(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	e.admins.SetWithTTL(key, isAdmin, 1, e.adminTTL)
	return isAdmin, nil
}

// IsAdmin reports whether the user administers the chat, using the shared admin cache.
func (e *Engine) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	return e.isAdmin(ctx, chatID, userID)
}

// PruneWindows forgets rate window keys idle for longer than idle and reports
// how many keys each tracker still holds.
func (e *Engine) PruneWindows(idle time.Duration) int {
	now := e.now()
	pruned := e.flood.Prune(now, idle) + e.raids.Prune(now, idle) + e.joins.Prune(now, idle)
	observability.SetRateWindows("flood", e.flood.Keys())
	observability.SetRateWindows("raid", e.raids.Keys())
	observability.SetRateWindows("join", e.joins.Keys())
	return pruned
}

// detect runs one detector; a failure or panic is logged and siblings still run.
func (e *Engine) detect(ctx context.Context, name string, fn detectFunc, msg *Message, s *settings.ChatSettings, res *moderation.Result) {
	entry := e.logger.WithFields(log.Fields{
		"detector": name,
		"chat_id":  msg.Chat.ID,
	})
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", fmt.Sprint(r)).Error("detector panicked")
		}
	}()
	if err := fn(ctx, msg, s, res); err != nil {
		entry.WithField("error", err.Error()).Error("detector failed")
	}
}

func (e *Engine) startSpan(ctx context.Context, pipeline string, chatID int64) (context.Context, func(res *moderation.Result)) {
	done := observability.StartPipeline(pipeline)
	ctx, span := e.tracer.Start(ctx, pipeline, trace.WithAttributes(attribute.Int64("chat_id", chatID)))
	return ctx, func(res *moderation.Result) {
		if res != nil {
			for _, rule := range res.TriggeredRules {
				observability.RecordRuleTriggered(rule)
			}
			span.SetAttributes(
				attribute.StringSlice("rules", res.TriggeredRules),
				attribute.Int("actions", len(res.Actions)),
			)
		}
		span.End()
		done()
	}
}

// mention renders an HTML link to the user. Unknown names are resolved through the directory.
func (e *Engine) mention(ctx context.Context, chatID, userID int64, name, lang string) string {
	if name == "" && e.dir != nil {
		resolved, err := e.dir.DisplayName(ctx, chatID, userID)
		if err != nil {
			e.logger.WithField("error", err.Error()).Debug("cant resolve display name")
		}
		name = resolved
	}
	if name == "" {
		name = i18n.Get("participant", lang)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}
