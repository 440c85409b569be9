// Package dispatch carries out moderation results against a live chat.
package dispatch

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/audit"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/observability"
	"github.com/iamwavecut/ngguard/internal/settings"
)

const (
	silentWarning = "warning"
	silentService = "service"
)

type (
	// Gateway executes single chat operations.
	Gateway interface {
		DeleteMessage(ctx context.Context, chatID int64, messageID int) error
		Restrict(ctx context.Context, chatID, userID int64, perms moderation.Permissions, until time.Time) error
		Ban(ctx context.Context, chatID, userID int64, until time.Time, revokeHistory bool) error
		LiftRestrictions(ctx context.Context, chatID, userID int64) error
		Send(ctx context.Context, msg Outgoing) (int, error)
		CloseTopic(ctx context.Context, chatID int64, threadID int) error
	}

	SettingsProvider interface {
		GetSettings(ctx context.Context, chatID int64) (*settings.ChatSettings, error)
	}

	Outgoing struct {
		ChatID   int64
		ThreadID int
		Text     string
		ReplyTo  int
		Keyboard [][]moderation.Button
	}

	// Target is where a result applies. ThreadID routes replies into a forum topic.
	Target struct {
		ChatID   int64
		ThreadID int
	}

	Dispatcher struct {
		gateway  Gateway
		settings SettingsProvider
		audit    *audit.Logger
		now      func() time.Time
		logger   *log.Entry
	}

	Option func(*Dispatcher)
)

func WithAudit(logger *audit.Logger) Option {
	return func(d *Dispatcher) { d.audit = logger }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(gateway Gateway, provider SettingsProvider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gateway:  gateway,
		settings: provider,
		now:      time.Now,
		logger:   log.WithField("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs the result in the main thread of a chat.
func (d *Dispatcher) Execute(ctx context.Context, chatID int64, res *moderation.Result) error {
	return d.ExecuteIn(ctx, Target{ChatID: chatID}, res)
}

// ExecuteIn runs every action in order. A failed action is logged and the rest still run.
// The returned error reports how many actions failed.
func (d *Dispatcher) ExecuteIn(ctx context.Context, target Target, res *moderation.Result) error {
	if res == nil || res.Empty() {
		return nil
	}
	entry := d.logger.WithField("chat_id", target.ChatID)

	var cfg *settings.ChatSettings
	if d.settings != nil {
		s, err := d.settings.GetSettings(ctx, target.ChatID)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("cant load settings, dispatching without silent mode")
		} else {
			cfg = s
		}
	}

	failed := 0
	for _, action := range res.Actions {
		if suppressed(cfg, action) {
			d.record(target.ChatID, action, audit.StatusSuppressed, nil)
			continue
		}
		err := d.apply(ctx, target, cfg, action)
		if err != nil {
			failed++
			entry.WithFields(log.Fields{
				"kind":  action.Kind(),
				"rule":  action.Rule(),
				"error": err.Error(),
			}).Warn("cant execute action")
			d.record(target.ChatID, action, audit.StatusFailed, err)
			continue
		}
		d.record(target.ChatID, action, audit.StatusOK, nil)
	}

	d.report(ctx, target.ChatID, cfg, res.TriggeredRules)

	if failed > 0 {
		return fmt.Errorf("%d of %d actions failed", failed, len(res.Actions))
	}
	return nil
}

func (d *Dispatcher) apply(ctx context.Context, target Target, cfg *settings.ChatSettings, action moderation.Action) error {
	chatID := target.ChatID
	switch a := action.(type) {
	case moderation.DeleteMessage:
		return errors.WithMessage(d.gateway.DeleteMessage(ctx, chatID, a.MessageID), "cant delete message")
	case moderation.Mute:
		until := d.now().Add(time.Duration(a.UntilSeconds) * time.Second)
		return errors.WithMessage(d.gateway.Restrict(ctx, chatID, a.UserID, moderation.NoPermissions, until), "cant mute")
	case moderation.Ban:
		var until time.Time
		if a.UntilSeconds > 0 {
			until = d.now().Add(time.Duration(a.UntilSeconds) * time.Second)
		}
		return errors.WithMessage(d.gateway.Ban(ctx, chatID, a.UserID, until, a.RevokeHistory), "cant ban")
	case moderation.Restrict:
		var until time.Time
		if a.UntilSeconds > 0 {
			until = d.now().Add(time.Duration(a.UntilSeconds) * time.Second)
		}
		return errors.WithMessage(d.gateway.Restrict(ctx, chatID, a.UserID, a.Permissions, until), "cant restrict")
	case moderation.LiftRestrictions:
		return errors.WithMessage(d.gateway.LiftRestrictions(ctx, chatID, a.UserID), "cant lift restrictions")
	case moderation.Warn:
		lang := language(cfg)
		text := fmt.Sprintf(
			i18n.Get("⚠️ %s: %s", lang),
			fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, a.UserID, i18n.Get("User", lang)),
			html.EscapeString(a.Reason),
		)
		_, err := d.gateway.Send(ctx, Outgoing{ChatID: chatID, ThreadID: target.ThreadID, Text: text})
		return errors.WithMessage(err, "cant warn")
	case moderation.SendMessage:
		out := Outgoing{
			ChatID:   chatID,
			ThreadID: target.ThreadID,
			Text:     a.Text,
			ReplyTo:  a.ReplyTo,
			Keyboard: a.Keyboard,
		}
		if a.ChatID != 0 && a.ChatID != chatID {
			out.ChatID = a.ChatID
			out.ThreadID = 0
			out.ReplyTo = 0
		}
		_, err := d.gateway.Send(ctx, out)
		return errors.WithMessage(err, "cant send message")
	case moderation.Log:
		entry := d.logger.WithField("rule", a.Rule()).WithFields(log.Fields(a.Fields))
		level, err := log.ParseLevel(a.Level)
		if err != nil {
			level = log.InfoLevel
		}
		entry.Log(level, a.Message)
		return nil
	case moderation.CloseTopic:
		return errors.WithMessage(d.gateway.CloseTopic(ctx, chatID, a.ThreadID), "cant close topic")
	default:
		return fmt.Errorf("unsupported action %T", action)
	}
}

func (d *Dispatcher) report(ctx context.Context, chatID int64, cfg *settings.ChatSettings, rules []string) {
	if cfg == nil || !cfg.Reports.Enabled || cfg.Reports.DestinationChatID == 0 || len(rules) == 0 {
		return
	}
	text := tool.ExecTemplate(i18n.Get("Rules triggered: {{ .rules }}", cfg.Language), map[string]any{
		"rules": strings.Join(rules, "; "),
	})
	_, err := d.gateway.Send(ctx, Outgoing{ChatID: cfg.Reports.DestinationChatID, Text: text})
	if err != nil {
		d.logger.WithField("chat_id", chatID).WithField("error", err.Error()).Warn("cant send report")
	}
	if d.audit != nil {
		d.audit.Report(chatID, cfg.Reports.DestinationChatID, rules, err)
	}
}

func (d *Dispatcher) record(chatID int64, action moderation.Action, status string, err error) {
	observability.RecordAction(string(action.Kind()), status)
	if d.audit != nil {
		d.audit.Action(chatID, action, status, err)
	}
}

// suppressed applies silent mode to outward notifications only. Interactive prompts always go out.
func suppressed(cfg *settings.ChatSettings, action moderation.Action) bool {
	if cfg == nil || !cfg.SilentMode.Enabled {
		return false
	}
	switch a := action.(type) {
	case moderation.Warn:
		return cfg.SilentMode.Silenced(silentWarning, a.Rule())
	case moderation.SendMessage:
		if a.Interactive() {
			return false
		}
		return cfg.SilentMode.Silenced(silentService, a.Rule())
	}
	return false
}

func language(cfg *settings.ChatSettings) string {
	if cfg == nil {
		return ""
	}
	return cfg.Language
}
