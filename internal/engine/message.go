package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/ratewindow"
	"github.com/iamwavecut/ngguard/internal/settings"
)

// ProcessMessage evaluates a user message against the chat's content rules.
func (e *Engine) ProcessMessage(ctx context.Context, msg *Message) (*moderation.Result, error) {
	res := moderation.NewResult()
	if msg == nil || !msg.Chat.IsGroup() || msg.From == nil || msg.From.IsBot {
		return res, nil
	}

	ctx, finish := e.startSpan(ctx, "message", msg.Chat.ID)
	defer func() { finish(res) }()

	s, err := e.settingsFor(ctx, msg.Chat)
	if err != nil {
		return res, err
	}

	isAdmin, err := e.isAdmin(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		e.logger.WithFields(log.Fields{
			"chat_id": msg.Chat.ID,
			"user_id": msg.From.ID,
			"error":   err.Error(),
		}).Warn("cant resolve admin status")
	}
	if isAdmin {
		return res, nil
	}

	e.detect(ctx, RuleNightMode, e.detectNightMode, msg, s, res)
	if len(res.Actions) > 0 {
		return res, nil
	}

	detectors := []struct {
		name string
		fn   detectFunc
	}{
		{RuleFlood, e.detectFlood},
		{"stop_words", e.detectStopWords},
		{RuleProfanity, e.detectProfanity},
		{RuleLinkGuard, e.detectLinks},
		{RuleForwardGuard, e.detectForwards},
		{RuleReputation, e.detectReputation},
	}
	for _, d := range detectors {
		e.detect(ctx, d.name, d.fn, msg, s, res)
	}
	return res, nil
}

func (e *Engine) detectNightMode(_ context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error {
	if !s.NightMode.Active(e.now(), s.Timezone) {
		return nil
	}
	res.Add(RuleNightMode, moderation.DeleteMessage{MessageID: msg.MessageID})
	if s.NightMode.Action == settings.ActionMute {
		res.Add(RuleNightMode, moderation.Mute{UserID: msg.From.ID, UntilSeconds: nightMuteSeconds})
	}
	return nil
}

// detectFlood counts the message before deciding, so a failed delivery never under-counts.
func (e *Engine) detectFlood(_ context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error {
	cfg := s.Flood
	if !cfg.Enabled {
		return nil
	}
	key := ratewindow.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	count := e.flood.Record(key, e.now(), time.Duration(cfg.IntervalSeconds)*time.Second)
	if count <= cfg.MessageLimit {
		return nil
	}

	actions := []moderation.Action{
		moderation.DeleteMessage{MessageID: msg.MessageID},
		moderation.Warn{UserID: msg.From.ID, Reason: i18n.Get("Flood detected", s.Language)},
	}
	switch cfg.Punishment {
	case settings.ActionMute:
		actions = append(actions, moderation.Mute{UserID: msg.From.ID, UntilSeconds: cfg.MuteMinutes * 60})
	case settings.ActionBan:
		actions = append(actions, moderation.Ban{UserID: msg.From.ID})
	}
	res.Add(RuleFlood, actions...)
	return nil
}

// detectStopWords fires for the first list holding a match; later lists are not checked.
func (e *Engine) detectStopWords(ctx context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error {
	cfg := s.StopWords
	if !cfg.Enabled || msg.Text == "" {
		return nil
	}
	text := strings.ToLower(msg.Text)
	for _, list := range cfg.Lists {
		if !containsAny(text, list.Words) {
			continue
		}
		rule := StopWordsRule(list.Name)
		res.Add(rule, moderation.DeleteMessage{MessageID: msg.MessageID})
		warnings, err := e.store.AddWarning(ctx, msg.Chat.ID, msg.From.ID)
		if err != nil {
			return err
		}
		if warnings >= cfg.WarnThreshold {
			switch list.Action {
			case settings.ActionMute:
				res.Add(rule, moderation.Mute{UserID: msg.From.ID, UntilSeconds: list.MuteMinutes * 60})
			case settings.ActionBan:
				res.Add(rule, moderation.Ban{UserID: msg.From.ID})
			}
		}
		return nil
	}
	return nil
}

func (e *Engine) detectProfanity(ctx context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error {
	cfg := s.Profanity
	if !cfg.Enabled || msg.Text == "" {
		return nil
	}
	if !containsAny(strings.ToLower(msg.Text), cfg.Dictionary) {
		return nil
	}
	res.Add(RuleProfanity, moderation.DeleteMessage{MessageID: msg.MessageID})
	warnings, err := e.store.AddWarning(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return err
	}
	if warnings >= cfg.WarnThreshold {
		res.Add(RuleProfanity, moderation.Mute{UserID: msg.From.ID, UntilSeconds: cfg.MuteMinutes * 60})
	}
	return nil
}

func (e *Engine) detectLinks(ctx context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error {
	cfg := s.LinkGuard
	if !cfg.Enabled {
		return nil
	}
	links := ExtractLinks(msg.Content())
	if len(links) == 0 {
		return nil
	}
	if cfg.AllowTrusted {
		state, err := e.store.GetUserState(ctx, msg.Chat.ID, msg.From.ID)
		if err != nil {
			return err
		}
		if state.IsTrusted || state.IsWhitelisted {
			return nil
		}
	}

	for _, link := range links {
		host := Hostname(link)
		if host == "" {
			continue
		}
		whitelisted := domainListed(host, cfg.WhitelistDomains)
		var reason string
		switch {
		case cfg.BlockAll && !whitelisted:
			reason = i18n.Get("Links are not allowed", s.Language)
		case !whitelisted && domainListed(host, cfg.BlacklistDomains):
			reason = fmt.Sprintf(i18n.Get("Link %s is banned", s.Language), host)
		default:
			continue
		}
		res.Add(RuleLinkGuard,
			moderation.DeleteMessage{MessageID: msg.MessageID},
			moderation.Warn{UserID: msg.From.ID, Reason: reason},
		)
		return nil
	}
	return nil
}

func (e *Engine) detectForwards(_ context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error {
	cfg := s.Forwards
	if cfg.AllowExternalForwards || (msg.ForwardFrom == nil && msg.ForwardFromChat == nil) {
		return nil
	}
	allowed := false
	if msg.ForwardFromChat != nil {
		allowed = cfg.AllowsSender(msg.ForwardFromChat.ID)
	}
	if msg.ForwardFrom != nil {
		allowed = allowed || cfg.AllowsSender(msg.ForwardFrom.ID)
	}
	if allowed {
		return nil
	}
	res.Add(RuleForwardGuard,
		moderation.DeleteMessage{MessageID: msg.MessageID},
		moderation.Warn{UserID: msg.From.ID, Reason: i18n.Get("Forwarding is disabled", s.Language)},
	)
	return nil
}

func (e *Engine) detectReputation(ctx context.Context, msg *Message, s *settings.ChatSettings, res *moderation.Result) error {
	cfg := s.Reputation
	target := msg.ReplyTo
	if !cfg.Enabled || msg.Text == "" || target == nil || target.IsBot {
		return nil
	}

	var delta int
	switch text := strings.TrimSpace(msg.Text); {
	case cfg.UpvoteCommand != "" && strings.EqualFold(text, cfg.UpvoteCommand):
		delta = 1
	case cfg.DownvoteCommand != "" && strings.EqualFold(text, cfg.DownvoteCommand):
		delta = -1
	default:
		return nil
	}

	value, err := e.store.AdjustReputation(ctx, msg.Chat.ID, target.ID, delta)
	if err != nil {
		return err
	}
	res.Add(RuleReputation, moderation.SendMessage{
		Text: fmt.Sprintf(i18n.Get("User reputation %s: %d", s.Language), e.mention(ctx, msg.Chat.ID, target.ID, target.FullName(), s.Language), value),
	})
	return nil
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(word)) {
			return true
		}
	}
	return false
}
