package engine

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/iamwavecut/ngguard/internal/captcha"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/ratewindow"
	"github.com/iamwavecut/ngguard/internal/settings"
)

// ProcessServiceMessage onboards new members and tidies join/leave service messages.
func (e *Engine) ProcessServiceMessage(ctx context.Context, msg *Message) (*moderation.Result, error) {
	res := moderation.NewResult()
	if msg == nil || !msg.Chat.IsGroup() || !msg.IsService() {
		return res, nil
	}

	ctx, finish := e.startSpan(ctx, "service_message", msg.Chat.ID)
	defer func() { finish(res) }()

	s, err := e.settingsFor(ctx, msg.Chat)
	if err != nil {
		return res, err
	}

	if len(msg.NewMembers) > 0 && s.SystemMessages.DeleteJoin {
		res.Add(RuleSystemJoin, moderation.DeleteMessage{MessageID: msg.MessageID})
	}
	for i := range msg.NewMembers {
		member := msg.NewMembers[i]
		if member.IsBot {
			continue
		}
		e.onboard(ctx, msg.Chat, member, s, res)
	}

	if msg.LeftMember != nil && s.SystemMessages.DeleteLeave {
		res.Add(RuleSystemLeave, moderation.DeleteMessage{MessageID: msg.MessageID})
	}
	return res, nil
}

// ProcessChatMemberUpdate feeds membership changes seen outside service messages into anti-raid.
func (e *Engine) ProcessChatMemberUpdate(ctx context.Context, upd *MemberUpdate) (*moderation.Result, error) {
	res := moderation.NewResult()
	if upd == nil || upd.User.IsBot || !upd.Joined() {
		return res, nil
	}

	ctx, finish := e.startSpan(ctx, "member_update", upd.Chat.ID)
	defer func() { finish(res) }()

	s, err := e.settingsFor(ctx, upd.Chat)
	if err != nil {
		return res, err
	}
	e.antiRaid(ctx, upd.Chat.ID, upd.User, s, res)
	return res, nil
}

func (e *Engine) onboard(ctx context.Context, chat Chat, member User, s *settings.ChatSettings, res *moderation.Result) {
	entry := e.logger.WithField("chat_id", chat.ID).WithField("user_id", member.ID)

	if !e.filterJoin(member, s, res) {
		if s.Welcome.Enabled && s.Welcome.Text != "" {
			text := strings.NewReplacer(
				"{user}", html.EscapeString(member.FullName()),
				"{chat}", html.EscapeString(chat.Title),
			).Replace(s.Welcome.Text)
			res.Add(RuleWelcome, moderation.SendMessage{Text: text})
		}
		if err := e.challenge(ctx, chat, member, s, res); err != nil {
			entry.WithField("error", err.Error()).Error("cant issue captcha")
		}
	}

	e.antiRaid(ctx, chat.ID, member, s, res)
}

// filterJoin bans members whose name matches the join filter. It reports whether the member was banned.
func (e *Engine) filterJoin(member User, s *settings.ChatSettings, res *moderation.Result) bool {
	cfg := s.JoinFilter
	if !cfg.Enabled {
		return false
	}
	if cfg.CloseChat {
		res.Add(RuleJoinClosed,
			moderation.Ban{UserID: member.ID},
			moderation.SendMessage{Text: i18n.Get("New joins are closed. The user has been removed.", s.Language)},
		)
		return true
	}

	words := make(map[string]struct{}, len(cfg.NameStopwords))
	for _, w := range cfg.NameStopwords {
		words[strings.ToLower(w)] = struct{}{}
	}
	for _, preset := range cfg.Presets {
		presetWords, _ := settings.JoinFilterPreset(preset)
		for _, w := range presetWords {
			words[strings.ToLower(w)] = struct{}{}
		}
	}

	name := strings.ToLower(member.FirstName + " " + member.LastName)
	username := strings.ToLower(member.Username)
	for word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(name, word) || strings.Contains(username, word) {
			res.Add(RuleJoinFilter,
				moderation.Ban{UserID: member.ID},
				moderation.SendMessage{Text: fmt.Sprintf(
					i18n.Get("User %s has been blocked because of the name.", s.Language),
					html.EscapeString(member.FullName()),
				)},
			)
			return true
		}
	}
	return false
}

// challenge restricts the member and posts a captcha unless one is already pending.
func (e *Engine) challenge(ctx context.Context, chat Chat, member User, s *settings.ChatSettings, res *moderation.Result) error {
	cfg := s.Captcha
	if !cfg.Enabled {
		return nil
	}
	pending, err := e.captcha.IsPending(ctx, chat.ID, member.ID)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}

	ch, err := e.captcha.Issue(ctx, chat.ID, member.ID, cfg.Type, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}

	var question string
	buttons := make([]moderation.Button, 0, len(ch.Options))
	if ch.Kind == settings.CaptchaMath {
		question = fmt.Sprintf(i18n.Get("What is %d + %d?", s.Language), ch.Operands[0], ch.Operands[1])
		for _, opt := range ch.Options {
			buttons = append(buttons, moderation.Button{Label: opt.Answer, Data: opt.Token})
		}
	} else {
		question = i18n.Get("Please confirm you are not a bot", s.Language)
		for _, opt := range ch.Options {
			label := i18n.Get("I am a bot", s.Language)
			if opt.Answer == captcha.AnswerHuman {
				label = i18n.Get("I am human", s.Language)
			}
			buttons = append(buttons, moderation.Button{Label: label, Data: opt.Token})
		}
	}

	res.Add(RuleCaptcha,
		moderation.Restrict{UserID: member.ID, Permissions: moderation.NoPermissions},
		moderation.SendMessage{
			Text:     e.mention(ctx, chat.ID, member.ID, member.FullName(), s.Language) + ", " + question,
			Keyboard: [][]moderation.Button{buttons},
		},
	)
	return nil
}

func (e *Engine) antiRaid(ctx context.Context, chatID int64, member User, s *settings.ChatSettings, res *moderation.Result) {
	cfg := s.AntiRaid
	if !cfg.Enabled || member.IsBot {
		return
	}
	now := e.now()
	// One join usually arrives twice: as a service message and as a chat_member update.
	if e.joins.Record(ratewindow.Key{ChatID: chatID, UserID: member.ID}, now, joinDedupWindow) > 1 {
		return
	}
	count := e.raids.Record(ratewindow.Key{ChatID: chatID}, now, time.Duration(cfg.WithinSeconds)*time.Second)
	if count < cfg.JoinThreshold {
		return
	}

	mention := e.mention(ctx, chatID, member.ID, member.FullName(), s.Language)
	switch cfg.Action {
	case settings.ActionMute:
		res.Add(RuleAntiRaid,
			moderation.Mute{UserID: member.ID, UntilSeconds: raidMuteSeconds},
			moderation.SendMessage{Text: fmt.Sprintf(i18n.Get("%s is temporarily restricted due to a mass join.", s.Language), mention)},
		)
	case settings.ActionBan:
		res.Add(RuleAntiRaid,
			moderation.Ban{UserID: member.ID},
			moderation.SendMessage{Text: fmt.Sprintf(i18n.Get("%s has been banned on suspicion of a raid.", s.Language), mention)},
		)
	default:
		res.Add(RuleAntiRaidNotice, moderation.SendMessage{
			Text: fmt.Sprintf(i18n.Get("Raid activity detected. %s, confirm yourself with /trust if needed.", s.Language), mention),
		})
	}
	res.Add(RuleAntiRaid, moderation.Log{
		Level:   "warning",
		Message: "anti-raid triggered",
		Fields: map[string]any{
			"chat_id": chatID,
			"user_id": member.ID,
			"count":   count,
		},
	})
}
