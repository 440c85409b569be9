package engine

import (
	"context"
	"fmt"

	"github.com/iamwavecut/ngguard/internal/captcha"
	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

// HandleCaptchaCallback resolves an answer to a captcha prompt. Presses by users
// without a pending challenge yield an empty result.
func (e *Engine) HandleCaptchaCallback(ctx context.Context, cb *CallbackQuery) (*moderation.Result, error) {
	res := moderation.NewResult()
	if cb == nil || !captcha.IsToken(cb.Data) {
		return res, nil
	}

	ctx, finish := e.startSpan(ctx, "captcha", cb.Chat.ID)
	defer func() { finish(res) }()

	verdict, err := e.captcha.Verify(ctx, cb.Chat.ID, cb.From.ID, cb.Data)
	if err != nil {
		return res, err
	}
	if verdict.Missing {
		return res, nil
	}

	s, err := e.settingsFor(ctx, cb.Chat)
	if err != nil {
		return res, err
	}
	mention := e.mention(ctx, cb.Chat.ID, cb.From.ID, cb.From.FullName(), s.Language)

	switch {
	case verdict.Success:
		res.Add(RuleCaptchaSuccess,
			moderation.LiftRestrictions{UserID: cb.From.ID},
			moderation.DeleteMessage{MessageID: cb.MessageID},
			moderation.SendMessage{Text: fmt.Sprintf(i18n.Get("%s passed the check ✅", s.Language), mention)},
		)
	case verdict.Expired || verdict.Attempts >= s.Captcha.MaxAttempts:
		if !verdict.Expired {
			if err := e.captcha.Clear(ctx, cb.Chat.ID, cb.From.ID); err != nil {
				return res, err
			}
		}
		res.Add(RuleCaptchaFailure,
			moderation.Ban{UserID: cb.From.ID},
			moderation.DeleteMessage{MessageID: cb.MessageID},
			moderation.SendMessage{Text: fmt.Sprintf(i18n.Get("%s failed the check and has been banned", s.Language), mention)},
		)
	default:
		remaining := s.Captcha.MaxAttempts - verdict.Attempts
		if remaining < 0 {
			remaining = 0
		}
		res.Add(RuleCaptchaRetry, moderation.SendMessage{
			Text: fmt.Sprintf(i18n.Get("%s, wrong answer. Attempts left: %d", s.Language), mention, remaining),
		})
	}
	return res, nil
}

// ExpireCaptcha fails a challenge whose deadline passed without an answer.
func (e *Engine) ExpireCaptcha(ctx context.Context, pending *db.PendingCaptcha) (*moderation.Result, error) {
	res := moderation.NewResult()
	if pending == nil {
		return res, nil
	}

	ctx, finish := e.startSpan(ctx, "captcha_expiry", pending.ChatID)
	defer func() { finish(res) }()

	if err := e.captcha.Clear(ctx, pending.ChatID, pending.UserID); err != nil {
		return res, err
	}
	s, err := e.settingsFor(ctx, Chat{ID: pending.ChatID})
	if err != nil {
		return res, err
	}
	mention := e.mention(ctx, pending.ChatID, pending.UserID, "", s.Language)
	res.Add(RuleCaptchaFailure,
		moderation.Ban{UserID: pending.UserID},
		moderation.SendMessage{Text: fmt.Sprintf(i18n.Get("%s failed the check and has been banned", s.Language), mention)},
	)
	return res, nil
}
