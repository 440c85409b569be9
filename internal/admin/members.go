package admin

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/settings"
)

func (h *Handler) trust(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	userID, name, ok := target(cmd)
	if !ok {
		h.reply(ctx, cmd, i18n.Get("Could not determine the user", s.Language))
		return nil
	}
	state, err := h.store.GetUserState(ctx, cmd.Chat.ID, userID)
	if err != nil {
		return errors.WithMessage(err, "cant get user state")
	}
	if err := h.store.SetTrust(ctx, cmd.Chat.ID, userID, !state.IsTrusted); err != nil {
		return errors.WithMessage(err, "cant set trust")
	}
	text := i18n.Get("User %s is now trusted", s.Language)
	if state.IsTrusted {
		text = i18n.Get("User %s is no longer trusted", s.Language)
	}
	h.reply(ctx, cmd, fmt.Sprintf(text, html.EscapeString(name)))
	return nil
}

func (h *Handler) warn(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	if cmd.Reply == nil || cmd.Reply.From == nil {
		h.reply(ctx, cmd, i18n.Get("Warnings can only be issued in reply to a message", s.Language))
		return nil
	}
	warnings, err := h.store.AddWarning(ctx, cmd.Chat.ID, cmd.Reply.From.ID)
	if err != nil {
		return errors.WithMessage(err, "cant add warning")
	}
	h.reply(ctx, cmd, fmt.Sprintf(
		i18n.Get("⚠️ %s received a warning (%d).", s.Language),
		html.EscapeString(cmd.Reply.From.FullName()), warnings,
	))
	return nil
}

func (h *Handler) unwarn(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	if cmd.Reply == nil || cmd.Reply.From == nil {
		h.reply(ctx, cmd, i18n.Get("Warnings can only be cleared in reply to a message", s.Language))
		return nil
	}
	if err := h.store.ResetWarnings(ctx, cmd.Chat.ID, cmd.Reply.From.ID); err != nil {
		return errors.WithMessage(err, "cant reset warnings")
	}
	h.reply(ctx, cmd, i18n.Get("Warnings have been reset", s.Language))
	return nil
}

func (h *Handler) addWhitelist(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	userID, name, ok := target(cmd)
	if !ok {
		h.reply(ctx, cmd, i18n.Get("Could not determine the user", s.Language))
		return nil
	}
	if err := h.store.SetWhitelist(ctx, cmd.Chat.ID, userID, true); err != nil {
		return errors.WithMessage(err, "cant whitelist")
	}
	h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("User %s added to the link whitelist", s.Language), html.EscapeString(name)))
	return nil
}

func (h *Handler) delWhitelist(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	userID, name, ok := target(cmd)
	if !ok {
		h.reply(ctx, cmd, i18n.Get("Could not determine the user", s.Language))
		return nil
	}
	if err := h.store.SetWhitelist(ctx, cmd.Chat.ID, userID, false); err != nil {
		return errors.WithMessage(err, "cant remove from whitelist")
	}
	h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("User %s removed from the link whitelist", s.Language), html.EscapeString(name)))
	return nil
}

func (h *Handler) listWhitelist(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	states, err := h.store.ListWhitelisted(ctx, cmd.Chat.ID)
	if err != nil {
		return errors.WithMessage(err, "cant list whitelist")
	}
	if len(states) == 0 {
		h.reply(ctx, cmd, i18n.Get("The whitelist is empty", s.Language))
		return nil
	}
	lines := make([]string, 0, len(states)+1)
	lines = append(lines, i18n.Get("Whitelist:", s.Language))
	for _, st := range states {
		lines = append(lines, fmt.Sprintf(i18n.Get("• <code>%d</code> (reputation %d)", s.Language), st.UserID, st.Reputation))
	}
	h.reply(ctx, cmd, strings.Join(lines, "\n"))
	return nil
}
