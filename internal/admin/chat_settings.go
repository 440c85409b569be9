package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/settings"
)

func (h *Handler) setFlood(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	parts := strings.Fields(cmd.Args)
	if len(parts) < 2 {
		h.reply(ctx, cmd, i18n.Get("Usage: /setflood <limit> <seconds> [mute|ban|delete]", lang))
		return nil
	}
	limit, limitErr := strconv.Atoi(parts[0])
	seconds, secondsErr := strconv.Atoi(parts[1])
	punishment := s.Flood.Punishment
	if len(parts) > 2 {
		punishment = strings.ToLower(parts[2])
	}
	switch {
	case limitErr != nil, secondsErr != nil, limit < 1, seconds < 1:
		h.reply(ctx, cmd, i18n.Get("Invalid parameters", lang))
		return nil
	case punishment != settings.ActionMute && punishment != settings.ActionBan && punishment != settings.ActionDelete:
		h.reply(ctx, cmd, i18n.Get("Invalid parameters", lang))
		return nil
	}

	s.Flood.Enabled = true
	s.Flood.MessageLimit = limit
	s.Flood.IntervalSeconds = seconds
	s.Flood.Punishment = punishment
	if err := h.save(ctx, cmd, s); err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf(
		i18n.Get("Flood control updated: %d messages per %d seconds, action %s", lang),
		limit, seconds, punishment,
	))
	return nil
}

func (h *Handler) setNight(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	parts := strings.Fields(cmd.Args)
	if len(parts) == 1 && strings.EqualFold(parts[0], "off") {
		s.NightMode.Enabled = false
		if err := h.save(ctx, cmd, s); err != nil {
			return err
		}
		h.reply(ctx, cmd, i18n.Get("Night mode disabled", lang))
		return nil
	}
	if len(parts) < 2 {
		h.reply(ctx, cmd, i18n.Get("Usage: /setnight <HH:MM> <HH:MM> [delete|mute|off]", lang))
		return nil
	}
	action := settings.ActionDelete
	if len(parts) > 2 {
		action = strings.ToLower(parts[2])
	}
	if action == "off" {
		s.NightMode.Enabled = false
		if err := h.save(ctx, cmd, s); err != nil {
			return err
		}
		h.reply(ctx, cmd, i18n.Get("Night mode disabled", lang))
		return nil
	}
	_, startErr := settings.ParseClock(parts[0])
	_, endErr := settings.ParseClock(parts[1])
	if startErr != nil || endErr != nil || (action != settings.ActionDelete && action != settings.ActionMute) {
		h.reply(ctx, cmd, i18n.Get("Invalid parameters", lang))
		return nil
	}

	s.NightMode = settings.NightModeConfig{
		Enabled: true,
		Start:   parts[0],
		End:     parts[1],
		Action:  action,
	}
	if err := h.save(ctx, cmd, s); err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Night mode %s-%s (%s) enabled", lang), parts[0], parts[1], action))
	return nil
}

func (h *Handler) toggleSilent(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	s.SilentMode.Enabled = !s.SilentMode.Enabled
	if err := h.save(ctx, cmd, s); err != nil {
		return err
	}
	if s.SilentMode.Enabled {
		h.reply(ctx, cmd, i18n.Get("Silent mode enabled", s.Language))
	} else {
		h.reply(ctx, cmd, i18n.Get("Silent mode disabled", s.Language))
	}
	return nil
}

// setReportChat points reports at a forwarded channel, an explicit chat ID, or the current chat.
func (h *Handler) setReportChat(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	destination := cmd.Chat.ID
	switch arg := strings.TrimSpace(cmd.Args); {
	case cmd.Reply != nil && cmd.Reply.ForwardChat != 0:
		destination = cmd.Reply.ForwardChat
	case arg != "":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			h.reply(ctx, cmd, i18n.Get("Specify the report chat ID", s.Language))
			return nil
		}
		destination = id
	}
	s.Reports.Enabled = true
	s.Reports.DestinationChatID = destination
	if err := h.save(ctx, cmd, s); err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Report chat set: <code>%d</code>", s.Language), destination))
	return nil
}
