package admin

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/pkg/errors"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/settings"
)

func (h *Handler) backup(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	data, err := settings.Encode(s)
	if err != nil {
		return errors.WithMessage(err, "cant encode settings")
	}
	title := cmd.Chat.Title
	if title == "" {
		title = fmt.Sprint(cmd.Chat.ID)
	}
	name := fmt.Sprintf("moderator_settings_%d.json", cmd.Chat.ID)
	caption := fmt.Sprintf(i18n.Get("Settings backup for %s", s.Language), html.EscapeString(title))
	return errors.WithMessage(
		h.gateway.SendDocument(ctx, cmd.Chat.ID, cmd.ThreadID, name, data, caption),
		"cant send backup",
	)
}

// restore replaces the chat settings with a backup taken from the command argument,
// the replied-to text or the replied-to document. The subscription is never imported.
func (h *Handler) restore(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	payload, err := h.restorePayload(ctx, cmd)
	if err != nil {
		if errors.Is(err, ngerrors.ErrPayloadTooLarge) {
			h.reply(ctx, cmd, i18n.Get("The file is too large, 512 KB at most.", lang))
			return nil
		}
		h.reply(ctx, cmd, i18n.Get("Could not download the file from Telegram.", lang))
		return nil
	}
	if len(payload) == 0 {
		h.reply(ctx, cmd, i18n.Get("Send the backup file in reply to the command or paste the JSON.", lang))
		return nil
	}

	restored, err := settings.Decode(payload)
	if err != nil {
		if errors.Is(err, ngerrors.ErrPayloadTooLarge) {
			h.reply(ctx, cmd, i18n.Get("The file is too large, 512 KB at most.", lang))
			return nil
		}
		h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("The settings did not pass validation: %s", lang), html.EscapeString(err.Error())))
		return nil
	}
	restored.Subscription = s.Subscription

	if err := h.store.SaveSettings(ctx, cmd.Chat.ID, restored); err != nil {
		return errors.WithMessage(err, "cant save restored settings")
	}
	h.engine.InvalidateSettingsCache(cmd.Chat.ID)
	h.reply(ctx, cmd, i18n.Get("Settings restored.", restored.Language))
	return nil
}

func (h *Handler) restorePayload(ctx context.Context, cmd *Command) ([]byte, error) {
	if reply := cmd.Reply; reply != nil {
		switch {
		case reply.FileID != "":
			if reply.FileSize > settings.MaxBackupBytes {
				return nil, ngerrors.ErrPayloadTooLarge
			}
			return h.gateway.DownloadFile(ctx, reply.FileID, settings.MaxBackupBytes)
		case strings.TrimSpace(reply.Text) != "":
			return []byte(strings.TrimSpace(reply.Text)), nil
		}
	}
	return []byte(strings.TrimSpace(cmd.Args)), nil
}
