package admin

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/settings"
)

const (
	minStopLimit = 1
	maxStopLimit = 10
)

func (h *Handler) addStopWord(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	if strings.TrimSpace(cmd.Args) == "" {
		h.reply(ctx, cmd, i18n.Get("Usage: /addstopword [list_number] word", lang))
		return nil
	}
	index, word, _, err := s.StopWords.ParseStopWordArgument(cmd.Args)
	if err != nil {
		h.reply(ctx, cmd, i18n.Get("Invalid parameters", lang))
		return nil
	}
	if !s.StopWords.AddWord(index, word) {
		h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("The word is already in list #%d.", lang), index+1))
		return nil
	}
	if err := h.save(ctx, cmd, s); err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf(
		i18n.Get("Word added to list #%d (%s).", lang),
		index+1, describeList(s.StopWords.Lists[index], lang),
	))
	return nil
}

func (h *Handler) delStopWord(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	if strings.TrimSpace(cmd.Args) == "" {
		h.reply(ctx, cmd, i18n.Get("Usage: /delstopword [list_number] word", lang))
		return nil
	}
	index, word, explicit, err := s.StopWords.ParseStopWordArgument(cmd.Args)
	if err != nil {
		h.reply(ctx, cmd, i18n.Get("Invalid parameters", lang))
		return nil
	}
	removed := s.StopWords.RemoveWord(index, word, explicit)
	if removed < 0 {
		h.reply(ctx, cmd, i18n.Get("No such word in the stop lists.", lang))
		return nil
	}
	if err := h.save(ctx, cmd, s); err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf(
		i18n.Get("Word removed from list #%d (%s).", lang),
		removed+1, describeList(s.StopWords.Lists[removed], lang),
	))
	return nil
}

func (h *Handler) listStopWords(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	var b strings.Builder
	if s.StopWords.Enabled {
		b.WriteString(fmt.Sprintf(i18n.Get("Stop words are on. Warning threshold: %d.", lang), s.StopWords.WarnThreshold))
	} else {
		b.WriteString(fmt.Sprintf(i18n.Get("Stop words are off. Warning threshold: %d.", lang), s.StopWords.WarnThreshold))
	}
	for i, list := range s.StopWords.Lists {
		b.WriteString(fmt.Sprintf("\n\n#%d (%s)", i+1, describeList(list, lang)))
		if len(list.Words) == 0 {
			b.WriteString("\n  -")
			continue
		}
		for _, w := range list.Words {
			b.WriteString("\n  • " + html.EscapeString(w))
		}
	}
	h.reply(ctx, cmd, b.String())
	return nil
}

func (h *Handler) setStopLimit(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	limit, err := strconv.Atoi(strings.TrimSpace(cmd.Args))
	if err != nil || limit < minStopLimit || limit > maxStopLimit {
		h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Usage: /setstoplimit <%d-%d>", lang), minStopLimit, maxStopLimit))
		return nil
	}
	s.StopWords.WarnThreshold = limit
	if err := h.save(ctx, cmd, s); err != nil {
		return err
	}
	h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Stop word warning threshold: %d.", lang), limit))
	return nil
}

func describeList(list settings.StopWordList, lang string) string {
	switch list.Action {
	case settings.ActionMute:
		return fmt.Sprintf(i18n.Get("mute for %d min", lang), list.MuteMinutes)
	case settings.ActionBan:
		return i18n.Get("ban", lang)
	}
	return i18n.Get("delete", lang)
}
