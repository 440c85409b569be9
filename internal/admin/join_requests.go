package admin

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/dispatch"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/settings"
)

const requestsListLimit = 10

func (h *Handler) listRequests(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	requests, err := h.store.ListPendingJoinRequests(ctx, cmd.Chat.ID)
	if err != nil {
		return errors.WithMessage(err, "cant list join requests")
	}
	if len(requests) == 0 {
		h.reply(ctx, cmd, i18n.Get("No pending requests.", lang))
		return nil
	}

	now := time.Now()
	lines := make([]string, 0, len(requests)*2)
	for i, req := range requests {
		if i == requestsListLimit {
			lines = append(lines, fmt.Sprintf(i18n.Get("… and %d more requests", lang), len(requests)-requestsListLimit))
			break
		}
		lines = append(lines, fmt.Sprintf("• <code>%d</code> · %s", req.UserID, humanizeAge(now.Sub(req.CreatedAt))))
		if len(req.Answers) == 0 {
			lines = append(lines, "    "+i18n.Get("Answers: not received yet.", lang))
			continue
		}
		for j, answer := range req.Answers {
			question := ""
			if j < len(req.Questions) {
				question = req.Questions[j]
			}
			lines = append(lines, fmt.Sprintf("    %s: %s", html.EscapeString(question), html.EscapeString(answer)))
		}
	}
	h.reply(ctx, cmd, strings.Join(lines, "\n"))
	return nil
}

func (h *Handler) approve(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	userID, ok := parseUserID(cmd.Args)
	if !ok {
		h.reply(ctx, cmd, i18n.Get("Specify the user ID: /approve <user_id>.", lang))
		return nil
	}
	req, err := h.pendingRequest(ctx, cmd, userID, lang)
	if err != nil || req == nil {
		return err
	}
	if err := h.gateway.ApproveJoinRequest(ctx, cmd.Chat.ID, userID); err != nil {
		h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Could not approve the request: %s", lang), html.EscapeString(err.Error())))
		return nil
	}
	if err := h.store.SetJoinRequestStatus(ctx, cmd.Chat.ID, userID, db.JoinRequestApproved); err != nil {
		return errors.WithMessage(err, "cant mark join request approved")
	}
	h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Request of user <code>%d</code> approved.", lang), userID))
	h.notify(ctx, req, fmt.Sprintf(i18n.Get("Your request to join %s has been approved.", lang), html.EscapeString(cmd.Chat.Title)))
	return nil
}

func (h *Handler) reject(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	lang := s.Language
	parts := strings.SplitN(strings.TrimSpace(cmd.Args), " ", 2)
	userID, ok := parseUserID(parts[0])
	if !ok {
		h.reply(ctx, cmd, i18n.Get("Specify the user ID: /reject <user_id> [reason].", lang))
		return nil
	}
	reason := ""
	if len(parts) > 1 {
		reason = strings.TrimSpace(parts[1])
	}
	req, err := h.pendingRequest(ctx, cmd, userID, lang)
	if err != nil || req == nil {
		return err
	}
	if err := h.gateway.DeclineJoinRequest(ctx, cmd.Chat.ID, userID); err != nil {
		h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Could not decline the request: %s", lang), html.EscapeString(err.Error())))
		return nil
	}
	if err := h.store.SetJoinRequestStatus(ctx, cmd.Chat.ID, userID, db.JoinRequestRejected); err != nil {
		return errors.WithMessage(err, "cant mark join request rejected")
	}
	h.reply(ctx, cmd, fmt.Sprintf(i18n.Get("Request of user <code>%d</code> declined.", lang), userID))
	if reason != "" {
		h.notify(ctx, req, fmt.Sprintf(
			i18n.Get("Your request to join %s was declined: %s", lang),
			html.EscapeString(cmd.Chat.Title), html.EscapeString(reason),
		))
	}
	return nil
}

func (h *Handler) pendingRequest(ctx context.Context, cmd *Command, userID int64, lang string) (*db.JoinRequest, error) {
	req, err := h.store.GetJoinRequest(ctx, cmd.Chat.ID, userID)
	if err != nil {
		return nil, errors.WithMessage(err, "cant get join request")
	}
	if req == nil || req.Status != db.JoinRequestPending {
		h.reply(ctx, cmd, i18n.Get("No active request found.", lang))
		return nil, nil
	}
	return req, nil
}

// notify messages the requester privately; users who never started the bot cannot be reached.
func (h *Handler) notify(ctx context.Context, req *db.JoinRequest, text string) {
	target := req.UserChatID
	if target == 0 {
		target = req.UserID
	}
	if _, err := h.gateway.Send(ctx, dispatch.Outgoing{ChatID: target, Text: text}); err != nil {
		h.logger.WithField("user_id", req.UserID).WithField("error", err.Error()).Debug("cant notify requester")
	}
}

func parseUserID(raw string) (int64, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func humanizeAge(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, seconds/60%60)
	}
	return fmt.Sprintf("%dd %dh", seconds/86400, seconds/3600%24)
}
