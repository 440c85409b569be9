package engine

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

// HandleJoinRequest records the request and, when a questionnaire is configured,
// sends the questions to the requester. Approval is left to administrators.
func (e *Engine) HandleJoinRequest(ctx context.Context, req *JoinRequest) (*moderation.Result, error) {
	res := moderation.NewResult()
	if req == nil {
		return res, nil
	}

	ctx, finish := e.startSpan(ctx, "join_request", req.Chat.ID)
	defer func() { finish(res) }()

	s, err := e.settingsFor(ctx, req.Chat)
	if err != nil {
		return res, err
	}

	cfg := s.Questionnaire
	asking := cfg.Enabled && len(cfg.Questions) > 0

	now := e.now()
	record := &db.JoinRequest{
		ChatID:     req.Chat.ID,
		UserID:     req.User.ID,
		UserChatID: req.UserChatID,
		Questions:  []string{},
		CreatedAt:  now,
	}
	if asking {
		record.Questions = append(record.Questions, cfg.Questions...)
		if cfg.AutoRejectSeconds > 0 {
			expiresAt := now.Add(time.Duration(cfg.AutoRejectSeconds) * time.Second)
			record.ExpiresAt = &expiresAt
		}
	}
	if err := e.store.UpsertJoinRequest(ctx, record); err != nil {
		return res, err
	}
	if !asking {
		return res, nil
	}

	lines := make([]string, 0, len(cfg.Questions))
	for i, q := range cfg.Questions {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, html.EscapeString(q)))
	}
	target := req.UserChatID
	if target == 0 {
		target = req.User.ID
	}
	res.Add(RuleQuestionnaire, moderation.SendMessage{
		ChatID: target,
		Text: fmt.Sprintf(
			i18n.Get("Hello, %s! Answer the questions to get access:\n%s", s.Language),
			html.EscapeString(req.User.FullName()),
			strings.Join(lines, "\n"),
		),
	})
	return res, nil
}
