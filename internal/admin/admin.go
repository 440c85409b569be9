// Package admin implements the administrative chat commands.
package admin

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/dispatch"
	"github.com/iamwavecut/ngguard/internal/engine"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/settings"
)

type (
	Store interface {
		EnsureChat(ctx context.Context, chatID int64, title, username string) (*settings.ChatSettings, error)
		SaveSettings(ctx context.Context, chatID int64, s *settings.ChatSettings) error

		GetUserState(ctx context.Context, chatID, userID int64) (*db.UserState, error)
		AddWarning(ctx context.Context, chatID, userID int64) (int, error)
		ResetWarnings(ctx context.Context, chatID, userID int64) error
		SetTrust(ctx context.Context, chatID, userID int64, trusted bool) error
		SetWhitelist(ctx context.Context, chatID, userID int64, whitelisted bool) error
		ListWhitelisted(ctx context.Context, chatID int64) ([]*db.UserState, error)

		GetJoinRequest(ctx context.Context, chatID, userID int64) (*db.JoinRequest, error)
		SetJoinRequestStatus(ctx context.Context, chatID, userID int64, status db.JoinRequestStatus) error
		ListPendingJoinRequests(ctx context.Context, chatID int64) ([]*db.JoinRequest, error)
	}

	Gateway interface {
		Send(ctx context.Context, msg dispatch.Outgoing) (int, error)
		SendDocument(ctx context.Context, chatID int64, threadID int, name string, data []byte, caption string) error
		DownloadFile(ctx context.Context, fileID string, limit int64) ([]byte, error)
		ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
		DeclineJoinRequest(ctx context.Context, chatID, userID int64) error
	}

	// Moderator is the engine surface used by commands.
	Moderator interface {
		IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
		InvalidateSettingsCache(chatID int64)
	}

	// Command is a slash command addressed to the bot in a group chat.
	Command struct {
		Chat      engine.Chat
		From      engine.User
		MessageID int
		ThreadID  int
		Name      string
		Args      string

		// Reply describes the message the command answers, when there is one.
		Reply *Reply
	}

	Reply struct {
		From        *engine.User
		Text        string
		FileID      string
		FileSize    int64
		ForwardChat int64
	}

	Handler struct {
		store    Store
		gateway  Gateway
		engine   Moderator
		logger   *log.Entry
		commands map[string]commandFunc
	}

	commandFunc func(ctx context.Context, cmd *Command, s *settings.ChatSettings) error
)

func NewHandler(store Store, gateway Gateway, moderator Moderator) *Handler {
	h := &Handler{
		store:   store,
		gateway: gateway,
		engine:  moderator,
		logger:  log.WithField("handler", "admin"),
	}
	h.commands = map[string]commandFunc{
		"addstopword":   h.addStopWord,
		"delstopword":   h.delStopWord,
		"liststopwords": h.listStopWords,
		"setstoplimit":  h.setStopLimit,
		"backup":        h.backup,
		"restore":       h.restore,
		"trust":         h.trust,
		"warn":          h.warn,
		"unwarn":        h.unwarn,
		"addwl":         h.addWhitelist,
		"delwl":         h.delWhitelist,
		"whitelist":     h.listWhitelist,
		"setflood":      h.setFlood,
		"setnight":      h.setNight,
		"togglesilent":  h.toggleSilent,
		"setreportchat": h.setReportChat,
		"requests":      h.listRequests,
		"approve":       h.approve,
		"reject":        h.reject,
	}
	return h
}

// Knows reports whether name is an administrative command.
func (h *Handler) Knows(name string) bool {
	_, ok := h.commands[strings.ToLower(name)]
	return ok
}

// Handle runs the command. Unknown commands are ignored and reported as unhandled.
func (h *Handler) Handle(ctx context.Context, cmd *Command) (bool, error) {
	if cmd == nil {
		return false, nil
	}
	fn, ok := h.commands[strings.ToLower(cmd.Name)]
	if !ok || !cmd.Chat.IsGroup() {
		return false, nil
	}
	entry := h.logger.WithFields(log.Fields{
		"command": cmd.Name,
		"chat_id": cmd.Chat.ID,
		"user_id": cmd.From.ID,
	})

	s, err := h.store.EnsureChat(ctx, cmd.Chat.ID, cmd.Chat.Title, cmd.Chat.Username)
	if err != nil {
		return true, errors.WithMessage(err, "cant load settings")
	}

	admin, err := h.engine.IsAdmin(ctx, cmd.Chat.ID, cmd.From.ID)
	if err != nil {
		entry.WithField("error", err.Error()).Warn("cant check admin")
	}
	if !admin {
		h.reply(ctx, cmd, i18n.Get("This command is available to administrators only.", s.Language))
		return true, nil
	}

	if err := fn(ctx, cmd, s); err != nil {
		entry.WithField("error", err.Error()).Error("command failed")
		return true, err
	}
	entry.Debug("command handled")
	return true, nil
}

// save persists settings and drops the cached copy so the change applies to the next event.
func (h *Handler) save(ctx context.Context, cmd *Command, s *settings.ChatSettings) error {
	if err := s.Validate(); err != nil {
		h.reply(ctx, cmd, i18n.Get("Invalid parameters", s.Language))
		return nil
	}
	if err := h.store.SaveSettings(ctx, cmd.Chat.ID, s); err != nil {
		return errors.WithMessage(err, "cant save settings")
	}
	h.engine.InvalidateSettingsCache(cmd.Chat.ID)
	return nil
}

func (h *Handler) reply(ctx context.Context, cmd *Command, text string) {
	_, err := h.gateway.Send(ctx, dispatch.Outgoing{
		ChatID:   cmd.Chat.ID,
		ThreadID: cmd.ThreadID,
		Text:     text,
		ReplyTo:  cmd.MessageID,
	})
	if err != nil {
		h.logger.WithField("error", err.Error()).Warn("cant reply")
	}
}

// target resolves the user a command refers to: the replied-to author, or a numeric ID argument.
func target(cmd *Command) (int64, string, bool) {
	if cmd.Reply != nil && cmd.Reply.From != nil {
		return cmd.Reply.From.ID, cmd.Reply.From.FullName(), true
	}
	arg := strings.TrimSpace(cmd.Args)
	if arg == "" {
		return 0, "", false
	}
	arg = strings.Fields(arg)[0]
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, arg, true
}
