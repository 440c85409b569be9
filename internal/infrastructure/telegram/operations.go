package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/iamwavecut/ngguard/internal/dispatch"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/policy/permissions"
)

// BotAPI is the part of the Bot API client the gateway relies on.
type BotAPI interface {
	Request(c api.Chattable) (*api.APIResponse, error)
	Send(c api.Chattable) (api.Message, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
	GetFileDirectURL(fileID string) (string, error)
	MakeRequest(endpoint string, params api.Params) (*api.APIResponse, error)
}

// Operations provides common Telegram bot operations
type Operations struct {
	bot  BotAPI
	http *http.Client
}

// NewOperations creates a new Operations instance
func NewOperations(bot BotAPI) *Operations {
	return &Operations{
		bot:  bot,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// DeleteMessage deletes a message from a chat
func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return wrap(err, "failed to delete message")
	}
	return nil
}

// Ban bans a user. A zero until bans permanently.
func (o *Operations) Ban(ctx context.Context, chatID, userID int64, until time.Time, revokeHistory bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	config := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		UntilDate:      unixOrZero(until),
		RevokeMessages: revokeHistory,
	}
	if _, err := o.bot.Request(config); err != nil {
		return wrap(err, "failed to ban user")
	}
	return nil
}

// Restrict applies the given permissions until the deadline. A zero until restricts permanently.
func (o *Operations) Restrict(ctx context.Context, chatID, userID int64, perms moderation.Permissions, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		UntilDate:   unixOrZero(until),
		Permissions: chatPermissions(perms),
	}
	if _, err := o.bot.Request(config); err != nil {
		return wrap(err, "failed to restrict user")
	}
	return nil
}

// LiftRestrictions gives the member the default send rights back
func (o *Operations) LiftRestrictions(ctx context.Context, chatID, userID int64) error {
	return o.Restrict(ctx, chatID, userID, moderation.Permissions{
		CanSendMessages:      true,
		CanSendMedia:         true,
		CanSendPolls:         true,
		CanSendOtherMessages: true,
		CanAddWebPreviews:    true,
		CanInviteUsers:       true,
	}, time.Time{})
}

func (o *Operations) Send(ctx context.Context, out dispatch.Outgoing) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := api.NewMessage(out.ChatID, out.Text)
	msg.ParseMode = api.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true
	msg.MessageThreadID = out.ThreadID
	if out.ReplyTo != 0 {
		msg.ReplyParameters.MessageID = out.ReplyTo
		msg.ReplyParameters.ChatID = out.ChatID
		msg.ReplyParameters.AllowSendingWithoutReply = true
	}
	if len(out.Keyboard) > 0 {
		rows := make([][]api.InlineKeyboardButton, 0, len(out.Keyboard))
		for _, row := range out.Keyboard {
			buttons := make([]api.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, api.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
			rows = append(rows, api.NewInlineKeyboardRow(buttons...))
		}
		msg.ReplyMarkup = api.NewInlineKeyboardMarkup(rows...)
	}
	sent, err := o.bot.Send(msg)
	if err != nil {
		return 0, wrap(err, "failed to send message")
	}
	return sent.MessageID, nil
}

// SendDocument uploads an in-memory file
func (o *Operations) SendDocument(ctx context.Context, chatID int64, threadID int, name string, data []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := api.NewDocument(chatID, api.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	doc.MessageThreadID = threadID
	if _, err := o.bot.Send(doc); err != nil {
		return wrap(err, "failed to send document")
	}
	return nil
}

// CloseTopic closes a forum topic
func (o *Operations) CloseTopic(ctx context.Context, chatID int64, threadID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := api.Params{
		"chat_id":           strconv.FormatInt(chatID, 10),
		"message_thread_id": strconv.Itoa(threadID),
	}
	if _, err := o.bot.MakeRequest("closeForumTopic", params); err != nil {
		return wrap(err, "failed to close topic")
	}
	return nil
}

// AnswerCallback acknowledges an inline button press
func (o *Operations) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.bot.Request(api.NewCallback(callbackID, text)); err != nil {
		return wrap(err, "failed to answer callback")
	}
	return nil
}

// IsAdmin reports whether the user administers the chat
func (o *Operations) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := o.member(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return permissions.IsAdmin(&member), nil
}

// DisplayName resolves the member's visible name
func (o *Operations) DisplayName(ctx context.Context, chatID, userID int64) (string, error) {
	member, err := o.member(ctx, chatID, userID)
	if err != nil {
		return "", err
	}
	if member.User == nil {
		return "", nil
	}
	name := strings.TrimSpace(member.User.FirstName + " " + member.User.LastName)
	if name == "" && member.User.UserName != "" {
		name = "@" + member.User.UserName
	}
	return name, nil
}

// ApproveJoinRequest approves a chat join request
func (o *Operations) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	config := api.ApproveChatJoinRequestConfig{
		ChatConfig: api.ChatConfig{
			ChatID: chatID,
		},
		UserID: userID,
	}
	if _, err := o.bot.Request(config); err != nil {
		return wrap(err, "failed to approve join request")
	}
	return nil
}

// DeclineJoinRequest declines a chat join request
func (o *Operations) DeclineJoinRequest(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	config := api.DeclineChatJoinRequest{
		ChatConfig: api.ChatConfig{
			ChatID: chatID,
		},
		UserID: userID,
	}
	if _, err := o.bot.Request(config); err != nil {
		return wrap(err, "failed to decline join request")
	}
	return nil
}

// DownloadFile fetches an uploaded file, refusing anything larger than limit bytes.
func (o *Operations) DownloadFile(ctx context.Context, fileID string, limit int64) ([]byte, error) {
	url, err := o.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, wrap(err, "failed to resolve file")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to build download request")
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to download file")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to read file")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ngerrors.ErrPayloadTooLarge, limit)
	}
	return data, nil
}

func (o *Operations) member(ctx context.Context, chatID, userID int64) (api.ChatMember, error) {
	if err := ctx.Err(); err != nil {
		return api.ChatMember{}, err
	}
	member, err := o.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
	})
	if err != nil {
		return api.ChatMember{}, wrap(err, "failed to get chat member")
	}
	return member, nil
}

func chatPermissions(p moderation.Permissions) *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       p.CanSendMessages,
		CanSendAudios:         p.CanSendMedia,
		CanSendDocuments:      p.CanSendMedia,
		CanSendPhotos:         p.CanSendMedia,
		CanSendVideos:         p.CanSendMedia,
		CanSendVideoNotes:     p.CanSendMedia,
		CanSendVoiceNotes:     p.CanSendMedia,
		CanSendPolls:          p.CanSendPolls,
		CanSendOtherMessages:  p.CanSendOtherMessages,
		CanAddWebPagePreviews: p.CanAddWebPreviews,
		CanInviteUsers:        p.CanInviteUsers,
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func wrap(err error, message string) error {
	if strings.Contains(err.Error(), "not enough rights") {
		return fmt.Errorf("%s: %w: %v", message, ngerrors.ErrNoPrivileges, err)
	}
	return errors.WithMessage(err, message)
}
