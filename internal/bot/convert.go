package bot

import (
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/admin"
	"github.com/iamwavecut/ngguard/internal/engine"
)

func toChat(chat *api.Chat) engine.Chat {
	if chat == nil {
		return engine.Chat{}
	}
	return engine.Chat{
		ID:       chat.ID,
		Type:     chat.Type,
		Title:    chat.Title,
		Username: chat.UserName,
	}
}

func toUser(user *api.User) *engine.User {
	if user == nil {
		return nil
	}
	return &engine.User{
		ID:        user.ID,
		IsBot:     user.IsBot,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.UserName,
	}
}

// threadOf returns the forum topic of the message, or zero outside forum topics.
func threadOf(msg *api.Message) int {
	if msg == nil || !msg.IsTopicMessage {
		return 0
	}
	return msg.MessageThreadID
}

func toMessage(msg *api.Message) *engine.Message {
	ev := &engine.Message{
		Chat:      toChat(&msg.Chat),
		From:      toUser(msg.From),
		MessageID: msg.MessageID,
		ThreadID:  threadOf(msg),
		Date:      time.Unix(int64(msg.Date), 0),
		Text:      msg.Text,
		Caption:   msg.Caption,
	}
	if origin := msg.ForwardOrigin; origin != nil {
		switch {
		case origin.SenderUser != nil:
			ev.ForwardFrom = toUser(origin.SenderUser)
		case origin.Chat != nil:
			chat := toChat(origin.Chat)
			ev.ForwardFromChat = &chat
		case origin.SenderChat != nil:
			chat := toChat(origin.SenderChat)
			ev.ForwardFromChat = &chat
		}
	}
	if reply := msg.ReplyToMessage; reply != nil && !isTopicRoot(msg) {
		ev.ReplyTo = toUser(reply.From)
	}
	for i := range msg.NewChatMembers {
		ev.NewMembers = append(ev.NewMembers, *toUser(&msg.NewChatMembers[i]))
	}
	ev.LeftMember = toUser(msg.LeftChatMember)
	return ev
}

// isTopicRoot reports whether the reply only points at the topic's creation message.
func isTopicRoot(msg *api.Message) bool {
	return msg.IsTopicMessage && msg.ReplyToMessage != nil && msg.ReplyToMessage.MessageID == msg.MessageThreadID
}

func toCommand(msg *api.Message) *admin.Command {
	cmd := &admin.Command{
		Chat:      toChat(&msg.Chat),
		MessageID: msg.MessageID,
		ThreadID:  threadOf(msg),
		Name:      strings.ToLower(msg.Command()),
		Args:      strings.TrimSpace(msg.CommandArguments()),
	}
	if from := toUser(msg.From); from != nil {
		cmd.From = *from
	}
	if reply := msg.ReplyToMessage; reply != nil && !isTopicRoot(msg) {
		r := &admin.Reply{
			From: toUser(reply.From),
			Text: reply.Text,
		}
		if reply.Document != nil {
			r.FileID = reply.Document.FileID
			r.FileSize = int64(reply.Document.FileSize)
		}
		if origin := reply.ForwardOrigin; origin != nil {
			switch {
			case origin.Chat != nil:
				r.ForwardChat = origin.Chat.ID
			case origin.SenderChat != nil:
				r.ForwardChat = origin.SenderChat.ID
			}
		}
		cmd.Reply = r
	}
	return cmd
}

func toMemberUpdate(upd *api.ChatMemberUpdated) *engine.MemberUpdate {
	ev := &engine.MemberUpdate{
		Chat:      toChat(&upd.Chat),
		OldStatus: upd.OldChatMember.Status,
		NewStatus: upd.NewChatMember.Status,
	}
	if user := toUser(upd.NewChatMember.User); user != nil {
		ev.User = *user
	}
	return ev
}

func toJoinRequest(req *api.ChatJoinRequest) *engine.JoinRequest {
	return &engine.JoinRequest{
		Chat:       toChat(&req.Chat),
		User:       *toUser(&req.From),
		UserChatID: req.UserChatID,
		Date:       time.Unix(int64(req.Date), 0),
	}
}

func toCallback(cq *api.CallbackQuery) *engine.CallbackQuery {
	ev := &engine.CallbackQuery{
		ID:   cq.ID,
		Data: cq.Data,
	}
	if user := toUser(cq.From); user != nil {
		ev.From = *user
	}
	if cq.Message != nil {
		ev.Chat = toChat(&cq.Message.Chat)
		ev.MessageID = cq.Message.MessageID
	}
	return ev
}

// updateTime is the moment the update was produced, or now for updates without a date.
func updateTime(u *api.Update) time.Time {
	var date int
	switch {
	case u.Message != nil:
		date = u.Message.Date
	case u.EditedMessage != nil:
		date = u.EditedMessage.Date
	case u.ChannelPost != nil:
		date = u.ChannelPost.Date
	case u.ChatMember != nil:
		date = u.ChatMember.Date
	case u.MyChatMember != nil:
		date = u.MyChatMember.Date
	case u.ChatJoinRequest != nil:
		date = u.ChatJoinRequest.Date
	}
	if date == 0 {
		return time.Now()
	}
	return time.Unix(int64(date), 0)
}
