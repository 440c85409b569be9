package engine

import (
	"strings"
	"time"
)

const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"

	MemberStatusMember     = "member"
	MemberStatusRestricted = "restricted"
	MemberStatusLeft       = "left"
	MemberStatusKicked     = "kicked"
)

type (
	Chat struct {
		ID       int64
		Type     string
		Title    string
		Username string
	}

	User struct {
		ID        int64
		IsBot     bool
		FirstName string
		LastName  string
		Username  string
	}

	// Message is an inbound chat message. Service messages carry NewMembers or LeftMember.
	Message struct {
		Chat            Chat
		From            *User
		MessageID       int
		ThreadID        int
		Date            time.Time
		Text            string
		Caption         string
		ForwardFrom     *User
		ForwardFromChat *Chat
		ReplyTo         *User
		NewMembers      []User
		LeftMember      *User
	}

	MemberUpdate struct {
		Chat      Chat
		User      User
		OldStatus string
		NewStatus string
	}

	JoinRequest struct {
		Chat       Chat
		User       User
		UserChatID int64
		Date       time.Time
	}

	CallbackQuery struct {
		ID        string
		Chat      Chat
		From      User
		MessageID int
		Data      string
	}
)

func (c Chat) IsGroup() bool {
	return c.Type == ChatTypeGroup || c.Type == ChatTypeSupergroup
}

func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	return name
}

// Content is the text a content rule inspects: the message text or, for media, its caption.
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func (m *Message) IsService() bool {
	return len(m.NewMembers) > 0 || m.LeftMember != nil
}

// Joined reports whether the update moves the user into the chat.
func (u *MemberUpdate) Joined() bool {
	wasOutside := u.OldStatus == "" || u.OldStatus == MemberStatusLeft || u.OldStatus == MemberStatusKicked
	isInside := u.NewStatus == MemberStatusMember || u.NewStatus == MemberStatusRestricted
	return wasOutside && isInside
}
