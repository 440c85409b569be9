package db

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/iamwavecut/ngguard/internal/settings"
)

type (
	Chat struct {
		ID        int64          `db:"id"`
		Title     string         `db:"title"`
		Username  string         `db:"username"`
		Settings  SettingsColumn `db:"settings"`
		CreatedAt time.Time      `db:"-"`
		UpdatedAt time.Time      `db:"-"`
	}

	// SettingsColumn stores chat settings as a JSON document.
	SettingsColumn struct {
		*settings.ChatSettings
	}

	UserState struct {
		ChatID        int64 `db:"chat_id"`
		UserID        int64 `db:"user_id"`
		Warnings      int   `db:"warnings"`
		Reputation    int   `db:"reputation"`
		IsTrusted     bool  `db:"is_trusted"`
		IsWhitelisted bool  `db:"is_whitelisted"`
	}

	PendingCaptcha struct {
		ChatID    int64
		UserID    int64
		Token     string
		Attempts  int
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	JoinRequest struct {
		ChatID     int64
		UserID     int64
		UserChatID int64
		Status     JoinRequestStatus
		Questions  []string
		Answers    []string
		CreatedAt  time.Time
		ExpiresAt  *time.Time
	}

	JoinRequestStatus string

	// StringList stores a string slice as a JSON array.
	StringList []string
)

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

func (s JoinRequestStatus) Terminal() bool {
	return s == JoinRequestApproved || s == JoinRequestRejected
}

// CanTransition allows pending to move to a terminal state; terminal states never change.
func (s JoinRequestStatus) CanTransition(to JoinRequestStatus) bool {
	switch to {
	case JoinRequestApproved, JoinRequestRejected:
		return s == JoinRequestPending || s == to
	case JoinRequestPending:
		return s == JoinRequestPending
	}
	return false
}

func (c SettingsColumn) Value() (driver.Value, error) {
	if c.ChatSettings == nil {
		return nil, nil
	}
	data, err := json.Marshal(c.ChatSettings)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (c *SettingsColumn) Scan(v interface{}) error {
	var data []byte
	switch value := v.(type) {
	case nil:
		c.ChatSettings = nil
		return nil
	case string:
		data = []byte(value)
	case []byte:
		data = value
	default:
		return fmt.Errorf("cannot scan type %T into SettingsColumn", v)
	}
	s := settings.Default()
	if err := json.Unmarshal(data, s); err != nil {
		return err
	}
	s.Normalize()
	c.ChatSettings = s
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(v interface{}) error {
	switch value := v.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		return json.Unmarshal([]byte(value), (*[]string)(l))
	case []byte:
		return json.Unmarshal(value, (*[]string)(l))
	default:
		return fmt.Errorf("cannot scan type %T into StringList", v)
	}
}
