// Package moderation defines the closed set of moderation actions and the
// result that collects them during one pipeline run.
package moderation

type Kind string

const (
	KindDelete   Kind = "delete"
	KindMute     Kind = "mute"
	KindBan      Kind = "ban"
	KindRestrict Kind = "restrict"
	KindLift     Kind = "lift"
	KindWarn     Kind = "warn"
	KindSend     Kind = "send_message"
	KindLog      Kind = "log"
	KindClose    Kind = "close_topic"
)

// Action is implemented only by the variants below.
type Action interface {
	Kind() Kind
	// Rule is the name of the rule that produced the action.
	Rule() string
	withRule(rule string) Action
}

type (
	DeleteMessage struct {
		MessageID int
		rule      string
	}

	Mute struct {
		UserID       int64
		UntilSeconds int
		rule         string
	}

	// Ban with zero UntilSeconds is permanent.
	Ban struct {
		UserID        int64
		UntilSeconds  int
		RevokeHistory bool
		rule          string
	}

	Restrict struct {
		UserID       int64
		UntilSeconds int
		Permissions  Permissions
		rule         string
	}

	LiftRestrictions struct {
		UserID int64
		rule   string
	}

	Warn struct {
		UserID int64
		Reason string
		rule   string
	}

	// SendMessage goes to the event chat unless ChatID is set.
	SendMessage struct {
		ChatID   int64
		Text     string
		ReplyTo  int
		Keyboard [][]Button
		rule     string
	}

	Log struct {
		Level   string
		Message string
		Fields  map[string]any
		rule    string
	}

	CloseTopic struct {
		ThreadID int
		rule     string
	}

	Button struct {
		Label string
		Data  string
	}

	Permissions struct {
		CanSendMessages      bool
		CanSendMedia         bool
		CanSendPolls         bool
		CanSendOtherMessages bool
		CanAddWebPreviews    bool
		CanInviteUsers       bool
	}
)

// NoPermissions revokes every send right.
var NoPermissions = Permissions{}

func (a DeleteMessage) Kind() Kind    { return KindDelete }
func (a Mute) Kind() Kind             { return KindMute }
func (a Ban) Kind() Kind              { return KindBan }
func (a Restrict) Kind() Kind         { return KindRestrict }
func (a LiftRestrictions) Kind() Kind { return KindLift }
func (a Warn) Kind() Kind             { return KindWarn }
func (a SendMessage) Kind() Kind      { return KindSend }
func (a Log) Kind() Kind              { return KindLog }
func (a CloseTopic) Kind() Kind       { return KindClose }

func (a DeleteMessage) Rule() string    { return a.rule }
func (a Mute) Rule() string             { return a.rule }
func (a Ban) Rule() string              { return a.rule }
func (a Restrict) Rule() string         { return a.rule }
func (a LiftRestrictions) Rule() string { return a.rule }
func (a Warn) Rule() string             { return a.rule }
func (a SendMessage) Rule() string      { return a.rule }
func (a Log) Rule() string              { return a.rule }
func (a CloseTopic) Rule() string       { return a.rule }

func (a DeleteMessage) withRule(r string) Action    { a.rule = r; return a }
func (a Mute) withRule(r string) Action             { a.rule = r; return a }
func (a Ban) withRule(r string) Action              { a.rule = r; return a }
func (a Restrict) withRule(r string) Action         { a.rule = r; return a }
func (a LiftRestrictions) withRule(r string) Action { a.rule = r; return a }
func (a Warn) withRule(r string) Action             { a.rule = r; return a }
func (a SendMessage) withRule(r string) Action      { a.rule = r; return a }
func (a Log) withRule(r string) Action              { a.rule = r; return a }
func (a CloseTopic) withRule(r string) Action       { a.rule = r; return a }

// Interactive reports whether the message carries inline choices the recipient must answer.
func (a SendMessage) Interactive() bool {
	return len(a.Keyboard) > 0
}
