package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/settings"
)

type stubGateway struct {
	mu    sync.Mutex
	calls []string
	sent  []Outgoing
	fail  map[string]error
	at    map[string]time.Time
}

func newStubGateway() *stubGateway {
	return &stubGateway{fail: map[string]error{}, at: map[string]time.Time{}}
}

func (g *stubGateway) call(name string, until time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
	g.at[name] = until
	return g.fail[name]
}

func (g *stubGateway) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	return g.call(fmt.Sprintf("delete:%d", messageID), time.Time{})
}

func (g *stubGateway) Restrict(_ context.Context, _, userID int64, perms moderation.Permissions, until time.Time) error {
	name := fmt.Sprintf("restrict:%d", userID)
	if perms == moderation.NoPermissions {
		name = fmt.Sprintf("silence:%d", userID)
	}
	return g.call(name, until)
}

func (g *stubGateway) Ban(_ context.Context, _, userID int64, until time.Time, _ bool) error {
	return g.call(fmt.Sprintf("ban:%d", userID), until)
}

func (g *stubGateway) LiftRestrictions(_ context.Context, _, userID int64) error {
	return g.call(fmt.Sprintf("lift:%d", userID), time.Time{})
}

func (g *stubGateway) Send(_ context.Context, msg Outgoing) (int, error) {
	g.mu.Lock()
	g.sent = append(g.sent, msg)
	g.mu.Unlock()
	return 1, g.call(fmt.Sprintf("send:%d", msg.ChatID), time.Time{})
}

func (g *stubGateway) CloseTopic(_ context.Context, _ int64, threadID int) error {
	return g.call(fmt.Sprintf("close:%d", threadID), time.Time{})
}

type stubSettings struct {
	s   *settings.ChatSettings
	err error
}

func (p stubSettings) GetSettings(context.Context, int64) (*settings.ChatSettings, error) {
	return p.s, p.err
}

const chatID = int64(-100)

func testSettings(mutate func(*settings.ChatSettings)) *settings.ChatSettings {
	s := settings.Default()
	s.Reports.Enabled = false
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestExecuteRunsActionsInOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gw := newStubGateway()
	d := New(gw, stubSettings{s: testSettings(nil)}, WithClock(func() time.Time { return now }))

	res := moderation.NewResult()
	res.Add("antiflood",
		moderation.DeleteMessage{MessageID: 7},
		moderation.Warn{UserID: 42, Reason: "Flood <detected>"},
		moderation.Mute{UserID: 42, UntilSeconds: 900},
	)
	res.Add("captcha_failure", moderation.Ban{UserID: 43})
	res.Add("captcha_success", moderation.LiftRestrictions{UserID: 44})
	res.Add("topic", moderation.CloseTopic{ThreadID: 5})

	if err := d.Execute(context.Background(), chatID, res); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{"delete:7", "send:-100", "silence:42", "ban:43", "lift:44", "close:5"}
	if !reflect.DeepEqual(gw.calls, want) {
		t.Fatalf("calls %v, want %v", gw.calls, want)
	}
	if got := gw.at["silence:42"]; !got.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("mute until %v", got)
	}
	if got := gw.at["ban:43"]; !got.IsZero() {
		t.Fatalf("permanent ban must have zero until, got %v", got)
	}
	warn := gw.sent[0].Text
	if !strings.Contains(warn, `tg://user?id=42`) || !strings.Contains(warn, "Flood &lt;detected&gt;") {
		t.Fatalf("unexpected warning text %q", warn)
	}
}

func TestExecuteContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	gw := newStubGateway()
	gw.fail["delete:1"] = errors.New("message to delete not found")
	d := New(gw, stubSettings{s: testSettings(nil)})

	res := moderation.NewResult()
	res.Add("stop_words:soft", moderation.DeleteMessage{MessageID: 1}, moderation.Ban{UserID: 2})

	err := d.Execute(context.Background(), chatID, res)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected a failure summary, got %v", err)
	}
	if !reflect.DeepEqual(gw.calls, []string{"delete:1", "ban:2"}) {
		t.Fatalf("remaining actions must still run, got %v", gw.calls)
	}
}

func TestSilentMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enabled bool
		events  []string
		build   func(*moderation.Result)
		want    []string
	}{
		{
			name:    "disabled",
			enabled: false,
			events:  []string{"warning", "service"},
			build: func(r *moderation.Result) {
				r.Add("antiflood", moderation.Warn{UserID: 1})
				r.Add("welcome", moderation.SendMessage{Text: "hi"})
			},
			want: []string{"send:-100", "send:-100"},
		},
		{
			name:    "warning category",
			enabled: true,
			events:  []string{"warning"},
			build: func(r *moderation.Result) {
				r.Add("antiflood", moderation.DeleteMessage{MessageID: 3}, moderation.Warn{UserID: 1}, moderation.Mute{UserID: 1, UntilSeconds: 60})
			},
			want: []string{"delete:3", "silence:1"},
		},
		{
			name:    "rule prefix",
			enabled: true,
			events:  []string{"stop_words"},
			build: func(r *moderation.Result) {
				r.Add("stop_words:strict", moderation.Ban{UserID: 1}, moderation.SendMessage{Text: "banned"})
				r.Add("welcome", moderation.SendMessage{Text: "hi"})
			},
			want: []string{"ban:1", "send:-100"},
		},
		{
			name:    "interactive prompt survives",
			enabled: true,
			events:  []string{"captcha", "service"},
			build: func(r *moderation.Result) {
				r.Add("captcha",
					moderation.Restrict{UserID: 1},
					moderation.SendMessage{Text: "press", Keyboard: [][]moderation.Button{{{Label: "ok", Data: "cap|x|human"}}}},
				)
				r.Add("captcha_success", moderation.SendMessage{Text: "passed"})
			},
			want: []string{"silence:1", "send:-100"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gw := newStubGateway()
			cfg := testSettings(func(s *settings.ChatSettings) {
				s.SilentMode = settings.SilentModeConfig{Enabled: tt.enabled, SuppressEvents: tt.events}
			})
			d := New(gw, stubSettings{s: cfg})

			res := moderation.NewResult()
			tt.build(res)
			if err := d.Execute(context.Background(), chatID, res); err != nil {
				t.Fatalf("execute: %v", err)
			}
			if !reflect.DeepEqual(gw.calls, tt.want) {
				t.Fatalf("calls %v, want %v", gw.calls, tt.want)
			}
		})
	}
}

func TestReportSummary(t *testing.T) {
	t.Parallel()

	gw := newStubGateway()
	cfg := testSettings(func(s *settings.ChatSettings) {
		s.Reports = settings.ReportsConfig{Enabled: true, DestinationChatID: -200}
	})
	d := New(gw, stubSettings{s: cfg})

	res := moderation.NewResult()
	res.Add("antiflood", moderation.DeleteMessage{MessageID: 1})
	res.Add("stop_words:soft", moderation.DeleteMessage{MessageID: 1})

	if err := d.Execute(context.Background(), chatID, res); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(gw.sent) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(gw.sent))
	}
	report := gw.sent[0]
	if report.ChatID != -200 || report.Text != "Сработали правила: antiflood; stop_words:soft" {
		t.Fatalf("unexpected report %#v", report)
	}
}

func TestReportSkippedWithoutDestination(t *testing.T) {
	t.Parallel()

	gw := newStubGateway()
	cfg := testSettings(func(s *settings.ChatSettings) {
		s.Reports = settings.ReportsConfig{Enabled: true}
	})
	d := New(gw, stubSettings{s: cfg})

	res := moderation.NewResult()
	res.Add("antiflood", moderation.DeleteMessage{MessageID: 1})
	if err := d.Execute(context.Background(), chatID, res); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(gw.sent) != 0 {
		t.Fatalf("report must need a destination chat")
	}
}

func TestDirectMessageLeavesThread(t *testing.T) {
	t.Parallel()

	gw := newStubGateway()
	d := New(gw, stubSettings{err: errors.New("chat not registered")})

	res := moderation.NewResult()
	res.Add("questionnaire", moderation.SendMessage{ChatID: 4242, Text: "questions", ReplyTo: 9})
	res.Add("welcome", moderation.SendMessage{Text: "hi", ReplyTo: 9})

	if err := d.ExecuteIn(context.Background(), Target{ChatID: chatID, ThreadID: 3}, res); err != nil {
		t.Fatalf("execute: %v", err)
	}
	dm, inChat := gw.sent[0], gw.sent[1]
	if dm.ChatID != 4242 || dm.ThreadID != 0 || dm.ReplyTo != 0 {
		t.Fatalf("unexpected direct message %#v", dm)
	}
	if inChat.ChatID != chatID || inChat.ThreadID != 3 || inChat.ReplyTo != 9 {
		t.Fatalf("unexpected chat message %#v", inChat)
	}
}
