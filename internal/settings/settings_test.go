package settings

import (
	"errors"
	"strings"
	"testing"
	"time"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

func assertStopWordLayout(t *testing.T, s *ChatSettings) {
	t.Helper()
	lists := s.StopWords.Lists
	if len(lists) < 2 {
		t.Fatalf("expected at least two stop-word lists, got %d", len(lists))
	}
	if lists[0].Action != ActionDelete {
		t.Fatalf("expected first list to delete, got %q", lists[0].Action)
	}
	for _, l := range lists[1:] {
		if l.Action == ActionBan {
			return
		}
	}
	t.Fatalf("expected a later list with ban action, got %#v", lists)
}

func TestDefaultSettingsAreValid(t *testing.T) {
	t.Parallel()

	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings must validate: %v", err)
	}
	assertStopWordLayout(t, s)
}

func TestDecodeRestoresMissingStrictList(t *testing.T) {
	t.Parallel()

	payload := `{"stop_words": {"enabled": true, "warn_threshold": 3, "lists": [{"name": "soft", "words": ["spam"], "action": "delete"}]}}`
	s, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertStopWordLayout(t, s)
	if s.StopWords.Lists[1].Name != "strict" {
		t.Fatalf("expected appended strict list, got %q", s.StopWords.Lists[1].Name)
	}
	if s.StopWords.WarnThreshold != 3 {
		t.Fatalf("expected warn threshold from payload, got %d", s.StopWords.WarnThreshold)
	}
	if s.Flood.MessageLimit != 6 {
		t.Fatalf("expected untouched fields to keep defaults, got flood limit %d", s.Flood.MessageLimit)
	}
}

func TestDecodeAcceptsWrappedBackup(t *testing.T) {
	t.Parallel()

	payload := `{"chat_id": -100, "settings": {"language": "en", "flood": {"message_limit": 3}}}`
	s, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Language != "en" || s.Flood.MessageLimit != 3 {
		t.Fatalf("unexpected decoded settings: language=%q limit=%d", s.Language, s.Flood.MessageLimit)
	}
}

func TestDecodeRejectsInvalidPayloads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{name: "not-json", payload: `{"language": `, want: ngerrors.ErrInvalidSettings},
		{name: "array", payload: `[1,2]`, want: ngerrors.ErrInvalidSettings},
		{name: "bad-punishment", payload: `{"flood": {"punishment": "kick"}}`, want: ngerrors.ErrInvalidSettings},
		{name: "bad-night-start", payload: `{"night_mode": {"start": "25:99"}}`, want: ngerrors.ErrInvalidSettings},
		{name: "bad-language", payload: `{"language": "de"}`, want: ngerrors.ErrInvalidSettings},
		{name: "too-large", payload: `{"welcome": {"text": "` + strings.Repeat("x", MaxBackupBytes) + `"}}`, want: ngerrors.ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := Decode([]byte(tt.payload))
			if err == nil {
				t.Fatalf("expected error, got settings %#v", s)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeDecodeKeepsStopWords(t *testing.T) {
	t.Parallel()

	s := Default()
	s.StopWords.AddWord(1, "casino")
	data, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.StopWords.Lists[1].Words) != 1 || got.StopWords.Lists[1].Words[0] != "casino" {
		t.Fatalf("unexpected strict list: %#v", got.StopWords.Lists[1])
	}
}

func TestBetweenWrapsAroundMidnight(t *testing.T) {
	t.Parallel()

	start, _ := ParseClock("23:00")
	end, _ := ParseClock("01:00")

	tests := []struct {
		at   string
		want bool
	}{
		{at: "23:30", want: true},
		{at: "00:30", want: true},
		{at: "12:00", want: false},
		{at: "01:00", want: false},
		{at: "23:00", want: true},
	}
	for _, tt := range tests {
		check, err := ParseClock(tt.at)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.at, err)
		}
		if got := Between(check, start, end); got != tt.want {
			t.Fatalf("Between(%s) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestNightModeUsesChatTimezone(t *testing.T) {
	t.Parallel()

	cfg := NightModeConfig{Enabled: true, Start: "00:00", End: "06:00", Action: ActionDelete}
	// 22:30 UTC is 01:30 in Moscow.
	at := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)
	if !cfg.Active(at, "Europe/Moscow") {
		t.Fatalf("expected night mode to be active in Moscow")
	}
	if cfg.Active(at, "UTC") {
		t.Fatalf("expected night mode to be inactive in UTC")
	}
	if cfg.Active(at, "Not/AZone") {
		t.Fatalf("expected unknown zone to fall back to UTC")
	}
}

func TestStopWordEditsKeepWordInSingleList(t *testing.T) {
	t.Parallel()

	cfg := Default().StopWords
	cfg.Lists[0].Words = []string{"spam"}
	cfg.Lists[1].Words = []string{"spam"}

	if got := cfg.RemoveWord(1, "spam", true); got != 1 {
		t.Fatalf("expected removal from strict list, got %d", got)
	}

	index, word, explicit, err := cfg.ParseStopWordArgument("SPAM")
	if err != nil {
		t.Fatalf("parse argument: %v", err)
	}
	if index != 0 || word != "spam" || explicit {
		t.Fatalf("unexpected parse result: %d %q %v", index, word, explicit)
	}
	cfg.AddWord(index, word)
	if len(cfg.Lists[0].Words) != 1 || len(cfg.Lists[1].Words) != 0 {
		t.Fatalf("expected word only in soft list, got %#v", cfg.Lists)
	}

	cfg.AddWord(1, "spam")
	if len(cfg.Lists[0].Words) != 0 || len(cfg.Lists[1].Words) != 1 {
		t.Fatalf("expected word moved to strict list, got %#v", cfg.Lists)
	}

	if got := cfg.RemoveWord(0, "spam", false); got != 1 {
		t.Fatalf("expected implicit removal from strict list, got %d", got)
	}
	if cfg.Enabled {
		t.Fatalf("expected stop words disabled once every list is empty")
	}
}

func TestParseStopWordArgumentValidatesIndex(t *testing.T) {
	t.Parallel()

	cfg := Default().StopWords
	if _, _, _, err := cfg.ParseStopWordArgument("3 word"); !errors.Is(err, ngerrors.ErrInvalidSettings) {
		t.Fatalf("expected invalid list number error, got %v", err)
	}
	if _, _, _, err := cfg.ParseStopWordArgument("2"); err == nil {
		t.Fatalf("expected error for missing word")
	}
	index, word, explicit, err := cfg.ParseStopWordArgument("2 Bad Word")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if index != 1 || word != "bad word" || !explicit {
		t.Fatalf("unexpected parse result: %d %q %v", index, word, explicit)
	}
}

func TestSilencedMatchesByPrefix(t *testing.T) {
	t.Parallel()

	cfg := SilentModeConfig{Enabled: true, SuppressEvents: []string{"stop_words", "warning"}}
	if !cfg.Silenced("stop_words:strict") {
		t.Fatalf("expected stop_words prefix to match")
	}
	if !cfg.Silenced("antiflood", "warning") {
		t.Fatalf("expected warning category to match")
	}
	if cfg.Silenced("antiflood") {
		t.Fatalf("unexpected match for antiflood")
	}
	if cfg.Silenced("") {
		t.Fatalf("actions without a rule must not match")
	}
	cfg.Enabled = false
	if cfg.Silenced("stop_words:strict") {
		t.Fatalf("disabled silent mode must not suppress")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	s := Default()
	c := s.Clone()
	c.StopWords.Lists[0].Words = append(c.StopWords.Lists[0].Words, "x")
	c.LinkGuard.BlacklistDomains = append(c.LinkGuard.BlacklistDomains, "bad.example")
	if len(s.StopWords.Lists[0].Words) != 0 || len(s.LinkGuard.BlacklistDomains) != 0 {
		t.Fatalf("clone shares state with original")
	}
}
