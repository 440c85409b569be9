// Package settings holds the per-chat moderation configuration bundle.
package settings

import "strings"

const (
	ActionDelete  = "delete"
	ActionMute    = "mute"
	ActionBan     = "ban"
	ActionCaptcha = "captcha"

	CaptchaButton = "button"
	CaptchaMath   = "math"

	TierFree    = "free"
	TierPremium = "premium"
)

type (
	ChatSettings struct {
		Language       string               `json:"language"`
		Timezone       string               `json:"timezone"`
		SilentMode     SilentModeConfig     `json:"silent_mode"`
		Flood          FloodConfig          `json:"flood"`
		Profanity      ProfanityConfig      `json:"profanity"`
		LinkGuard      LinkGuardConfig      `json:"link_guard"`
		StopWords      StopWordsConfig      `json:"stop_words"`
		NightMode      NightModeConfig      `json:"night_mode"`
		SystemMessages SystemMessagesConfig `json:"system_messages"`
		Captcha        CaptchaConfig        `json:"captcha"`
		Welcome        WelcomeConfig        `json:"welcome"`
		Reports        ReportsConfig        `json:"reports"`
		Forwards       ForwardsConfig       `json:"forwards"`
		Reputation     ReputationConfig     `json:"reputation"`
		AntiRaid       AntiRaidConfig       `json:"anti_raid"`
		JoinFilter     JoinFilterConfig     `json:"join_filter"`
		Questionnaire  QuestionnaireConfig  `json:"questionnaire"`
		Subscription   SubscriptionConfig   `json:"subscription"`
	}

	SilentModeConfig struct {
		Enabled        bool     `json:"enabled"`
		SuppressEvents []string `json:"suppress_events"`
	}

	FloodConfig struct {
		Enabled         bool   `json:"enabled"`
		MessageLimit    int    `json:"message_limit"`
		IntervalSeconds int    `json:"interval_seconds"`
		Punishment      string `json:"punishment"`
		MuteMinutes     int    `json:"mute_minutes"`
	}

	ProfanityConfig struct {
		Enabled       bool     `json:"enabled"`
		WarnThreshold int      `json:"warn_threshold"`
		MuteMinutes   int      `json:"mute_minutes"`
		Dictionary    []string `json:"dictionary"`
	}

	LinkGuardConfig struct {
		Enabled          bool     `json:"enabled"`
		AllowTrusted     bool     `json:"allow_trusted"`
		BlockAll         bool     `json:"block_all"`
		WhitelistDomains []string `json:"whitelist_domains"`
		BlacklistDomains []string `json:"blacklist_domains"`
	}

	StopWordList struct {
		Name        string   `json:"name"`
		Words       []string `json:"words"`
		Action      string   `json:"action"`
		MuteMinutes int      `json:"mute_minutes"`
	}

	StopWordsConfig struct {
		Enabled       bool           `json:"enabled"`
		WarnThreshold int            `json:"warn_threshold"`
		Lists         []StopWordList `json:"lists"`
	}

	NightModeConfig struct {
		Enabled bool   `json:"enabled"`
		Start   string `json:"start"`
		End     string `json:"end"`
		Action  string `json:"action"`
	}

	SystemMessagesConfig struct {
		DeleteJoin  bool `json:"delete_join"`
		DeleteLeave bool `json:"delete_leave"`
	}

	CaptchaConfig struct {
		Enabled        bool   `json:"enabled"`
		Type           string `json:"type"`
		TimeoutSeconds int    `json:"timeout_seconds"`
		MaxAttempts    int    `json:"max_attempts"`
	}

	WelcomeConfig struct {
		Enabled bool   `json:"enabled"`
		Text    string `json:"text"`
	}

	ReportsConfig struct {
		Enabled           bool  `json:"enabled"`
		DestinationChatID int64 `json:"destination_chat_id,omitempty"`
	}

	ForwardsConfig struct {
		AllowExternalForwards bool    `json:"allow_external_forwards"`
		WhitelistSenders      []int64 `json:"whitelist_senders"`
	}

	ReputationConfig struct {
		Enabled         bool   `json:"enabled"`
		UpvoteCommand   string `json:"upvote_command"`
		DownvoteCommand string `json:"downvote_command"`
	}

	AntiRaidConfig struct {
		Enabled       bool   `json:"enabled"`
		JoinThreshold int    `json:"join_threshold"`
		WithinSeconds int    `json:"within_seconds"`
		Action        string `json:"action"`
	}

	JoinFilterConfig struct {
		Enabled       bool     `json:"enabled"`
		Presets       []string `json:"presets"`
		NameStopwords []string `json:"name_stopwords"`
		CloseChat     bool     `json:"close_chat"`
	}

	QuestionnaireConfig struct {
		Enabled           bool     `json:"enabled"`
		Questions         []string `json:"questions"`
		AutoRejectSeconds int      `json:"auto_reject_seconds"`
	}

	SubscriptionConfig struct {
		Tier      string `json:"tier"`
		ExpiresAt int64  `json:"expires_at,omitempty"`
	}
)

var joinFilterPresets = map[string][]string{
	"promo":   {"http", "https", "t.me", "vk.com", "instagram", "shop"},
	"casino":  {"casino", "bet", "slot", "1xbet"},
	"numbers": {"123", "777", "999", "000"},
}

// JoinFilterPreset returns the words of a named preset.
func JoinFilterPreset(name string) ([]string, bool) {
	words, ok := joinFilterPresets[name]
	return words, ok
}

func defaultStopWordLists() []StopWordList {
	return []StopWordList{
		{Name: "soft", Words: []string{}, Action: ActionDelete, MuteMinutes: 120},
		{Name: "strict", Words: []string{}, Action: ActionBan, MuteMinutes: 120},
	}
}

func Default() *ChatSettings {
	return &ChatSettings{
		Language: "ru",
		Timezone: "Europe/Moscow",
		SilentMode: SilentModeConfig{
			SuppressEvents: []string{"ban", "mute", "warning", "stop_words", "profanity", "captcha", "join_block"},
		},
		Flood: FloodConfig{
			Enabled:         true,
			MessageLimit:    6,
			IntervalSeconds: 10,
			Punishment:      ActionMute,
			MuteMinutes:     360,
		},
		Profanity: ProfanityConfig{
			WarnThreshold: 2,
			MuteMinutes:   60,
			Dictionary:    []string{},
		},
		LinkGuard: LinkGuardConfig{
			Enabled:          true,
			AllowTrusted:     true,
			WhitelistDomains: []string{},
			BlacklistDomains: []string{},
		},
		StopWords: StopWordsConfig{
			WarnThreshold: 2,
			Lists:         defaultStopWordLists(),
		},
		NightMode: NightModeConfig{
			Start:  "00:00",
			End:    "06:00",
			Action: ActionDelete,
		},
		SystemMessages: SystemMessagesConfig{
			DeleteJoin:  true,
			DeleteLeave: true,
		},
		Captcha: CaptchaConfig{
			Enabled:        true,
			Type:           CaptchaButton,
			TimeoutSeconds: 120,
			MaxAttempts:    2,
		},
		Welcome: WelcomeConfig{
			Enabled: true,
			Text:    "Привет, {user}! Добро пожаловать в {chat}. Пожалуйста, ознакомьтесь с правилами и ведите себя уважительно.",
		},
		Reports: ReportsConfig{
			Enabled: true,
		},
		Forwards: ForwardsConfig{
			WhitelistSenders: []int64{},
		},
		Reputation: ReputationConfig{
			Enabled:         true,
			UpvoteCommand:   "+rep",
			DownvoteCommand: "-rep",
		},
		AntiRaid: AntiRaidConfig{
			Enabled:       true,
			JoinThreshold: 5,
			WithinSeconds: 60,
			Action:        ActionMute,
		},
		JoinFilter: JoinFilterConfig{
			Enabled:       true,
			Presets:       []string{},
			NameStopwords: []string{},
		},
		Questionnaire: QuestionnaireConfig{
			Questions:         []string{},
			AutoRejectSeconds: 180,
		},
		Subscription: SubscriptionConfig{
			Tier: TierFree,
		},
	}
}

// Clone returns a deep copy, so cached values are never shared with callers that mutate.
func (s *ChatSettings) Clone() *ChatSettings {
	if s == nil {
		return nil
	}
	c := *s
	c.SilentMode.SuppressEvents = append([]string(nil), s.SilentMode.SuppressEvents...)
	c.Profanity.Dictionary = append([]string(nil), s.Profanity.Dictionary...)
	c.LinkGuard.WhitelistDomains = append([]string(nil), s.LinkGuard.WhitelistDomains...)
	c.LinkGuard.BlacklistDomains = append([]string(nil), s.LinkGuard.BlacklistDomains...)
	c.StopWords.Lists = make([]StopWordList, len(s.StopWords.Lists))
	for i, l := range s.StopWords.Lists {
		l.Words = append([]string(nil), l.Words...)
		c.StopWords.Lists[i] = l
	}
	c.Forwards.WhitelistSenders = append([]int64(nil), s.Forwards.WhitelistSenders...)
	c.JoinFilter.Presets = append([]string(nil), s.JoinFilter.Presets...)
	c.JoinFilter.NameStopwords = append([]string(nil), s.JoinFilter.NameStopwords...)
	c.Questionnaire.Questions = append([]string(nil), s.Questionnaire.Questions...)
	return &c
}

// Silenced reports whether outward notifications for the given category or rule are suppressed.
func (c SilentModeConfig) Silenced(names ...string) bool {
	if !c.Enabled {
		return false
	}
	for _, prefix := range c.SuppressEvents {
		if prefix == "" {
			continue
		}
		for _, name := range names {
			if name != "" && strings.HasPrefix(name, prefix) {
				return true
			}
		}
	}
	return false
}

func (c ForwardsConfig) AllowsSender(id int64) bool {
	for _, allowed := range c.WhitelistSenders {
		if allowed == id {
			return true
		}
	}
	return false
}
