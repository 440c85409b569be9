package settings

import (
	"errors"
	"fmt"
	"strings"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

// Normalize fills structural gaps left by partial payloads: missing stop-word lists are
// restored to the soft/strict pair and nil collections become empty ones.
func (s *ChatSettings) Normalize() {
	switch len(s.StopWords.Lists) {
	case 0:
		s.StopWords.Lists = defaultStopWordLists()
	case 1:
		s.StopWords.Lists = append(s.StopWords.Lists, StopWordList{
			Name:        "strict",
			Words:       []string{},
			Action:      ActionBan,
			MuteMinutes: 120,
		})
	}
	for i := range s.StopWords.Lists {
		l := &s.StopWords.Lists[i]
		if l.Words == nil {
			l.Words = []string{}
		}
		if l.Name == "" {
			l.Name = "default"
		}
		if l.Action == "" {
			l.Action = ActionDelete
		}
	}
	if s.SilentMode.SuppressEvents == nil {
		s.SilentMode.SuppressEvents = []string{}
	}
	if s.Profanity.Dictionary == nil {
		s.Profanity.Dictionary = []string{}
	}
	if s.LinkGuard.WhitelistDomains == nil {
		s.LinkGuard.WhitelistDomains = []string{}
	}
	if s.LinkGuard.BlacklistDomains == nil {
		s.LinkGuard.BlacklistDomains = []string{}
	}
	for i, d := range s.LinkGuard.WhitelistDomains {
		s.LinkGuard.WhitelistDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	for i, d := range s.LinkGuard.BlacklistDomains {
		s.LinkGuard.BlacklistDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	if s.Forwards.WhitelistSenders == nil {
		s.Forwards.WhitelistSenders = []int64{}
	}
	if s.JoinFilter.Presets == nil {
		s.JoinFilter.Presets = []string{}
	}
	if s.JoinFilter.NameStopwords == nil {
		s.JoinFilter.NameStopwords = []string{}
	}
	if s.Questionnaire.Questions == nil {
		s.Questionnaire.Questions = []string{}
	}
	if s.Subscription.Tier == "" {
		s.Subscription.Tier = TierFree
	}
}

// Validate reports every problem found; the returned error matches ErrInvalidSettings.
func (s *ChatSettings) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}
	oneOf := func(value string, allowed ...string) bool {
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}

	check(oneOf(s.Language, "ru", "en"), "language %q is not supported", s.Language)

	check(s.Flood.MessageLimit >= 1, "flood.message_limit must be positive")
	check(s.Flood.IntervalSeconds >= 1, "flood.interval_seconds must be positive")
	check(oneOf(s.Flood.Punishment, ActionMute, ActionBan, ActionDelete), "flood.punishment %q is unknown", s.Flood.Punishment)
	check(s.Flood.MuteMinutes >= 0, "flood.mute_minutes must not be negative")

	check(s.Profanity.WarnThreshold >= 1, "profanity.warn_threshold must be positive")
	check(s.Profanity.MuteMinutes >= 0, "profanity.mute_minutes must not be negative")

	check(s.StopWords.WarnThreshold >= 1, "stop_words.warn_threshold must be positive")
	check(len(s.StopWords.Lists) >= 2, "stop_words.lists must hold at least two lists")
	for i, l := range s.StopWords.Lists {
		check(oneOf(l.Action, ActionDelete, ActionMute, ActionBan), "stop_words.lists[%d].action %q is unknown", i, l.Action)
		check(l.MuteMinutes >= 0, "stop_words.lists[%d].mute_minutes must not be negative", i)
	}

	_, err := ParseClock(s.NightMode.Start)
	check(err == nil, "night_mode.start: %v", err)
	_, err = ParseClock(s.NightMode.End)
	check(err == nil, "night_mode.end: %v", err)
	check(oneOf(s.NightMode.Action, ActionDelete, ActionMute), "night_mode.action %q is unknown", s.NightMode.Action)

	check(oneOf(s.Captcha.Type, CaptchaButton, CaptchaMath), "captcha.type %q is unknown", s.Captcha.Type)
	check(s.Captcha.TimeoutSeconds >= 1, "captcha.timeout_seconds must be positive")
	check(s.Captcha.MaxAttempts >= 1, "captcha.max_attempts must be positive")

	check(s.AntiRaid.JoinThreshold >= 1, "anti_raid.join_threshold must be positive")
	check(s.AntiRaid.WithinSeconds >= 1, "anti_raid.within_seconds must be positive")
	check(oneOf(s.AntiRaid.Action, ActionMute, ActionBan, ActionCaptcha), "anti_raid.action %q is unknown", s.AntiRaid.Action)

	check(s.Questionnaire.AutoRejectSeconds >= 0, "questionnaire.auto_reject_seconds must not be negative")
	check(oneOf(s.Subscription.Tier, TierFree, TierPremium), "subscription.tier %q is unknown", s.Subscription.Tier)

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ngerrors.ErrInvalidSettings, errors.Join(problems...))
}
