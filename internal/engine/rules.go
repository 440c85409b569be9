package engine

const (
	RuleSystemJoin     = "system_join"
	RuleSystemLeave    = "system_leave"
	RuleJoinClosed     = "join_closed"
	RuleJoinFilter     = "join_filter"
	RuleWelcome        = "welcome"
	RuleCaptcha        = "captcha"
	RuleCaptchaSuccess = "captcha_success"
	RuleCaptchaFailure = "captcha_failure"
	RuleCaptchaRetry   = "captcha_retry"
	RuleAntiRaid       = "anti_raid"
	RuleAntiRaidNotice = "anti_raid_notice"
	RuleQuestionnaire  = "questionnaire"
	RuleNightMode      = "night_mode"
	RuleFlood          = "antiflood"
	RuleProfanity      = "profanity"
	RuleLinkGuard      = "link_guard"
	RuleForwardGuard   = "forward_guard"
	RuleReputation     = "reputation"

	ruleStopWordsPrefix = "stop_words:"

	nightMuteSeconds = 3600
	raidMuteSeconds  = 3600
)

// StopWordsRule names the rule fired by a stop-word list.
func StopWordsRule(list string) string {
	return ruleStopWordsPrefix + list
}
