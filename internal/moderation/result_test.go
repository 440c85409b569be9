package moderation

import (
	"reflect"
	"testing"
)

func kinds(actions []Action) []Kind {
	out := make([]Kind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind())
	}
	return out
}

func TestResultAddStampsRuleAndKeepsOrder(t *testing.T) {
	t.Parallel()

	res := NewResult()
	res.Add("antiflood",
		DeleteMessage{MessageID: 10},
		Warn{UserID: 1, Reason: "flood"},
		Mute{UserID: 1, UntilSeconds: 60},
	)

	if got, want := kinds(res.Actions), []Kind{KindDelete, KindWarn, KindMute}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected kinds: got %v want %v", got, want)
	}
	for _, a := range res.Actions {
		if a.Rule() != "antiflood" {
			t.Fatalf("expected rule antiflood, got %q", a.Rule())
		}
	}
	if !reflect.DeepEqual(res.TriggeredRules, []string{"antiflood"}) {
		t.Fatalf("unexpected rules: %v", res.TriggeredRules)
	}
}

func TestResultAddWithoutActionsStillRecordsRule(t *testing.T) {
	t.Parallel()

	res := NewResult()
	res.Add("questionnaire")
	if len(res.Actions) != 0 || !res.Fired("questionnaire") {
		t.Fatalf("unexpected result: %#v", res)
	}
	if res.Empty() {
		t.Fatalf("result with a fired rule is not empty")
	}
}

func TestResultExtendConcatenates(t *testing.T) {
	t.Parallel()

	first := NewResult()
	first.Add("system_join", DeleteMessage{MessageID: 1})
	first.Add("welcome", SendMessage{Text: "hi"})

	second := NewResult()
	second.Add("captcha", Restrict{UserID: 5}, SendMessage{Text: "solve"})
	second.Add("welcome", SendMessage{Text: "hi again"})

	first.Extend(second)
	first.Extend(nil)

	if got, want := kinds(first.Actions), []Kind{KindDelete, KindSend, KindRestrict, KindSend, KindSend}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected kinds: got %v want %v", got, want)
	}
	if want := []string{"system_join", "welcome", "captcha"}; !reflect.DeepEqual(first.TriggeredRules, want) {
		t.Fatalf("unexpected rules: got %v want %v", first.TriggeredRules, want)
	}
}

func TestActionValuesAreNotShared(t *testing.T) {
	t.Parallel()

	base := Warn{UserID: 1, Reason: "x"}
	res := NewResult()
	res.Add("a", base)
	res.Add("b", base)
	if base.Rule() != "" {
		t.Fatalf("original action must stay untouched, got rule %q", base.Rule())
	}
	if res.Actions[0].Rule() != "a" || res.Actions[1].Rule() != "b" {
		t.Fatalf("unexpected rules: %q %q", res.Actions[0].Rule(), res.Actions[1].Rule())
	}
}
