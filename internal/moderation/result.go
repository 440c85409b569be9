package moderation

// Result is the ordered outcome of one pipeline run.
type Result struct {
	Actions        []Action
	TriggeredRules []string
}

func NewResult() *Result {
	return &Result{}
}

// Add records a rule firing along with the actions it produced. Each rule name is
// listed once, in the order rules first fired.
func (r *Result) Add(rule string, actions ...Action) {
	for _, a := range actions {
		if a == nil {
			continue
		}
		r.Actions = append(r.Actions, a.withRule(rule))
	}
	r.markRule(rule)
}

// Extend appends another result's actions and rules after this one's.
func (r *Result) Extend(other *Result) {
	if other == nil {
		return
	}
	r.Actions = append(r.Actions, other.Actions...)
	for _, rule := range other.TriggeredRules {
		r.markRule(rule)
	}
}

func (r *Result) Empty() bool {
	return len(r.Actions) == 0 && len(r.TriggeredRules) == 0
}

// Fired reports whether the named rule has fired.
func (r *Result) Fired(rule string) bool {
	for _, name := range r.TriggeredRules {
		if name == rule {
			return true
		}
	}
	return false
}

func (r *Result) markRule(rule string) {
	if rule == "" || r.Fired(rule) {
		return
	}
	r.TriggeredRules = append(r.TriggeredRules, rule)
}
