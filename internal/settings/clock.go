package settings

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// ParseClock parses an "HH:MM" (optionally "HH:MM:SS") time of day into an offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, value)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", value)
}

// Between reports whether check falls in [start, end). When start > end the range wraps past midnight.
func Between(check, start, end time.Duration) bool {
	if start <= end {
		return start <= check && check < end
	}
	return check >= start || check < end
}

// Location resolves an IANA zone name, falling back to UTC.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Active reports whether the night window covers the given instant in the chat's zone.
func (c NightModeConfig) Active(at time.Time, timezone string) bool {
	if !c.Enabled {
		return false
	}
	start, err := ParseClock(c.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(c.End)
	if err != nil {
		return false
	}
	local := at.In(Location(timezone))
	check := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	return Between(check, start, end)
}
