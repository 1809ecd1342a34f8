package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultSessionDuration applies when no duration, or an unparseable one, is submitted.
const DefaultSessionDuration = time.Hour

// MaxSessionDuration bounds an accepted duration. Longer values are treated
// as unparseable.
const MaxSessionDuration = 24 * time.Hour

var (
	durationTerm = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m|seconds?|secs?|s)\b`)
	durationGlue = regexp.MustCompile(`^(?:\s|,|and)*$`)
)

// ParseSessionDuration understands the forms clients send for a session
// length: bare minutes ("90"), Go durations ("45m", "1h30m"), clock notation
// ("1:30" or "1:30:00") and prose ("1 hour 30 minutes"). The boolean is false
// when the input is blank or unrecognised, and when the result is not positive
// or exceeds MaxSessionDuration.
func ParseSessionDuration(raw string) (time.Duration, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	if minutes, err := strconv.ParseFloat(s, 64); err == nil {
		if !(minutes <= MaxSessionDuration.Minutes()) {
			return 0, false
		}
		return positive(time.Duration(minutes * float64(time.Minute)))
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	if d, err := time.ParseDuration(strings.ReplaceAll(s, " ", "")); err == nil {
		return positive(d)
	}
	return parseProse(s)
}

func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || (i > 0 && n > 59) || n > int(MaxSessionDuration/units[i]) {
			return 0, false
		}
		total += time.Duration(n) * units[i]
	}
	return positive(total)
}

func parseProse(s string) (time.Duration, bool) {
	matches := durationTerm.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var total time.Duration
	last := 0
	for _, m := range matches {
		if !durationGlue.MatchString(s[last:m[0]]) {
			return 0, false
		}
		n, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
		if err != nil {
			return 0, false
		}
		var unit time.Duration
		switch s[m[4]] {
		case 'h':
			unit = time.Hour
		case 'm':
			unit = time.Minute
		default:
			unit = time.Second
		}
		if n*float64(unit) > float64(MaxSessionDuration) {
			return 0, false
		}
		total += time.Duration(n * float64(unit))
		if total > MaxSessionDuration {
			return 0, false
		}
		last = m[1]
	}
	if !durationGlue.MatchString(s[last:]) {
		return 0, false
	}
	return positive(total)
}

func positive(d time.Duration) (time.Duration, bool) {
	if d <= 0 || d > MaxSessionDuration {
		return 0, false
	}
	return d, true
}
