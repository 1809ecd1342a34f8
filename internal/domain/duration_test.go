package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSessionDuration(t *testing.T) {
	ok := map[string]time.Duration{
		"90":                   90 * time.Minute,
		"45m":                  45 * time.Minute,
		"1h30m":                90 * time.Minute,
		"1h 30m":               90 * time.Minute,
		"1:30:00":              90 * time.Minute,
		"0:45":                 45 * time.Minute,
		"1 hour 30 minutes":    90 * time.Minute,
		"2 hours":              2 * time.Hour,
		"1 hr, 15 mins":        75 * time.Minute,
		"90 min":               90 * time.Minute,
		"1 hour and 5 minutes": 65 * time.Minute,
		"1440":                 24 * time.Hour,
	}
	for in, want := range ok {
		got, parsed := ParseSessionDuration(in)
		require.True(t, parsed, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{
		"", "  ", "soon", "0", "-5", "1:75", "1:2:3:4", "1 hour later", "hours",
		"100000000", "nan", "inf", "25h", "25:00", "30 hours", "20 hours 5 hours",
	} {
		_, parsed := ParseSessionDuration(in)
		require.False(t, parsed, in)
	}
}
