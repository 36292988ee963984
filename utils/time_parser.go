package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration extends time.ParseDuration to support days (d), alone or
// leading a compound value such as "1d12h".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	idx := strings.IndexByte(s, 'd')
	if idx < 0 {
		return time.ParseDuration(s)
	}

	daysStr := s[:idx]
	days, err := strconv.Atoi(daysStr)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("invalid day value: %s", daysStr)
	}
	total := time.Duration(days) * 24 * time.Hour

	if rest := s[idx+1:]; rest != "" {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += d
	}
	return total, nil
}

// FormatDuration renders d in the largest whole unit for member-facing text.
func FormatDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
