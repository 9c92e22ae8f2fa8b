package validation

import (
	"errors"
	"strings"
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// maxLocationRunes bounds tool input; the longest legitimate inputs are
// compound Chinese place names well under this.
const maxLocationRunes = 64

// validForecastDays are the day counts the forecast endpoint supports.
var validForecastDays = [...]int{3, 7, 10, 15, 30}

// DefaultForecastDays is used when the requested count is unsupported.
const DefaultForecastDays = 7

// ValidateLocation trims the input and enforces non-emptiness and a length
// bound (in runes). Character filtering is left to the provider, which
// accepts names, pinyin, and numeric LocationIDs alike.
func ValidateLocation(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrLocationEmpty
	}
	if len([]rune(s)) > maxLocationRunes {
		return "", ErrLocationTooLong
	}
	return s, nil
}

// NormalizeDays coerces an unsupported forecast day count to the default.
// Out-of-range values are never an error; the provider contract fixes the
// supported set and callers get 7 days silently.
func NormalizeDays(days int) int {
	for _, d := range validForecastDays {
		if days == d {
			return days
		}
	}
	return DefaultForecastDays
}
