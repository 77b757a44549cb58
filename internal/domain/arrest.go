package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ArrestRecord tracks a single active arrest per account. A record whose
// release time has passed is logically absent; the sweep only cleans
// storage.
type ArrestRecord struct {
	AccountID string    `json:"account_id"`
	OfficerID string    `json:"officer_id"`
	ReleaseAt time.Time `json:"release_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Active checks release time against the given clock.
func (a *ArrestRecord) Active(now time.Time) bool {
	return a.ReleaseAt.After(now)
}

// Arrest duration bounds. Free-form input outside these bounds is
// clamped, and unparseable input falls back to the default.
const (
	MinArrestDuration     = 1 * time.Minute
	MaxArrestDuration     = 1440 * time.Minute
	DefaultArrestDuration = 180 * time.Minute
)

// ParseArrestDuration parses compound day/hour/minute tokens out of
// free-form text ("2d 3h", "1h30m", "90"). A bare number is minutes.
// The result is clamped to [MinArrestDuration, MaxArrestDuration];
// text with no parseable duration yields DefaultArrestDuration.
func ParseArrestDuration(text string) time.Duration {
	var total time.Duration
	found := false

	s := strings.ToLower(strings.TrimSpace(text))
	i := 0
	for i < len(s) {
		if !unicode.IsDigit(rune(s[i])) {
			i++
			continue
		}
		j := i
		for j < len(s) && unicode.IsDigit(rune(s[j])) {
			j++
		}
		n, err := strconv.Atoi(s[i:j])
		if err != nil {
			i = j
			continue
		}
		// skip spaces between the number and its unit
		k := j
		for k < len(s) && s[k] == ' ' {
			k++
		}
		unit := time.Minute
		if k < len(s) {
			switch s[k] {
			case 'd':
				unit = 24 * time.Hour
				k++
			case 'h':
				unit = time.Hour
				k++
			case 'm':
				unit = time.Minute
				k++
			}
		}
		total += time.Duration(n) * unit
		found = true
		i = k
	}

	if !found || total <= 0 {
		return DefaultArrestDuration
	}
	if total < MinArrestDuration {
		return MinArrestDuration
	}
	if total > MaxArrestDuration {
		return MaxArrestDuration
	}
	return total
}
