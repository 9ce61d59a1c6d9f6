package schedule

import (
	"time"
)

// IsQuiet reports whether t falls in one of the given UTC hours.
func IsQuiet(t time.Time, quietHours []int) bool {
	h := t.UTC().Hour()
	for _, q := range quietHours {
		if q == h {
			return true
		}
	}
	return false
}

// NextWindow returns the first whole hour at or after now that is not quiet.
// Without a free hour in the next two days it returns now.
func NextWindow(now time.Time, quietHours []int) time.Time {
	if !IsQuiet(now, quietHours) {
		return now
	}
	top := now.UTC().Truncate(time.Hour)
	for i := 1; i <= 48; i++ {
		cand := top.Add(time.Duration(i) * time.Hour)
		if !IsQuiet(cand, quietHours) {
			return cand
		}
	}
	return now
}
