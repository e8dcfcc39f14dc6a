package domain

import "time"

// Request window policy: a booking interval must start no sooner than 24
// hours and no later than 60 days from the current time.
const (
	MinLeadTime = 24 * time.Hour
	MaxLeadTime = 60 * 24 * time.Hour
)

// ValidateInterval checks the [start, end) interval against the request
// window policy. Violations are rejected, never clamped.
func ValidateInterval(now, start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ValidationError("start time and end time are required")
	}
	if !end.After(start) {
		return ValidationError("end time must be after start time")
	}
	if start.Before(now.Add(MinLeadTime)) {
		return ValidationError("start time must be at least 24 hours from now")
	}
	if start.After(now.Add(MaxLeadTime)) {
		return ValidationError("start time must be at most 60 days from now")
	}
	return nil
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
