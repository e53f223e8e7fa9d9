// Package common provides general utility helper functions and types
package common

import (
	"fmt"
	"math"
	"time"
)

// SanitizeFloat replaces +/-Inf and NaN with zero.
func SanitizeFloat(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		// handle infinity, assign desired value to v
		return 0
	}

	return v
}

// Timespan is a custom type to format time.Duration.
type Timespan time.Duration

// Format formats the time.Duration.
func (t Timespan) Format(format string) string {
	z := time.Unix(0, 0).UTC()
	duration := time.Duration(t)
	day := 24 * time.Hour

	if duration > day {
		days := duration / day

		return fmt.Sprintf("%d-%s", days, z.Add(duration).Format(format))
	}

	return z.Add(duration).Format(format)
}
