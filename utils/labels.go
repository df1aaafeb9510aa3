package utils

import "fmt"

// DelayStatus classifies a delay for badges.
type DelayStatus string

const (
	DelayUnknown DelayStatus = "unknown"
	DelayOnTime  DelayStatus = "on-time"
	DelayLate    DelayStatus = "late"
	DelayEarly   DelayStatus = "early"
)

// ClassifyDelay treats |d| <= 1 as on time.
func ClassifyDelay(minutes *int) (DelayStatus, string) {
	if minutes == nil {
		return DelayUnknown, ""
	}
	d := *minutes
	switch {
	case d > 1:
		return DelayLate, fmt.Sprintf("late %d min", d)
	case d < -1:
		return DelayEarly, fmt.Sprintf("early %d min", -d)
	default:
		return DelayOnTime, "on time"
	}
}
