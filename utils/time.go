package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"
)

// ReferenceZone is the civil timezone used for service dates and clock rendering.
const ReferenceZone = "Asia/Jerusalem"

var referenceLocation = mustLoadLocation(ReferenceZone)

// now is swapped in tests.
var now = time.Now

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// Location returns the reference timezone.
func Location() *time.Location { return referenceLocation }

// Now returns the current instant in UTC.
func Now() time.Time { return now().UTC() }

// NowInstant returns the current instant as an RFC 3339 UTC string.
func NowInstant() string {
	return Now().Format(time.RFC3339)
}

// OffsetInstant returns now + minutes as an RFC 3339 UTC string. Negative values go back.
func OffsetInstant(minutes int) string {
	return Now().Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339)
}

// CivilDateInZone returns today's date (YYYY-MM-DD) as observed in the reference zone.
func CivilDateInZone() string {
	return CivilDateAt(now())
}

// CivilDateAt returns the reference-zone calendar date of t.
func CivilDateAt(t time.Time) string {
	return t.In(referenceLocation).Format("2006-01-02")
}

// FormatClockInZone renders t as HH:MM (24h) in the reference zone.
func FormatClockInZone(t time.Time) string {
	return t.In(referenceLocation).Format("15:04")
}

// FormatClockISO is FormatClockInZone over a raw timestamp.
func FormatClockISO(s string) (string, bool) {
	t, ok := ParseInstant(s)
	if !ok {
		return "", false
	}
	return FormatClockInZone(t), true
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// ParseInstant parses an upstream timestamp. Zone-less values are taken as UTC.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseInstantPtr is ParseInstant returning nil on failure.
func ParseInstantPtr(s string) *time.Time {
	t, ok := ParseInstant(s)
	if !ok {
		return nil
	}
	return &t
}

// roundMinutes rounds half up, so -2.5 becomes -2 and 2.5 becomes 3.
func roundMinutes(d time.Duration) int {
	return int(math.Floor(d.Minutes() + 0.5))
}

// MinutesUntil returns the rounded signed minutes from ref (now when nil) to target.
// ok is false when target cannot be parsed.
func MinutesUntil(target string, ref *time.Time) (int, bool) {
	t, ok := ParseInstant(target)
	if !ok {
		return 0, false
	}
	base := Now()
	if ref != nil {
		base = *ref
	}
	return MinutesBetween(t, base), true
}

// MinutesBetween returns the rounded signed minutes from ref to target.
func MinutesBetween(target, ref time.Time) int {
	return roundMinutes(target.Sub(ref))
}

// DelayMinutes returns the rounded expected - aimed difference in minutes.
// ok is false when either value is missing.
func DelayMinutes(expected, aimed *time.Time) (int, bool) {
	if expected == nil || aimed == nil {
		return 0, false
	}
	return roundMinutes(expected.Sub(*aimed)), true
}

// DelayMinutesISO is DelayMinutes over raw timestamp strings.
func DelayMinutesISO(expected, aimed string) (int, bool) {
	return DelayMinutes(ParseInstantPtr(expected), ParseInstantPtr(aimed))
}

// HumanizeDuration buckets a minute count into a display label.
func HumanizeDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return "now"
	case minutes == 1:
		return "1 minute"
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	default:
		return fmt.Sprintf("%d:%02d h", minutes/60, minutes%60)
	}
}
