package gtfs

import (
	"strconv"
	"strings"
	"time"
)

// ParseServiceTime parses a GTFS HH:MM:SS value into seconds. Hours may exceed 23.
func ParseServiceTime(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, false
	}
	return v[0]*3600 + v[1]*60 + v[2], true
}

// ServiceDayStart returns the reference instant of a service date: noon minus
// twelve hours in loc. On DST change days this differs from midnight.
func ServiceDayStart(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, loc).Add(-12 * time.Hour)
}

// ServiceActive reports whether serviceID runs on the given date.
// calendar_dates exceptions override calendar.txt.
func (g *Index) ServiceActive(serviceID string, date time.Time) bool {
	key := date.Format("20060102")
	switch g.CalendarDates[serviceID][key] {
	case ServiceAdded:
		return true
	case ServiceRemoved:
		return false
	}
	c, ok := g.Calendars[serviceID]
	if !ok {
		return false
	}
	if key < c.StartDate || key > c.EndDate {
		return false
	}
	return c.Days[date.Weekday()]
}
