package feed

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
)

const stopsPath = "/gtfs/stops"

var stopCodePattern = regexp.MustCompile(`\d{4,6}`)

// ValidateStopCode trims code and checks it contains a run of 4 to 6 digits.
func ValidateStopCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if !stopCodePattern.MatchString(code) {
		return "", invalidInput("lookup stop", "stop code %q must contain 4-6 digits", code)
	}
	return code, nil
}

// LookupStop resolves code to a stop. date is the service date (YYYY-MM-DD).
func (c *Client) LookupStop(ctx context.Context, code, date string) (stop arrivals.Stop, err error) {
	const op = "lookup stop"
	start := time.Now()
	defer func() { c.observe(op, start, err) }()

	code, err = ValidateStopCode(code)
	if err != nil {
		return arrivals.Stop{}, err
	}
	q := url.Values{"stop_code": {code}, "limit": {"1"}}
	if date != "" {
		q.Set("date", date)
	}
	body, err := c.get(ctx, op, stopsPath, q, "application/json")
	if err != nil {
		return arrivals.Stop{}, err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return arrivals.Stop{}, decode(op, err)
	}
	if len(rows) == 0 {
		return arrivals.Stop{}, notFound(op, "no stop with code %s", code)
	}
	return normalizeStop(rows[0], code), nil
}

func normalizeStop(r row, code string) arrivals.Stop {
	s := arrivals.Stop{
		ID:   r.str("stop_id", "id"),
		Code: r.str("stop_code", "code"),
		Name: r.str("stop_name", "name"),
		City: r.str("stop_city", "city"),
		Lat:  r.number("stop_lat", "lat"),
		Lon:  r.number("stop_lon", "lon"),
	}
	if s.Code == "" {
		s.Code = code
	}
	if s.ID == "" {
		s.ID = "stop_" + code
	}
	return s
}
