package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
)

var wantedFiles = map[string]bool{
	"agency.txt":         true,
	"routes.txt":         true,
	"trips.txt":          true,
	"stops.txt":          true,
	"stop_times.txt":     true,
	"calendar.txt":       true,
	"calendar_dates.txt": true,
}

// NewIndexFromBytes builds an index from raw zip bytes.
func NewIndexFromBytes(data []byte) (*Index, error) {
	return NewIndexFromReader(bytes.NewReader(data), int64(len(data)))
}

// NewIndexFromReader builds an index from a zip archive.
func NewIndexFromReader(r io.ReaderAt, size int64) (*Index, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open GTFS zip: %w", err)
	}
	return load(zr.File)
}

// LoadFile builds an index from a local zip file.
func LoadFile(p string) (*Index, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open GTFS zip: %w", err)
	}
	defer zr.Close()
	return load(zr.File)
}

// Fetch downloads a GTFS zip.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

func load(files []*zip.File) (*Index, error) {
	g := NewIndex()
	// process in name order so results do not depend on archive layout
	sorted := make([]*zip.File, 0, len(files))
	for _, f := range files {
		if wantedFiles[strings.ToLower(path.Base(f.Name))] {
			sorted = append(sorted, f)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seen := map[string]bool{}
	for _, f := range sorted {
		name := strings.ToLower(path.Base(f.Name))
		if err := g.consumeCSV(f, name); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		seen[name] = true
	}
	for _, req := range []string{"stops.txt", "stop_times.txt", "trips.txt", "routes.txt"} {
		if !seen[req] {
			return nil, fmt.Errorf("missing %s", req)
		}
	}
	for stopID := range g.StopTimes {
		calls := g.StopTimes[stopID]
		sort.SliceStable(calls, func(i, j int) bool { return calls[i].sortKey() < calls[j].sortKey() })
	}
	return g, nil
}

func (st StopTime) sortKey() int {
	if st.Departure >= 0 {
		return st.Departure
	}
	return st.Arrival
}

func (g *Index) consumeCSV(f *zip.File, name string) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	csvr.ReuseRecord = true
	head, err := csvr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	head = append([]string(nil), head...)
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	get := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	each := func(fn func(row []string)) error {
		for {
			row, err := csvr.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			fn(row)
		}
	}

	switch name {
	case "agency.txt":
		agName, agTZ := idx("agency_name"), idx("agency_timezone")
		return each(func(row []string) {
			if g.AgencyTimezone == "" {
				g.AgencyName = get(row, agName)
				g.AgencyTimezone = get(row, agTZ)
			}
		})
	case "routes.txt":
		rID, rSN, rLN := idx("route_id"), idx("route_short_name"), idx("route_long_name")
		return each(func(row []string) {
			g.Routes[get(row, rID)] = Route{ShortName: get(row, rSN), LongName: get(row, rLN)}
		})
	case "trips.txt":
		rID, sID, tID, hs := idx("route_id"), idx("service_id"), idx("trip_id"), idx("trip_headsign")
		return each(func(row []string) {
			g.Trips[get(row, tID)] = Trip{RouteID: get(row, rID), ServiceID: get(row, sID), Headsign: get(row, hs)}
		})
	case "stops.txt":
		sID, sCode, sN, sLat, sLon := idx("stop_id"), idx("stop_code"), idx("stop_name"), idx("stop_lat"), idx("stop_lon")
		return each(func(row []string) {
			id := get(row, sID)
			s := Stop{Code: get(row, sCode), Name: get(row, sN)}
			if lat, err := strconv.ParseFloat(get(row, sLat), 64); err == nil {
				s.Lat = &lat
			}
			if lon, err := strconv.ParseFloat(get(row, sLon), 64); err == nil {
				s.Lon = &lon
			}
			g.Stops[id] = s
			if s.Code != "" {
				g.StopsByCode[s.Code] = append(g.StopsByCode[s.Code], id)
			}
		})
	case "stop_times.txt":
		tID, sID, sq := idx("trip_id"), idx("stop_id"), idx("stop_sequence")
		arr, dep := idx("arrival_time"), idx("departure_time")
		if tID < 0 || sID < 0 || sq < 0 {
			return errors.New("missing trip_id, stop_id or stop_sequence column")
		}
		return each(func(row []string) {
			seq, _ := strconv.Atoi(get(row, sq))
			st := StopTime{TripID: get(row, tID), StopSequence: seq, Arrival: -1, Departure: -1}
			if secs, ok := ParseServiceTime(get(row, arr)); ok {
				st.Arrival = secs
			}
			if secs, ok := ParseServiceTime(get(row, dep)); ok {
				st.Departure = secs
			}
			if st.Arrival < 0 && st.Departure < 0 {
				return
			}
			stop := get(row, sID)
			g.StopTimes[stop] = append(g.StopTimes[stop], st)
		})
	case "calendar.txt":
		sID, start, end := idx("service_id"), idx("start_date"), idx("end_date")
		days := [7]int{idx("sunday"), idx("monday"), idx("tuesday"), idx("wednesday"), idx("thursday"), idx("friday"), idx("saturday")}
		return each(func(row []string) {
			c := Calendar{StartDate: get(row, start), EndDate: get(row, end)}
			for d, col := range days {
				c.Days[d] = get(row, col) == "1"
			}
			g.Calendars[get(row, sID)] = c
		})
	case "calendar_dates.txt":
		sID, date, typ := idx("service_id"), idx("date"), idx("exception_type")
		return each(func(row []string) {
			t, err := strconv.Atoi(get(row, typ))
			if err != nil {
				return
			}
			svc := get(row, sID)
			if g.CalendarDates[svc] == nil {
				g.CalendarDates[svc] = map[string]int{}
			}
			g.CalendarDates[svc][get(row, date)] = t
		})
	}
	return nil
}
