package gtfs

// Route is a routes.txt record.
type Route struct {
	ShortName string
	LongName  string
}

// Trip is a trips.txt record.
type Trip struct {
	RouteID   string
	ServiceID string
	Headsign  string
}

// Stop is a stops.txt record.
type Stop struct {
	Code string
	Name string
	Lat  *float64
	Lon  *float64
}

// StopTime is one call of a trip at a stop. Times are seconds since the service
// day reference; -1 when absent.
type StopTime struct {
	TripID       string
	StopSequence int
	Arrival      int
	Departure    int
}

// Calendar is a calendar.txt record. Days is indexed by time.Weekday.
type Calendar struct {
	Days      [7]bool
	StartDate string // YYYYMMDD
	EndDate   string // YYYYMMDD
}

// Exception types from calendar_dates.txt.
const (
	ServiceAdded   = 1
	ServiceRemoved = 2
)

// Index stores GTFS static data for stop lookups. Fields are exported so the
// index can be gob encoded.
type Index struct {
	AgencyName     string
	AgencyTimezone string
	Routes         map[string]Route          // route_id -> route
	Trips          map[string]Trip           // trip_id -> trip
	Stops          map[string]Stop           // stop_id -> stop
	StopsByCode    map[string][]string       // stop_code -> stop_ids
	StopTimes      map[string][]StopTime     // stop_id -> calls
	Calendars      map[string]Calendar       // service_id -> calendar
	CalendarDates  map[string]map[string]int // service_id -> YYYYMMDD -> exception type
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Routes:        map[string]Route{},
		Trips:         map[string]Trip{},
		Stops:         map[string]Stop{},
		StopsByCode:   map[string][]string{},
		StopTimes:     map[string][]StopTime{},
		Calendars:     map[string]Calendar{},
		CalendarDates: map[string]map[string]int{},
	}
}

// RouteShortName returns the route short name, or "" if unknown.
func (g *Index) RouteShortName(routeID string) string { return g.Routes[routeID].ShortName }

// StopIDsForCode returns the stop ids sharing a public stop code.
func (g *Index) StopIDsForCode(code string) []string { return g.StopsByCode[code] }

// CallsAtStop returns the stop times recorded for stopID.
func (g *Index) CallsAtStop(stopID string) []StopTime { return g.StopTimes[stopID] }
