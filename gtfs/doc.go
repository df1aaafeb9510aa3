/*
Package gtfs builds an in-memory index of a GTFS static feed and serves it as a
stop finder and planned-arrival source.

The loader accepts raw zip bytes, an io.ReaderAt or a local path; fetching the
zip over HTTP is left to the caller (see Fetch). Only the files needed to answer
"which trips call at this stop on this date" are read: agency, routes, trips,
stops, stop_times, calendar and calendar_dates.

# Basic Usage

	idx, err := gtfs.LoadFile("gtfs.zip")
	if err != nil {
	    log.Fatal(err)
	}
	src := gtfs.NewSource(idx)
	stop, err := src.LookupStop(ctx, "21470", "2024-01-01")

# Service times

Stop times are stored as seconds from the service day reference point, which is
noon minus twelve hours in the agency timezone. Values past 24:00:00 belong to
the previous service date and are resolved by checking both the requested date
and the day before.

# Caching

Parsing a national feed takes seconds. Save the index once with SaveFile and
load it on start with LoadCacheFile.
*/
package gtfs
