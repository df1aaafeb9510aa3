// Package gtfsrt decodes GTFS-Realtime TripUpdates feeds and indexes their stop
// time updates by stop, so a single stop's predicted calls can be read as
// realtime arrival rows.
package gtfsrt
