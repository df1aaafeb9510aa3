// Package arrivals defines the stop, planned, realtime and joined arrival records
// shared by the feed sources, the reconciliation engine and the lookup cycle.
//
// All instants are absolute (UTC-comparable) times. Optional values are pointers;
// a nil pointer means the upstream did not provide the field.
package arrivals
