// Package stoparrivals wires the stop arrivals service together and exposes
// it over HTTP: arrival boards per stop code, favorite stops and lines,
// health and Prometheus metrics.
package stoparrivals
