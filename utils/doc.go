// Package utils provides shared helpers for the stop-arrivals service.
//
// It contains:
//   - Time utilities anchored on a fixed reference timezone (Asia/Jerusalem)
//   - Display labels for ETA and delay values
//   - Logger construction
package utils
