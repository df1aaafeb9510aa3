// Package reconcile joins planned and realtime arrivals for a single stop into one
// ordered sequence.
//
// Each planned row is paired with at most one realtime row using the first rule
// that yields a match:
//
//  1. ID: a realtime row whose ID equals the planned row ID.
//  2. Journey: realtime rows sharing the planned journey reference; the one closest
//     in time wins.
//  3. Line: realtime rows with the same line label; the one closest in time wins.
//  4. None: the planned row is emitted without realtime data.
//
// Join is pure and deterministic: identical inputs yield identical output order.
package reconcile
