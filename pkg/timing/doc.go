// Package timing decides whether "now" falls inside a scheduled window.
//
// It is responsible only for:
//   - taking a Snapshot of the wall clock in a configured location
//   - matching a Snapshot against one of the named Schedule predicates
//   - parsing "HH:MM" times and schedule expressions used in config files
//
// Everything here is pure given a Snapshot; nothing reads the clock except Now.
package timing
