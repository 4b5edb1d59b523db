package timing

import "time"

// DefaultSearchLimit bounds Next to a little over a year of minutes.
const DefaultSearchLimit = 367 * 24 * 60

// Next returns the first slot strictly after from (in loc) matched by s.
// It scans minute by minute, so it is meant for previews and diagnostics,
// never for the hot path. ok is false if nothing matches within limit
// minutes (limit <= 0 uses DefaultSearchLimit).
func Next(s Schedule, from time.Time, loc *time.Location, limit int) (time.Time, bool) {
	if s == nil || s.Validate() != nil {
		return time.Time{}, false
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	t := Take(from, loc).Slot()
	for i := 0; i < limit; i++ {
		t = t.Add(time.Minute)
		snap := Take(t, loc)
		if s.Match(snap) {
			return snap.Slot(), true
		}
	}
	return time.Time{}, false
}

// NextN returns up to n upcoming slots after from.
func NextN(s Schedule, from time.Time, loc *time.Location, n int) []time.Time {
	out := make([]time.Time, 0, n)
	t := from
	for len(out) < n {
		next, ok := Next(s, t, loc, 0)
		if !ok {
			break
		}
		out = append(out, next)
		t = next
	}
	return out
}
