package tracker

import "time"

// DoseLogs is the append-only dose log collection, in insertion order.
type DoseLogs []DoseLog

// Predicate selects dose logs in a query.
type Predicate func(DoseLog) bool

// Append returns a new collection with log added at the end. The receiver is
// left untouched so readers holding the old slice never observe the write.
func (d DoseLogs) Append(log DoseLog) DoseLogs {
	next := make(DoseLogs, len(d), len(d)+1)
	copy(next, d)
	return append(next, log)
}

// Query returns the logs matching every predicate, in insertion order.
func (d DoseLogs) Query(preds ...Predicate) []DoseLog {
	var out []DoseLog
	for _, l := range d {
		if matchAll(l, preds) {
			out = append(out, l)
		}
	}
	return out
}

// Count returns how many logs match every predicate.
func (d DoseLogs) Count(preds ...Predicate) int {
	n := 0
	for _, l := range d {
		if matchAll(l, preds) {
			n++
		}
	}
	return n
}

// Last returns the n most recent logs, newest first.
func (d DoseLogs) Last(n int) []DoseLog {
	if n < 0 {
		n = 0
	}
	if n > len(d) {
		n = len(d)
	}
	out := make([]DoseLog, 0, n)
	for i := len(d) - 1; i >= len(d)-n; i-- {
		out = append(out, d[i])
	}
	return out
}

func matchAll(l DoseLog, preds []Predicate) bool {
	for _, p := range preds {
		if !p(l) {
			return false
		}
	}
	return true
}

func ForProfile(id string) Predicate {
	return func(l DoseLog) bool { return l.ProfileID == id }
}

func ForMedication(id string) Predicate {
	return func(l DoseLog) bool { return l.MedicationID == id }
}

func WithStatus(s DoseStatus) Predicate {
	return func(l DoseLog) bool { return l.Status == s }
}

// OnDay keeps logs whose timestamp falls on the calendar day of day, judged
// in day's location.
func OnDay(day time.Time) Predicate {
	return func(l DoseLog) bool { return sameDay(day, l.Timestamp) }
}

// Between keeps logs with from <= timestamp <= to. A zero bound is open.
func Between(from, to time.Time) Predicate {
	return func(l DoseLog) bool {
		if !from.IsZero() && l.Timestamp.Before(from) {
			return false
		}
		if !to.IsZero() && l.Timestamp.After(to) {
			return false
		}
		return true
	}
}
