package tracker

import (
	"sort"
	"time"
)

// DefaultUpcomingLimit caps the upcoming-dose list.
const DefaultUpcomingLimit = 5

// UpcomingDose is the next occurrence of one configured dose time.
type UpcomingDose struct {
	MedicationID   string        `json:"medicationId"`
	MedicationName string        `json:"medicationName"`
	Dosage         string        `json:"dosage"`
	ScheduledTime  time.Time     `json:"scheduledTime"`
	TimeUntil      time.Duration `json:"timeUntil"`
}

// Upcoming returns the next occurrence of every dose time of the profile's
// medications, nearest first, capped at limit across all medications. A time
// that is not strictly after now rolls to the same time tomorrow. Occurrences
// outside the medication's course are skipped.
func Upcoming(meds []Medication, profileID string, now time.Time, limit int) []UpcomingDose {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	var out []UpcomingDose
	for _, med := range meds {
		if med.ProfileID != profileID {
			continue
		}
		for _, t := range med.Times {
			at := t.On(now)
			if !at.After(now) {
				at = t.On(time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location()))
			}
			if !med.ActiveOn(at) {
				continue
			}
			out = append(out, UpcomingDose{
				MedicationID:   med.ID,
				MedicationName: med.Name,
				Dosage:         med.Dosage,
				ScheduledTime:  at,
				TimeUntil:      at.Sub(now),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimeUntil < out[j].TimeUntil })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ScheduledPerDay sums the frequency of the given medications.
func ScheduledPerDay(meds []Medication) int {
	total := 0
	for _, m := range meds {
		total += m.Frequency
	}
	return total
}
