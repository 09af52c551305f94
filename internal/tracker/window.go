package tracker

import "time"

const (
	// EarlyWindow is how long before a dose time logging opens.
	EarlyWindow = 15 * time.Minute
	// LateWindow is how long after a dose time logging stays open.
	LateWindow = 4 * time.Hour
	// GraceWindow is how long after a dose time a log still counts as on time.
	GraceWindow = 15 * time.Minute
)

// WindowResult describes whether a dose may be logged at a given instant.
type WindowResult struct {
	Eligible    bool       `json:"eligible"`
	IsLate      bool       `json:"isLate"`
	MinutesLate int        `json:"minutesLate"`
	Matched     *TimeOfDay `json:"matchedTime"`
}

// HoursLate is MinutesLate in whole hours.
func (r WindowResult) HoursLate() int {
	return r.MinutesLate / 60
}

// Evaluate scans the medication's dose times in stored order and returns the
// first window containing now. Windows are computed in minutes of the day and
// do not wrap past midnight: a 23:50 dose closes at 23:59 today and is not
// reachable at 00:30 the next morning.
func Evaluate(med Medication, now time.Time) WindowResult {
	current := now.Hour()*60 + now.Minute()
	early := int(EarlyWindow / time.Minute)
	late := int(LateWindow / time.Minute)
	grace := int(GraceWindow / time.Minute)

	for i := range med.Times {
		t := med.Times[i]
		dose := t.Minutes()
		if current < dose-early || current > dose+late {
			continue
		}
		matched := t
		res := WindowResult{Eligible: true, Matched: &matched}
		if current > dose+grace {
			res.IsLate = true
			res.MinutesLate = current - dose
		}
		return res
	}
	return WindowResult{}
}

// NextDoseTime returns the first dose time later than now today, falling back
// to the first configured time (tomorrow's first dose).
func NextDoseTime(med Medication, now time.Time) (TimeOfDay, bool) {
	if len(med.Times) == 0 {
		return TimeOfDay{}, false
	}
	current := now.Hour()*60 + now.Minute()
	for _, t := range med.Times {
		if t.Minutes() > current {
			return t, true
		}
	}
	return med.Times[0], true
}

// PointsPreview is what logging a taken dose now would earn before bonuses.
func PointsPreview(res WindowResult) int {
	if res.IsLate {
		return BasePoints
	}
	return BasePoints + OnTimePoints
}
