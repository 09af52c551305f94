package tracker

import (
	"fmt"
	"time"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// DailyLimitError reports a taken log rejected because the medication already
// has Frequency taken logs today.
type DailyLimitError struct {
	MedicationID   string
	MedicationName string
	Frequency      int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("already logged all %d doses for %s today", e.Frequency, e.MedicationName)
}

func (e *DailyLimitError) Unwrap() error {
	return apperrors.ErrDailyLimit
}

// TakenOn counts taken logs for med on the calendar day of now.
func TakenOn(med Medication, logs []DoseLog, now time.Time) int {
	n := 0
	for _, l := range logs {
		if l.MedicationID == med.ID && l.Status == StatusTaken && sameDay(now, l.Timestamp) {
			n++
		}
	}
	return n
}

// CanLogTaken reports whether another taken dose fits under the daily cap.
// Missed and skipped logs are never capped.
func CanLogTaken(med Medication, logs []DoseLog, now time.Time) bool {
	return TakenOn(med, logs, now) < med.Frequency
}

// DayStatus summarizes a medication's progress for one day.
type DayStatus struct {
	Taken      int  `json:"taken"`
	Expected   int  `json:"expected"`
	CanLogMore bool `json:"canLogMore"`
}

// Remaining is how many taken doses are still allowed today.
func (s DayStatus) Remaining() int {
	if s.Taken >= s.Expected {
		return 0
	}
	return s.Expected - s.Taken
}

// TodayStatus reports taken against expected doses for the day of now.
func TodayStatus(med Medication, logs []DoseLog, now time.Time) DayStatus {
	taken := TakenOn(med, logs, now)
	return DayStatus{Taken: taken, Expected: med.Frequency, CanLogMore: taken < med.Frequency}
}
