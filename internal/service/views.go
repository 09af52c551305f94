package service

import (
	"sort"
	"time"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/tracker"
)

const (
	dashboardRecent = 5
	rewardsRecent   = 10
)

// MedicationStatus is a medication with today's logging state. Active is
// false outside the course's start and end dates.
type MedicationStatus struct {
	tracker.Medication
	Today         tracker.DayStatus    `json:"today"`
	Active        bool                 `json:"active"`
	Window        tracker.WindowResult `json:"window"`
	NextDose      string               `json:"nextDose,omitempty"`
	PointsPreview int                  `json:"pointsPreview"`
}

func statusOf(med tracker.Medication, logs tracker.DoseLogs, now time.Time) MedicationStatus {
	active := med.ActiveOn(now)
	window := tracker.Evaluate(med, now)
	if !active {
		window = tracker.WindowResult{}
	}
	st := MedicationStatus{
		Medication: med,
		Today:      tracker.TodayStatus(med, logs, now),
		Active:     active,
		Window:     window,
	}
	if next, ok := tracker.NextDoseTime(med, now); ok {
		st.NextDose = next.String()
	}
	if window.Eligible {
		st.PointsPreview = tracker.PointsPreview(window)
	}
	return st
}

// Medications lists the active profile's medications with their status.
func (t *Tracker) Medications() []MedicationStatus {
	s := t.State()
	now := t.Now()
	meds := s.ProfileMedications(s.ActiveProfile().ID)
	out := make([]MedicationStatus, 0, len(meds))
	for _, med := range meds {
		out = append(out, statusOf(med, s.Logs, now))
	}
	return out
}

// Window evaluates one medication at the current time.
func (t *Tracker) Window(medicationID string) (MedicationStatus, error) {
	s := t.State()
	med, ok := s.Medication(medicationID)
	if !ok {
		return MedicationStatus{}, apperrors.NotFound("medication", medicationID)
	}
	return statusOf(med, s.Logs, t.Now()), nil
}

// LogFilter narrows the log listing.
type LogFilter struct {
	MedicationID string
	Status       tracker.DoseStatus
	// Days keeps the logs of the last Days calendar days; 0 keeps all.
	Days int
}

// Logs returns the active profile's logs newest first.
func (t *Tracker) Logs(f LogFilter) []tracker.DoseLog {
	s := t.State()
	now := t.Now()
	preds := []tracker.Predicate{tracker.ForProfile(s.ActiveProfile().ID)}
	if f.MedicationID != "" {
		preds = append(preds, tracker.ForMedication(f.MedicationID))
	}
	if f.Status != "" {
		preds = append(preds, tracker.WithStatus(f.Status))
	}
	if f.Days > 0 {
		from := time.Date(now.Year(), now.Month(), now.Day()-f.Days+1, 0, 0, 0, 0, now.Location())
		preds = append(preds, tracker.Between(from, time.Time{}))
	}
	matched := tracker.DoseLogs(s.Logs.Query(preds...))
	return matched.Last(len(matched))
}

// Upcoming lists the next dose times of the active profile.
func (t *Tracker) Upcoming() []tracker.UpcomingDose {
	return upcomingOf(t.State(), t.Now(), t.opts.UpcomingLimit)
}

func upcomingOf(s tracker.State, now time.Time, limit int) []tracker.UpcomingDose {
	out := tracker.Upcoming(s.Medications, s.ActiveProfile().ID, now, limit)
	if out == nil {
		out = []tracker.UpcomingDose{}
	}
	return out
}

// Analytics projects the active profile's adherence report.
func (t *Tracker) Analytics() tracker.Report {
	s := t.State()
	id := s.ActiveProfile().ID
	return tracker.Analyze(s.ProfileMedications(id), s.ProfileLogs(id), t.Now())
}

// AchievementStatus is a catalog badge with its unlock state.
type AchievementStatus struct {
	tracker.AchievementInfo
	Unlocked bool `json:"unlocked"`
}

// RewardsCenter is the rewards screen.
type RewardsCenter struct {
	tracker.RewardsState
	LevelTitle     string              `json:"levelTitle"`
	Progress       int                 `json:"progressToNextLevel"`
	PointsNeeded   int                 `json:"pointsNeeded"`
	TakenCount     int                 `json:"totalTaken"`
	OnTimeCount    int                 `json:"onTimeTaken"`
	Badges         []AchievementStatus `json:"badges"`
	RecentActivity []tracker.DoseLog   `json:"recentActivity"`
}

// Rewards builds the rewards center. Points are per user; the counts cover
// every profile.
func (t *Tracker) Rewards() RewardsCenter {
	s := t.State()
	r := s.Rewards
	rc := RewardsCenter{
		RewardsState:   r,
		LevelTitle:     tracker.LevelTitle(r.Level),
		Progress:       r.ProgressToNextLevel(),
		PointsNeeded:   r.PointsNeeded(),
		TakenCount:     s.Logs.Count(tracker.WithStatus(tracker.StatusTaken)),
		RecentActivity: s.Logs.Last(rewardsRecent),
	}
	rc.OnTimeCount = s.Logs.Count(tracker.WithStatus(tracker.StatusTaken), func(l tracker.DoseLog) bool { return !l.IsLate })
	for _, info := range tracker.Catalog {
		rc.Badges = append(rc.Badges, AchievementStatus{AchievementInfo: info, Unlocked: r.Has(info.Key)})
	}
	return rc
}

// ProfileView is a profile with its derived age.
type ProfileView struct {
	tracker.Profile
	Age         *int `json:"age,omitempty"`
	Medications int  `json:"medicationCount"`
}

// Profiles lists every profile, the default first.
func (t *Tracker) Profiles() []ProfileView {
	s := t.State()
	now := t.Now()
	out := make([]ProfileView, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		v := ProfileView{Profile: p, Medications: len(s.ProfileMedications(p.ID))}
		if age := p.Age(now); age >= 0 {
			v.Age = &age
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID == tracker.DefaultProfileID && out[j].ID != tracker.DefaultProfileID
	})
	return out
}

// Dashboard is the landing screen summary.
type Dashboard struct {
	Profile         tracker.Profile        `json:"profile"`
	Medications     int                    `json:"medications"`
	ScheduledPerDay int                    `json:"scheduledPerDay"`
	Logs            int                    `json:"logs"`
	Points          int                    `json:"points"`
	Level           int                    `json:"level"`
	Streak          int                    `json:"streak"`
	Upcoming        []tracker.UpcomingDose `json:"upcoming"`
	RecentActivity  []tracker.DoseLog      `json:"recentActivity"`
}

// Dashboard builds the quick stats of the active profile.
func (t *Tracker) Dashboard() Dashboard {
	s := t.State()
	p := s.ActiveProfile()
	meds := s.ProfileMedications(p.ID)
	logs := s.ProfileLogs(p.ID)
	return Dashboard{
		Profile:         p,
		Medications:     len(meds),
		ScheduledPerDay: tracker.ScheduledPerDay(meds),
		Logs:            len(logs),
		Points:          s.Rewards.Points,
		Level:           s.Rewards.Level,
		Streak:          s.Rewards.Streak,
		Upcoming:        upcomingOf(s, t.Now(), t.opts.UpcomingLimit),
		RecentActivity:  logs.Last(dashboardRecent),
	}
}

// ExportData is what a report of the active profile is built from.
type ExportData struct {
	Profile     tracker.Profile
	Medications []tracker.Medication
	Logs        []tracker.DoseLog
}

// Export collects the active profile's data for a report.
func (t *Tracker) Export() ExportData {
	s := t.State()
	p := s.ActiveProfile()
	return ExportData{Profile: p, Medications: s.ProfileMedications(p.ID), Logs: s.ProfileLogs(p.ID)}
}
