package tracker

import (
	"strings"
	"time"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/security"
)

// State is the complete per-user tracker state. Reducers take a State by
// value and return the replacement; on error the receiver is unchanged and
// the zero State is returned.
type State struct {
	Medications []Medication `json:"medications"`
	Logs        DoseLogs     `json:"doseLogs"`
	Profiles    []Profile    `json:"profiles"`
	Rewards     RewardsState `json:"rewards"`
}

// NewState seeds a fresh user with the default profile.
func NewState(displayName string) State {
	return State{
		Medications: []Medication{},
		Logs:        DoseLogs{},
		Profiles:    []Profile{DefaultProfile(displayName)},
		Rewards:     NewRewards(),
	}
}

// Normalize repairs loaded state: the default profile exists, exactly one
// profile is active and the level matches the points.
func (s State) Normalize() State {
	next := s
	if next.Medications == nil {
		next.Medications = []Medication{}
	}
	if next.Logs == nil {
		next.Logs = DoseLogs{}
	}
	next.Profiles = append([]Profile(nil), s.Profiles...)
	if _, ok := next.profileIndex(DefaultProfileID); !ok {
		def := DefaultProfile("")
		def.Active = false
		next.Profiles = append([]Profile{def}, next.Profiles...)
	}
	active := -1
	for i := range next.Profiles {
		if next.Profiles[i].Active && active < 0 {
			active = i
			continue
		}
		next.Profiles[i].Active = false
	}
	if active < 0 {
		i, _ := next.profileIndex(DefaultProfileID)
		next.Profiles[i].Active = true
	}
	if next.Rewards.Achievements == nil {
		next.Rewards.Achievements = []Achievement{}
	}
	next.Rewards.Level = LevelFor(next.Rewards.Points)
	return next
}

// ActiveProfile returns the selected profile.
func (s State) ActiveProfile() Profile {
	for _, p := range s.Profiles {
		if p.Active {
			return p
		}
	}
	return DefaultProfile("")
}

// Profile looks up a profile by id.
func (s State) Profile(id string) (Profile, bool) {
	i, ok := s.profileIndex(id)
	if !ok {
		return Profile{}, false
	}
	return s.Profiles[i], true
}

// Medication looks up a medication by id.
func (s State) Medication(id string) (Medication, bool) {
	for _, m := range s.Medications {
		if m.ID == id {
			return m, true
		}
	}
	return Medication{}, false
}

// ProfileMedications returns the medications owned by profileID.
func (s State) ProfileMedications(profileID string) []Medication {
	out := []Medication{}
	for _, m := range s.Medications {
		if m.ProfileID == profileID {
			out = append(out, m)
		}
	}
	return out
}

// ProfileLogs returns the dose logs of profileID in insertion order.
func (s State) ProfileLogs(profileID string) DoseLogs {
	out := DoseLogs(s.Logs.Query(ForProfile(profileID)))
	if out == nil {
		out = DoseLogs{}
	}
	return out
}

func (s State) profileIndex(id string) (int, bool) {
	for i, p := range s.Profiles {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

// MedicationInput is the add-medication form.
type MedicationInput struct {
	Name         string   `json:"name"`
	Dosage       string   `json:"dosage"`
	Frequency    int      `json:"frequency"`
	Times        []string `json:"times"`
	Category     Category `json:"category"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// BuildMedication validates in and returns the medication it describes.
// Missing times are filled from DefaultTimes; missing start date is today.
func BuildMedication(in MedicationInput, id, profileID string, now time.Time) (Medication, error) {
	name := strings.TrimSpace(in.Name)
	dosage := strings.TrimSpace(in.Dosage)
	if name == "" || dosage == "" || in.Category == "" {
		return Medication{}, apperrors.Validation("name, dosage and category are required")
	}
	if !in.Category.Valid() {
		return Medication{}, apperrors.Validation("unknown category %q", in.Category)
	}
	if err := security.ShortText.CheckAll("name", name, "dosage", dosage); err != nil {
		return Medication{}, err
	}
	if err := security.LongText.Check("instructions", in.Instructions); err != nil {
		return Medication{}, err
	}
	if in.Frequency < 1 || in.Frequency > MaxFrequency {
		return Medication{}, apperrors.Validation("frequency must be between 1 and %d", MaxFrequency)
	}

	var times []TimeOfDay
	if len(in.Times) == 0 {
		times = append(times, DefaultTimes[:in.Frequency]...)
	} else {
		if len(in.Times) != in.Frequency {
			return Medication{}, apperrors.Validation("expected %d dose times, got %d", in.Frequency, len(in.Times))
		}
		seen := make(map[TimeOfDay]bool)
		for _, raw := range in.Times {
			t, err := ParseTimeOfDay(raw)
			if err != nil {
				return Medication{}, apperrors.Validation("%v", err)
			}
			if seen[t] {
				return Medication{}, apperrors.Validation("dose time %s listed twice", t)
			}
			seen[t] = true
			times = append(times, t)
		}
	}

	start := strings.TrimSpace(in.StartDate)
	if start == "" {
		start = DayOf(now)
	} else if _, err := ParseDay(start, now.Location()); err != nil {
		return Medication{}, apperrors.Validation("invalid start date %q", start)
	}
	end := strings.TrimSpace(in.EndDate)
	if end != "" {
		if _, err := ParseDay(end, now.Location()); err != nil {
			return Medication{}, apperrors.Validation("invalid end date %q", end)
		}
		if end < start {
			return Medication{}, apperrors.Validation("end date %s is before start date %s", end, start)
		}
	}

	return Medication{
		ID:           id,
		Name:         name,
		Dosage:       dosage,
		Frequency:    in.Frequency,
		Times:        times,
		Category:     in.Category,
		ProfileID:    profileID,
		StartDate:    start,
		EndDate:      end,
		Instructions: strings.TrimSpace(in.Instructions),
	}, nil
}

// AddMedication adds a medication to the active profile.
func (s State) AddMedication(in MedicationInput, id string, now time.Time) (State, Medication, error) {
	med, err := BuildMedication(in, id, s.ActiveProfile().ID, now)
	if err != nil {
		return State{}, Medication{}, err
	}
	next := s
	next.Medications = make([]Medication, len(s.Medications), len(s.Medications)+1)
	copy(next.Medications, s.Medications)
	next.Medications = append(next.Medications, med)
	return next, med, nil
}

// DoseRequest is a logging action.
type DoseRequest struct {
	MedicationID string     `json:"medicationId"`
	Status       DoseStatus `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	// AllowOutsideWindow accepts the log even when no dose window is open.
	AllowOutsideWindow bool `json:"-"`
}

// DoseOutcome is what a successful LogDose produced.
type DoseOutcome struct {
	Log    DoseLog      `json:"log"`
	Window WindowResult `json:"window"`
	// Rewards is set only for taken doses.
	Rewards *FoldResult `json:"rewards,omitempty"`
}

// LogDose guards, appends and, for taken doses, folds the log into rewards.
func (s State) LogDose(req DoseRequest, id string, now time.Time) (State, DoseOutcome, error) {
	med, ok := s.Medication(req.MedicationID)
	if !ok {
		return State{}, DoseOutcome{}, apperrors.NotFound("medication", req.MedicationID)
	}
	if !req.Status.Valid() {
		return State{}, DoseOutcome{}, apperrors.Validation("unknown dose status %q", req.Status)
	}
	if err := security.LongText.Check("notes", req.Notes); err != nil {
		return State{}, DoseOutcome{}, err
	}

	if !med.ActiveOn(now) {
		return State{}, DoseOutcome{}, apperrors.Validation("%s is not scheduled on %s", med.Name, DayOf(now))
	}

	window := Evaluate(med, now)
	if !window.Eligible && !req.AllowOutsideWindow {
		return State{}, DoseOutcome{}, apperrors.Validation("no dose of %s is due now", med.Name)
	}

	switch req.Status {
	case StatusTaken:
		if !CanLogTaken(med, s.Logs, now) {
			return State{}, DoseOutcome{}, &DailyLimitError{
				MedicationID:   med.ID,
				MedicationName: med.Name,
				Frequency:      med.Frequency,
			}
		}
	case StatusMissed, StatusSkipped:
	}

	log := DoseLog{
		ID:            id,
		MedicationID:  med.ID,
		ProfileID:     med.ProfileID,
		Status:        req.Status,
		ScheduledTime: now,
		Notes:         strings.TrimSpace(req.Notes),
		Timestamp:     now,
		IsLate:        window.IsLate,
		MinutesLate:   window.MinutesLate,
	}
	if window.Matched != nil {
		log.ScheduledTime = window.Matched.On(now)
	}
	if req.Status == StatusTaken {
		actual := now
		log.ActualTime = &actual
	}

	next := s
	next.Logs = s.Logs.Append(log)
	out := DoseOutcome{Log: log, Window: window}
	if req.Status == StatusTaken {
		folded := Fold(s.Rewards, log)
		next.Rewards = folded.State
		out.Rewards = &folded
	}
	return next, out, nil
}

// ProfileInput is the add/edit profile form.
type ProfileInput struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	DateOfBirth  string `json:"dateOfBirth,omitempty"`
}

func (in ProfileInput) validate() (ProfileInput, error) {
	out := ProfileInput{
		Name:         strings.TrimSpace(in.Name),
		Relationship: strings.TrimSpace(in.Relationship),
		DateOfBirth:  strings.TrimSpace(in.DateOfBirth),
	}
	if out.Name == "" || out.Relationship == "" {
		return ProfileInput{}, apperrors.Validation("name and relationship are required")
	}
	if err := security.ShortText.CheckAll("name", out.Name, "relationship", out.Relationship); err != nil {
		return ProfileInput{}, err
	}
	if out.DateOfBirth != "" {
		if _, err := time.Parse(dateLayout, out.DateOfBirth); err != nil {
			return ProfileInput{}, apperrors.Validation("invalid date of birth %q", out.DateOfBirth)
		}
	}
	return out, nil
}

// AddProfile appends a new, unselected profile.
func (s State) AddProfile(in ProfileInput, id string) (State, Profile, error) {
	v, err := in.validate()
	if err != nil {
		return State{}, Profile{}, err
	}
	p := Profile{ID: id, Name: v.Name, Relationship: v.Relationship, DateOfBirth: v.DateOfBirth}
	next := s
	next.Profiles = append(append([]Profile(nil), s.Profiles...), p)
	return next, p, nil
}

// UpdateProfile edits name, relationship and date of birth.
func (s State) UpdateProfile(id string, in ProfileInput) (State, Profile, error) {
	i, ok := s.profileIndex(id)
	if !ok {
		return State{}, Profile{}, apperrors.NotFound("profile", id)
	}
	v, err := in.validate()
	if err != nil {
		return State{}, Profile{}, err
	}
	next := s
	next.Profiles = append([]Profile(nil), s.Profiles...)
	next.Profiles[i].Name = v.Name
	next.Profiles[i].Relationship = v.Relationship
	next.Profiles[i].DateOfBirth = v.DateOfBirth
	return next, next.Profiles[i], nil
}

// DeleteProfile removes a profile. The default profile and the active profile
// are guarded.
func (s State) DeleteProfile(id string) (State, error) {
	if id == DefaultProfileID {
		return State{}, apperrors.New(apperrors.CodeProfileGuard, "cannot delete the default profile")
	}
	i, ok := s.profileIndex(id)
	if !ok {
		return State{}, apperrors.NotFound("profile", id)
	}
	if s.Profiles[i].Active {
		return State{}, apperrors.New(apperrors.CodeProfileGuard, "cannot delete the currently active profile")
	}
	next := s
	next.Profiles = make([]Profile, 0, len(s.Profiles)-1)
	next.Profiles = append(next.Profiles, s.Profiles[:i]...)
	next.Profiles = append(next.Profiles, s.Profiles[i+1:]...)
	return next, nil
}

// SelectProfile makes id the single active profile.
func (s State) SelectProfile(id string) (State, error) {
	if _, ok := s.profileIndex(id); !ok {
		return State{}, apperrors.NotFound("profile", id)
	}
	next := s
	next.Profiles = append([]Profile(nil), s.Profiles...)
	for i := range next.Profiles {
		next.Profiles[i].Active = next.Profiles[i].ID == id
	}
	return next, nil
}

// RenameDefault sets the default profile's name, used when the identity
// provider supplies a display name.
func (s State) RenameDefault(name string) State {
	name = strings.TrimSpace(name)
	i, ok := s.profileIndex(DefaultProfileID)
	if !ok || name == "" {
		return s
	}
	next := s
	next.Profiles = append([]Profile(nil), s.Profiles...)
	next.Profiles[i].Name = name
	return next
}
