// Package tracker holds the medication-adherence core: entity types, the dose
// eligibility window, the rewards fold, the upcoming-dose scheduler and the
// analytics projections. Everything here is pure; callers own time and
// persistence.
package tracker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultProfileID is the reserved self profile; it can never be removed.
	DefaultProfileID = "default"

	// MaxFrequency bounds doses per day.
	MaxFrequency = 4

	dateLayout = "2006-01-02"
)

// DefaultTimes fill missing dose slots, in order, when a medication is added
// without explicit times.
var DefaultTimes = []TimeOfDay{{8, 0}, {12, 0}, {18, 0}, {22, 0}}

// DoseStatus is the outcome recorded for a dose.
type DoseStatus string

const (
	StatusTaken   DoseStatus = "taken"
	StatusMissed  DoseStatus = "missed"
	StatusSkipped DoseStatus = "skipped"
)

// Valid reports whether s is one of the three known statuses.
func (s DoseStatus) Valid() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Category classifies a medication.
type Category string

const (
	CategoryPrescription   Category = "Prescription"
	CategoryOverTheCounter Category = "Over-the-Counter"
	CategorySupplement     Category = "Vitamin/Supplement"
	CategoryHerbal         Category = "Herbal"
	CategoryEmergency      Category = "Emergency"
	CategoryAsNeeded       Category = "As Needed"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryPrescription,
	CategoryOverTheCounter,
	CategorySupplement,
	CategoryHerbal,
	CategoryEmergency,
	CategoryAsNeeded,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Relationships are the suggested profile relationship labels.
var Relationships = []string{
	"Self",
	"Spouse/Partner",
	"Child",
	"Parent",
	"Sibling",
	"Grandparent",
	"Grandchild",
	"Other Family",
	"Caregiver",
}

// TimeOfDay is a wall-clock dose time, encoded as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a strict "HH:MM" 24-hour string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// MustTime is ParseTimeOfDay for literals; it panics on malformed input.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns the instant of t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Medication is a scheduled medication owned by one profile.
type Medication struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Dosage       string      `json:"dosage"`
	Frequency    int         `json:"frequency"`
	Times        []TimeOfDay `json:"times"`
	Category     Category    `json:"category"`
	ProfileID    string      `json:"profileId"`
	StartDate    string      `json:"startDate"`
	EndDate      string      `json:"endDate,omitempty"`
	Instructions string      `json:"instructions,omitempty"`
}

// ActiveOn reports whether the course covers the calendar day of t.
func (m Medication) ActiveOn(t time.Time) bool {
	day := DayOf(t)
	if m.StartDate != "" && day < m.StartDate {
		return false
	}
	if m.EndDate != "" && day > m.EndDate {
		return false
	}
	return true
}

// DoseLog records one logging action. Logs are never mutated.
type DoseLog struct {
	ID            string     `json:"id"`
	MedicationID  string     `json:"medicationId"`
	ProfileID     string     `json:"profileId"`
	Status        DoseStatus `json:"status"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	ActualTime    *time.Time `json:"actualTime,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	IsLate        bool       `json:"isLate"`
	MinutesLate   int        `json:"minutesLate"`
}

// Profile is one tracked person.
type Profile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	DateOfBirth  string `json:"dateOfBirth,omitempty"`
	Active       bool   `json:"isActive"`
}

// Age returns whole years since DateOfBirth, or -1 when it is unset or invalid.
func (p Profile) Age(now time.Time) int {
	if p.DateOfBirth == "" {
		return -1
	}
	birth, err := time.ParseInLocation(dateLayout, p.DateOfBirth, now.Location())
	if err != nil {
		return -1
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// DefaultProfile is the self profile every user starts with.
func DefaultProfile(name string) Profile {
	if name == "" {
		name = "My Profile"
	}
	return Profile{ID: DefaultProfileID, Name: name, Relationship: "Self", Active: true}
}

// NewID returns a time-ordered unique identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// DayOf formats the calendar day of t in t's own location.
func DayOf(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDay parses a "YYYY-MM-DD" date at midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, loc)
}

func previousDay(day string) string {
	t, err := time.Parse(dateLayout, day)
	if err != nil {
		return ""
	}
	return DayOf(t.AddDate(0, 0, -1))
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
