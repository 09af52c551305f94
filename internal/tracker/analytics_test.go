package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logAt(medID string, status DoseStatus, ts time.Time, minutesLate int) DoseLog {
	return DoseLog{
		ID:           NewID(),
		MedicationID: medID,
		ProfileID:    DefaultProfileID,
		Status:       status,
		Timestamp:    ts,
		IsLate:       minutesLate > 0,
		MinutesLate:  minutesLate,
	}
}

func TestAnalyze_Empty(t *testing.T) {
	now := testDay(12, 0, 0)
	r := Analyze(nil, nil, now)

	require.Len(t, r.Weekly, 7)
	for _, d := range r.Weekly {
		assert.Zero(t, d.Percent)
		assert.Zero(t, d.Expected)
	}
	assert.Empty(t, r.Medications)
	assert.NotNil(t, r.Categories)
	assert.Empty(t, r.Categories)
	assert.Equal(t, Overall{}, r.Overall)
	assert.Equal(t, Lateness{}, r.Lateness)

	// January 1 through March 31
	require.Len(t, r.Heatmap, 90)
	assert.Equal(t, "2025-01-01", r.Heatmap[0].Date)
	assert.Equal(t, "2025-03-31", r.Heatmap[89].Date)
	for _, d := range r.Heatmap {
		assert.Zero(t, d.Intensity)
	}
}

func TestAnalyze_MedicationWithoutLogs(t *testing.T) {
	r := Analyze([]Medication{medAt("08:00")}, nil, testDay(12, 0, 0))
	require.Len(t, r.Medications, 1)
	assert.Zero(t, r.Medications[0].Percent)
	assert.Zero(t, r.Medications[0].Total)
	assert.Equal(t, 1, r.Weekly[6].Expected)
	assert.Zero(t, r.Weekly[6].Percent)
}

func TestWeeklyAdherence(t *testing.T) {
	a := medAt("08:00", "20:00")
	b := medAt("09:00")
	b.ID, b.StartDate = "med_2", "2025-03-11"
	now := testDay(22, 0, 0)

	logs := []DoseLog{
		logAt(a.ID, StatusTaken, testDay(8, 0, 0), 0),
		logAt(a.ID, StatusTaken, testDay(20, 0, 0), 0),
		logAt(b.ID, StatusMissed, testDay(10, 0, 0), 0),
		logAt(a.ID, StatusTaken, testDay(8, 0, 0).AddDate(0, 0, -1), 0),
	}

	week := WeeklyAdherence([]Medication{a, b}, logs, now)
	require.Len(t, week, 7)
	assert.Equal(t, "2025-03-06", week[0].Date)
	assert.Equal(t, "Wed", week[6].Weekday)

	today := week[6]
	assert.Equal(t, 2, today.Taken)
	assert.Equal(t, 3, today.Expected)
	assert.Equal(t, 67, today.Percent)

	yesterday := week[5]
	assert.Equal(t, 3, yesterday.Expected)
	assert.Equal(t, 33, yesterday.Percent)

	assert.Equal(t, 2, week[4].Expected)
	assert.Zero(t, week[4].Percent)
}

func TestBreakdowns(t *testing.T) {
	a := medAt("08:00")
	b := medAt("09:00")
	b.ID, b.Name, b.Category = "med_2", "Vitamin D", CategorySupplement
	c := medAt("10:00")
	c.ID, c.Name = "med_3", "Ibuprofen"

	logs := []DoseLog{
		logAt(a.ID, StatusTaken, testDay(8, 0, 0), 0),
		logAt(a.ID, StatusMissed, testDay(8, 0, 0).AddDate(0, 0, -1), 0),
		logAt(a.ID, StatusSkipped, testDay(8, 0, 0).AddDate(0, 0, -2), 0),
		logAt(b.ID, StatusTaken, testDay(9, 30, 0), 30),
		logAt(c.ID, StatusTaken, testDay(11, 0, 0), 60),
		logAt(c.ID, StatusTaken, testDay(10, 0, 0).AddDate(0, 0, -1), 0),
	}

	meds := MedicationBreakdown([]Medication{a, b, c}, logs)
	require.Len(t, meds, 3)
	assert.Equal(t, MedicationAdherence{
		MedicationID: a.ID, Name: "Aspirin", Category: CategoryOverTheCounter,
		Taken: 1, Missed: 1, Skipped: 1, Total: 3, Percent: 33,
	}, meds[0])
	assert.Equal(t, 100, meds[1].Percent)

	cats := CategoryBreakdown([]Medication{a, b, c}, logs)
	require.Len(t, cats, 2)
	assert.Equal(t, CategoryOverTheCounter, cats[0].Category)
	assert.Equal(t, 2, cats[0].Count)
	assert.Equal(t, 3, cats[0].Taken)
	assert.Equal(t, 5, cats[0].Total)
	assert.Equal(t, 60, cats[0].Percent)
	assert.Equal(t, CategorySupplement, cats[1].Category)

	overall := OverallAdherence(logs)
	assert.Equal(t, Overall{TotalLogs: 6, Taken: 4, Missed: 1, Skipped: 1, Percent: 67}, overall)

	late := LatenessSummary(logs)
	assert.Equal(t, 2, late.LateCount)
	assert.Equal(t, 2, late.OnTimeCount)
	assert.Equal(t, 45, late.AverageMinutesLate)
	assert.Equal(t, 45, late.MedianMinutesLate)
}

func TestHeatmap(t *testing.T) {
	a := medAt("08:00", "12:00", "18:00", "22:00")
	a.StartDate = "2025-01-02"
	now := testDay(23, 0, 0)
	logs := []DoseLog{
		logAt(a.ID, StatusTaken, testDay(8, 0, 0), 0),
		logAt(a.ID, StatusTaken, testDay(12, 0, 0), 0),
		logAt(a.ID, StatusTaken, testDay(18, 0, 0), 0),
		logAt(a.ID, StatusMissed, testDay(22, 0, 0), 0),
		logAt(a.ID, StatusTaken, testDay(8, 0, 0).AddDate(0, 0, -1), 0),
	}

	cells := Heatmap([]Medication{a}, logs, now)
	byDate := make(map[string]HeatmapDay, len(cells))
	for _, c := range cells {
		byDate[c.Date] = c
	}

	today := byDate["2025-03-12"]
	assert.Equal(t, 75, today.Percent)
	assert.Equal(t, 3, today.Intensity)
	assert.True(t, today.HasMissed)

	yesterday := byDate["2025-03-11"]
	assert.Equal(t, 25, yesterday.Percent)
	assert.Equal(t, 1, yesterday.Intensity)
	assert.False(t, yesterday.HasMissed)

	// before the course started nothing is expected
	assert.Zero(t, byDate["2025-01-01"].Expected)
	assert.Equal(t, 4, byDate["2025-01-02"].Expected)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(3, 0))
	assert.Equal(t, 50, Percent(1, 2))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 100, Percent(4, 4))
}
