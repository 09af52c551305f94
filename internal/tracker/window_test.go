package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDay(h, m, s int) time.Time {
	return time.Date(2025, time.March, 12, h, m, s, 0, time.UTC)
}

func medAt(times ...string) Medication {
	med := Medication{
		ID:        "med_1",
		Name:      "Aspirin",
		Dosage:    "100mg",
		Frequency: len(times),
		Category:  CategoryOverTheCounter,
		ProfileID: DefaultProfileID,
		StartDate: "2025-01-01",
	}
	for _, t := range times {
		med.Times = append(med.Times, MustTime(t))
	}
	return med
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"08:00", TimeOfDay{8, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"00:00", TimeOfDay{0, 0}, false},
		{"24:00", TimeOfDay{}, true},
		{"8:00", TimeOfDay{}, true},
		{"08:60", TimeOfDay{}, true},
		{"0800", TimeOfDay{}, true},
		{"ab:cd", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestEvaluate_Boundaries(t *testing.T) {
	med := medAt("09:00")

	tests := []struct {
		name        string
		now         time.Time
		eligible    bool
		late        bool
		minutesLate int
	}{
		{"one minute before opening", testDay(8, 44, 0), false, false, 0},
		{"opens fifteen minutes early", testDay(8, 45, 0), true, false, 0},
		{"exactly on time", testDay(9, 0, 0), true, false, 0},
		{"end of grace", testDay(9, 15, 0), true, false, 0},
		{"first late minute", testDay(9, 16, 0), true, true, 16},
		{"last late minute", testDay(13, 0, 0), true, true, 240},
		{"window closed", testDay(13, 1, 0), false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(med, tt.now)
			assert.Equal(t, tt.eligible, res.Eligible)
			assert.Equal(t, tt.late, res.IsLate)
			assert.Equal(t, tt.minutesLate, res.MinutesLate)
			if tt.eligible {
				require.NotNil(t, res.Matched)
				assert.Equal(t, "09:00", res.Matched.String())
			} else {
				assert.Nil(t, res.Matched)
			}
		})
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	med := medAt("08:00", "10:00")

	res := Evaluate(med, testDay(9, 50, 0))
	require.True(t, res.Eligible)
	assert.Equal(t, "08:00", res.Matched.String())
	assert.True(t, res.IsLate)
	assert.Equal(t, 110, res.MinutesLate)
	assert.Equal(t, 1, res.HoursLate())
}

func TestEvaluate_NoWrapPastMidnight(t *testing.T) {
	med := medAt("23:50")

	assert.True(t, Evaluate(med, testDay(23, 59, 0)).Eligible)
	assert.False(t, Evaluate(med, testDay(0, 30, 0)).Eligible)
}

func TestNextDoseTime(t *testing.T) {
	med := medAt("08:00", "20:00")

	next, ok := NextDoseTime(med, testDay(9, 0, 0))
	require.True(t, ok)
	assert.Equal(t, "20:00", next.String())

	next, ok = NextDoseTime(med, testDay(21, 0, 0))
	require.True(t, ok)
	assert.Equal(t, "08:00", next.String())

	_, ok = NextDoseTime(Medication{}, testDay(9, 0, 0))
	assert.False(t, ok)
}

func TestPointsPreview(t *testing.T) {
	assert.Equal(t, 15, PointsPreview(WindowResult{Eligible: true}))
	assert.Equal(t, 10, PointsPreview(WindowResult{Eligible: true, IsLate: true, MinutesLate: 30}))
}
