package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoseLogs_AppendIsCopyOnWrite(t *testing.T) {
	var logs DoseLogs
	first := logs.Append(logAt("med_1", StatusTaken, testDay(8, 0, 0), 0))
	second := first.Append(logAt("med_1", StatusMissed, testDay(12, 0, 0), 0))

	assert.Len(t, logs, 0)
	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
}

func TestDoseLogs_Query(t *testing.T) {
	logs := DoseLogs{
		logAt("med_1", StatusTaken, testDay(8, 0, 0), 0),
		logAt("med_2", StatusTaken, testDay(9, 0, 0), 0),
		logAt("med_1", StatusMissed, testDay(8, 0, 0).AddDate(0, 0, -1), 0),
	}
	logs[1].ProfileID = "kid"

	assert.Len(t, logs.Query(ForProfile(DefaultProfileID)), 2)
	assert.Equal(t, 1, logs.Count(ForMedication("med_1"), WithStatus(StatusTaken)))
	assert.Equal(t, 2, logs.Count(OnDay(testDay(0, 0, 0))))
	assert.Equal(t, 1, logs.Count(Between(testDay(8, 30, 0), testDay(23, 0, 0))))
	assert.Equal(t, 3, logs.Count(Between(testDay(0, 0, 0).AddDate(0, 0, -1), testDay(0, 0, 0).AddDate(0, 0, 2))))
	assert.Nil(t, logs.Query(ForMedication("none")))
}

func TestDoseLogs_Last(t *testing.T) {
	logs := DoseLogs{
		logAt("a", StatusTaken, testDay(8, 0, 0), 0),
		logAt("b", StatusTaken, testDay(9, 0, 0), 0),
		logAt("c", StatusTaken, testDay(10, 0, 0), 0),
	}

	last := logs.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, "c", last[0].MedicationID)
	assert.Equal(t, "b", last[1].MedicationID)
	assert.Len(t, logs.Last(10), 3)
	assert.Empty(t, DoseLogs{}.Last(5))
	assert.Empty(t, logs.Last(-1))
}

func TestTodayStatus(t *testing.T) {
	med := medAt("08:00", "20:00")
	logs := []DoseLog{
		logAt(med.ID, StatusTaken, testDay(8, 0, 0), 0),
		logAt(med.ID, StatusMissed, testDay(20, 0, 0), 0),
		logAt(med.ID, StatusTaken, testDay(8, 0, 0).AddDate(0, 0, -1), 0),
	}

	status := TodayStatus(med, logs, testDay(21, 0, 0))
	assert.Equal(t, DayStatus{Taken: 1, Expected: 2, CanLogMore: true}, status)
	assert.Equal(t, 1, status.Remaining())
	assert.True(t, CanLogTaken(med, logs, testDay(21, 0, 0)))

	logs = append(logs, logAt(med.ID, StatusTaken, testDay(20, 5, 0), 0))
	assert.False(t, CanLogTaken(med, logs, testDay(21, 0, 0)))
	assert.Zero(t, TodayStatus(med, logs, testDay(21, 0, 0)).Remaining())
}
