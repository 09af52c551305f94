package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Error("New() returned nil")
	}
}

func TestDefault(t *testing.T) {
	m1 := Default()
	m2 := Default()

	if m1 != m2 {
		t.Error("Default() should return same instance")
	}
}

func TestRecordDose(t *testing.T) {
	m := New()
	m.RecordDose("taken")
	m.RecordDose("taken")
	m.RecordDose("missed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dosesLogged.WithLabelValues("taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dosesLogged.WithLabelValues("missed")))
}

func TestRecordPoints_IgnoresNonPositive(t *testing.T) {
	m := New()
	m.RecordPoints(65)
	m.RecordPoints(0)
	m.RecordPoints(-5)

	assert.Equal(t, 65.0, testutil.ToFloat64(m.pointsAwarded))
}

func TestTrackerGauge(t *testing.T) {
	m := New()
	m.TrackerOpened()
	m.TrackerOpened()
	m.TrackerClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.openTrackers))
}

func TestSnapshot(t *testing.T) {
	m := New()
	m.RecordRequest("GET", 200)
	m.RecordRequest("POST", 409)
	m.RecordDose("taken")
	m.RecordRejected("daily_limit")
	m.RecordAchievement("first-log")
	m.RecordNotification("dose_due")
	m.RecordSnapshotFailure("dose-logs")
	m.RecordPoints(65)
	m.TrackerOpened()
	m.IncrementActiveConnections()
	m.RecordResponseTime(20 * time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.RequestsTotal)
	assert.Equal(t, int64(1), s.DosesLogged["taken"])
	assert.Equal(t, int64(1), s.ActionsRejected["daily_limit"])
	assert.Equal(t, int64(1), s.Achievements["first-log"])
	assert.Equal(t, int64(1), s.Notifications["dose_due"])
	assert.Equal(t, int64(1), s.SnapshotFailures["dose-logs"])
	assert.Equal(t, int64(65), s.PointsAwarded)
	assert.Equal(t, int64(1), s.OpenTrackers)
	assert.Equal(t, int64(1), s.ActiveConnections)
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordDose("skipped")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `medtrack_doses_logged_total{status="skipped"} 1`))
}
