package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/clock"
	"github.com/gmsas95/medtrack/internal/config"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/export"
	"github.com/gmsas95/medtrack/internal/service"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/tracker"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{
			name:    "create app with version",
			version: "1.0.0",
		},
		{
			name:    "create app with dev version",
			version: "dev",
		},
		{
			name:    "create app with empty version",
			version: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := New(nil, nil, nil, tt.version)
			if app == nil {
				t.Fatal("expected app to be created, got nil")
			}
			if app.Version != tt.version {
				t.Errorf("expected version %q, got %q", tt.version, app.Version)
			}
			if app.Logger == nil {
				t.Error("expected a no-op logger when none is given")
			}
		})
	}
}

func TestTrackerOptions(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Tracker.SnoozeMinutes = 10
	cfg.Tracker.CelebrationSeconds = 4
	cfg.Tracker.EnforceWindow = false

	app := New(cfg, nil, zap.NewNop(), "test")
	opts := app.TrackerOptions(nil, clock.NewFake(time.Now()))

	assert.Equal(t, 10*time.Minute, opts.Snooze)
	assert.Equal(t, 4*time.Second, opts.Celebration)
	assert.Equal(t, cfg.Tracker.NotificationInterval, opts.Interval)
	assert.Equal(t, cfg.Tracker.UpcomingLimit, opts.UpcomingLimit)
	assert.False(t, opts.EnforceWindow)
	assert.Same(t, app.Metrics, opts.Metrics)
}

func seededApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Tracker.Timezone = "UTC"

	st, err := store.NewMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	user := &store.User{Email: "dana@example.com", DisplayName: "Dana", PasswordHash: "x"}
	require.NoError(t, st.CreateUser(user))

	app := New(cfg, st, zap.NewNop(), "test")

	clk := clock.NewFake(time.Date(2025, time.March, 12, 8, 5, 0, 0, time.UTC))
	opts := app.TrackerOptions(st, clk)
	opts.Interval = time.Hour
	trk, err := service.Open(context.Background(), user.ID, user.DisplayName, opts)
	require.NoError(t, err)

	added, err := trk.AddMedication(tracker.MedicationInput{
		Name:      "Aspirin",
		Dosage:    "100mg",
		Frequency: 1,
		Times:     []string{"08:00"},
		Category:  tracker.CategoryOverTheCounter,
		StartDate: "2025-01-01",
	})
	require.NoError(t, err)
	_, err = trk.LogDose(tracker.DoseRequest{MedicationID: added.Value.ID, Status: tracker.StatusTaken})
	require.NoError(t, err)
	trk.Close()

	return app
}

func TestRunExport_Stdout(t *testing.T) {
	app := seededApp(t)

	var out bytes.Buffer
	path, err := app.RunExport(context.Background(), ExportOptions{
		Email:  "Dana@Example.com",
		Format: export.FormatCSV,
		Range:  export.Range{Kind: export.RangeAll},
	}, &out)
	require.NoError(t, err)
	assert.Empty(t, path)

	csv := out.String()
	assert.Contains(t, csv, "Aspirin")
	assert.Contains(t, csv, "2025-03-12")
	assert.Contains(t, csv, "SUMMARY")
}

func TestRunExport_Directory(t *testing.T) {
	app := seededApp(t)
	dir := t.TempDir()

	path, err := app.RunExport(context.Background(), ExportOptions{
		Email:  "dana@example.com",
		Format: export.FormatXLSX,
		Range:  export.Range{Kind: export.RangeAll},
		Output: dir,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".xlsx"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRunExport_Errors(t *testing.T) {
	app := seededApp(t)

	_, err := app.RunExport(context.Background(), ExportOptions{
		Email:  "nobody@example.com",
		Format: export.FormatCSV,
		Range:  export.Range{Kind: export.RangeAll},
	}, &bytes.Buffer{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = app.RunExport(context.Background(), ExportOptions{
		Email:  "dana@example.com",
		Format: export.FormatCSV,
		Range:  export.Range{Kind: export.RangeCustom, Start: "2025-03-10"},
	}, &bytes.Buffer{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
