// Package service runs one live tracker per signed-in user: it owns the
// user's state, persists the collections each action changes and drives the
// in-app dose reminders.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/clock"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/notify"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/tracker"
)

// Options configure trackers.
type Options struct {
	Store         store.SnapshotStore
	Clock         clock.Clock
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	Interval      time.Duration
	Snooze        time.Duration
	UpcomingLimit int
	// EnforceWindow rejects dose logs when no dose window is open.
	EnforceWindow bool
	// Celebration is how long clients show the first-log celebration.
	Celebration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.New(time.Local)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Default()
	}
	if o.UpcomingLimit <= 0 {
		o.UpcomingLimit = tracker.DefaultUpcomingLimit
	}
	if o.Celebration <= 0 {
		o.Celebration = tracker.CelebrationPeriod * time.Second
	}
	return o
}

// Result is a successful action. Warnings list collections that could not be
// saved; the in-memory state already reflects the action.
type Result[T any] struct {
	Value    T        `json:"value"`
	Warnings []string `json:"warnings,omitempty"`
}

// Tracker serializes every action of one user.
type Tracker struct {
	userID  string
	opts    Options
	logger  *zap.Logger
	bus     *notify.Bus
	trigger *notify.Trigger

	mu     sync.Mutex
	state  tracker.State
	closed bool
}

// Open loads the user's collections and starts the reminder trigger. The
// trigger runs until ctx ends or Close is called.
func Open(ctx context.Context, userID, displayName string, opts Options) (*Tracker, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With(zap.String("user_id", userID))

	state, err := load(opts.Store, userID, displayName)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		userID: userID,
		opts:   opts,
		logger: logger,
		bus:    notify.NewBus(logger),
		state:  state,
	}
	t.trigger = notify.NewTrigger(t.reminderSource, t.bus, opts.Clock, logger).
		WithInterval(opts.Interval).
		WithSnooze(opts.Snooze).
		WithMetrics(opts.Metrics)
	if err := t.trigger.Start(ctx); err != nil {
		return nil, err
	}

	opts.Metrics.TrackerOpened()
	logger.Info("Tracker opened",
		zap.Int("medications", len(state.Medications)),
		zap.Int("logs", len(state.Logs)))
	return t, nil
}

func load(s store.SnapshotStore, userID, displayName string) (tracker.State, error) {
	state := tracker.NewState(displayName)
	if s == nil {
		return state, nil
	}

	targets := map[store.Collection]interface{}{
		store.CollectionMedications: &state.Medications,
		store.CollectionDoseLogs:    &state.Logs,
		store.CollectionProfiles:    &state.Profiles,
		store.CollectionRewards:     &state.Rewards,
	}
	for _, c := range store.Collections {
		data, err := s.LoadSnapshot(userID, c)
		if err != nil {
			return tracker.State{}, err
		}
		if data == nil {
			continue
		}
		if err := json.Unmarshal(data, targets[c]); err != nil {
			return tracker.State{}, apperrors.Wrap(err, apperrors.CodeStorage, "corrupt "+string(c)+" snapshot")
		}
	}

	state = state.Normalize()
	if def, ok := state.Profile(tracker.DefaultProfileID); ok && def.Name == tracker.DefaultProfile("").Name {
		state = state.RenameDefault(displayName)
	}
	return state, nil
}

// UserID returns the owner of the tracker.
func (t *Tracker) UserID() string {
	return t.userID
}

// Now is the tracker's current time.
func (t *Tracker) Now() time.Time {
	return t.opts.Clock.Now()
}

// State returns a copy of the current state.
func (t *Tracker) State() tracker.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close stops reminders and ends every subscription.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.trigger.Stop()
	t.bus.Close()
	t.opts.Metrics.TrackerClosed()
	t.logger.Info("Tracker closed")
}

// reminderSource feeds the trigger the active profile's medications and
// every log.
func (t *Tracker) reminderSource() ([]tracker.Medication, tracker.DoseLogs) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ProfileMedications(t.state.ActiveProfile().ID), t.state.Logs
}

// commit swaps in next and saves the changed collections. Caller holds mu.
func (t *Tracker) commit(next tracker.State, changed ...store.Collection) []string {
	t.state = next
	if t.opts.Store == nil {
		return nil
	}

	var warnings []string
	for _, c := range changed {
		var v interface{}
		switch c {
		case store.CollectionMedications:
			v = next.Medications
		case store.CollectionDoseLogs:
			v = next.Logs
		case store.CollectionProfiles:
			v = next.Profiles
		case store.CollectionRewards:
			v = next.Rewards
		}
		data, err := json.Marshal(v)
		if err == nil {
			err = t.opts.Store.SaveSnapshot(t.userID, c, data)
		}
		if err != nil {
			t.opts.Metrics.RecordSnapshotFailure(string(c))
			t.logger.Warn("Failed to save snapshot", zap.String("collection", string(c)), zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("%s could not be saved", c))
		}
	}
	return warnings
}

func (t *Tracker) checkOpen() error {
	if t.closed {
		return apperrors.New(apperrors.CodeUnauthorized, "session ended")
	}
	return nil
}

// AddMedication adds a medication to the active profile.
func (t *Tracker) AddMedication(in tracker.MedicationInput) (Result[tracker.Medication], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return Result[tracker.Medication]{}, err
	}

	next, med, err := t.state.AddMedication(in, tracker.NewID(), t.Now())
	if err != nil {
		t.opts.Metrics.RecordRejected(rejectReason(err))
		return Result[tracker.Medication]{}, err
	}
	warnings := t.commit(next, store.CollectionMedications)
	t.logger.Info("Medication added",
		zap.String("medication_id", med.ID),
		zap.Int("frequency", med.Frequency))
	return Result[tracker.Medication]{Value: med, Warnings: warnings}, nil
}

// DoseResult is a recorded dose.
type DoseResult struct {
	tracker.DoseOutcome
	// CelebrateFor is set on the very first taken dose.
	CelebrateFor time.Duration `json:"celebrateFor,omitempty"`
}

// LogDose records a taken, missed or skipped dose and answers any open
// reminder for it.
func (t *Tracker) LogDose(req tracker.DoseRequest) (Result[DoseResult], error) {
	req.AllowOutsideWindow = !t.opts.EnforceWindow

	t.mu.Lock()
	if err := t.checkOpen(); err != nil {
		t.mu.Unlock()
		return Result[DoseResult]{}, err
	}
	next, out, err := t.state.LogDose(req, tracker.NewID(), t.Now())
	if err != nil {
		t.mu.Unlock()
		t.opts.Metrics.RecordRejected(rejectReason(err))
		t.logger.Debug("Dose rejected", zap.String("medication_id", req.MedicationID), zap.Error(err))
		return Result[DoseResult]{}, err
	}
	changed := []store.Collection{store.CollectionDoseLogs}
	if out.Rewards != nil {
		changed = append(changed, store.CollectionRewards)
	}
	warnings := t.commit(next, changed...)
	t.mu.Unlock()

	t.trigger.Acknowledge(out.Log)

	res := DoseResult{DoseOutcome: out}
	t.opts.Metrics.RecordDose(string(out.Log.Status))
	if out.Rewards != nil {
		t.opts.Metrics.RecordPoints(out.Rewards.PointsEarned)
		for _, a := range out.Rewards.Unlocked {
			t.opts.Metrics.RecordAchievement(string(a))
		}
		if out.Rewards.FirstLog {
			res.CelebrateFor = t.opts.Celebration
		}
	}
	t.logger.Info("Dose logged",
		zap.String("medication_id", out.Log.MedicationID),
		zap.String("status", string(out.Log.Status)),
		zap.Bool("late", out.Log.IsLate))
	return Result[DoseResult]{Value: res, Warnings: warnings}, nil
}

// AddProfile adds an unselected profile.
func (t *Tracker) AddProfile(in tracker.ProfileInput) (Result[tracker.Profile], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return Result[tracker.Profile]{}, err
	}
	next, p, err := t.state.AddProfile(in, tracker.NewID())
	if err != nil {
		return Result[tracker.Profile]{}, err
	}
	return Result[tracker.Profile]{Value: p, Warnings: t.commit(next, store.CollectionProfiles)}, nil
}

// UpdateProfile edits a profile.
func (t *Tracker) UpdateProfile(id string, in tracker.ProfileInput) (Result[tracker.Profile], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return Result[tracker.Profile]{}, err
	}
	next, p, err := t.state.UpdateProfile(id, in)
	if err != nil {
		return Result[tracker.Profile]{}, err
	}
	return Result[tracker.Profile]{Value: p, Warnings: t.commit(next, store.CollectionProfiles)}, nil
}

// DeleteProfile removes a profile. Its medications and logs are kept.
func (t *Tracker) DeleteProfile(id string) (Result[struct{}], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return Result[struct{}]{}, err
	}
	next, err := t.state.DeleteProfile(id)
	if err != nil {
		t.opts.Metrics.RecordRejected(rejectReason(err))
		return Result[struct{}]{}, err
	}
	return Result[struct{}]{Warnings: t.commit(next, store.CollectionProfiles)}, nil
}

// Reset erases every stored collection of the user and starts over with a
// fresh default profile that keeps its current name.
func (t *Tracker) Reset() (Result[struct{}], error) {
	t.mu.Lock()
	if err := t.checkOpen(); err != nil {
		t.mu.Unlock()
		return Result[struct{}]{}, err
	}
	name := ""
	if def, ok := t.state.Profile(tracker.DefaultProfileID); ok {
		name = def.Name
	}
	t.state = tracker.NewState(name)

	var warnings []string
	if t.opts.Store != nil {
		if err := t.opts.Store.ClearSnapshots(t.userID); err != nil {
			t.opts.Metrics.RecordSnapshotFailure("all")
			t.logger.Warn("Failed to clear snapshots", zap.Error(err))
			warnings = append(warnings, "stored data could not be erased")
		}
	}
	t.mu.Unlock()

	t.trigger.Check(t.Now())
	t.logger.Info("Tracker reset")
	return Result[struct{}]{Warnings: warnings}, nil
}

// SelectProfile switches the active profile. Reminders follow on the next
// check.
func (t *Tracker) SelectProfile(id string) (Result[tracker.Profile], error) {
	t.mu.Lock()
	if err := t.checkOpen(); err != nil {
		t.mu.Unlock()
		return Result[tracker.Profile]{}, err
	}
	next, err := t.state.SelectProfile(id)
	if err != nil {
		t.mu.Unlock()
		return Result[tracker.Profile]{}, err
	}
	warnings := t.commit(next, store.CollectionProfiles)
	active := next.ActiveProfile()
	t.mu.Unlock()

	t.trigger.Check(t.Now())
	return Result[tracker.Profile]{Value: active, Warnings: warnings}, nil
}

// Snooze hides a due reminder for the snooze period.
func (t *Tracker) Snooze(medicationID string) error {
	return t.trigger.Snooze(medicationID)
}

// Dismiss hides a due reminder; it returns after the snooze period while
// doses remain.
func (t *Tracker) Dismiss(medicationID string) error {
	return t.trigger.Dismiss(medicationID)
}

// Due lists reminders waiting for an answer.
func (t *Tracker) Due() []notify.Event {
	return t.trigger.Due()
}

// Subscribe streams reminder events until cancel is called or the tracker
// closes.
func (t *Tracker) Subscribe(buffer int) (<-chan notify.Event, func()) {
	return t.bus.Subscribe(buffer)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrDailyLimit):
		return "daily_limit"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrProfileGuard):
		return "profile_guard"
	default:
		return "other"
	}
}
