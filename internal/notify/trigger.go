package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/clock"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/tracker"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultSnooze   = 5 * time.Minute
)

// Phase is where a medication's prompt stands for the current occurrence.
type Phase string

const (
	PhaseDue       Phase = "due"
	PhaseSnoozed   Phase = "snoozed"
	PhaseDismissed Phase = "dismissed"
	PhaseClosed    Phase = "closed"
)

// Source supplies the active profile's medications and the dose logs used for
// the capacity check. It is called without the trigger's lock held.
type Source func() ([]tracker.Medication, tracker.DoseLogs)

type prompt struct {
	occurrence string
	phase      Phase
	event      Event
	timer      clock.Timer
}

func (p *prompt) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Trigger raises one dose_due event per window occurrence of each medication
// and re-raises it after a snooze or dismiss while doses remain.
type Trigger struct {
	source   Source
	bus      *Bus
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	snooze   time.Duration

	mu      sync.Mutex
	prompts map[string]*prompt
	running bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTrigger builds a trigger that publishes on bus.
func NewTrigger(source Source, bus *Bus, clk clock.Clock, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		source:   source,
		bus:      bus,
		clock:    clk,
		logger:   logger,
		metrics:  metrics.Default(),
		interval: DefaultInterval,
		snooze:   DefaultSnooze,
		prompts:  make(map[string]*prompt),
	}
}

// WithInterval sets the check interval
func (t *Trigger) WithInterval(d time.Duration) *Trigger {
	if d > 0 {
		t.interval = d
	}
	return t
}

// WithSnooze sets how long snooze and dismiss suppress a prompt.
func (t *Trigger) WithSnooze(d time.Duration) *Trigger {
	if d > 0 {
		t.snooze = d
	}
	return t
}

// WithMetrics replaces the metrics sink.
func (t *Trigger) WithMetrics(m *metrics.Metrics) *Trigger {
	if m != nil {
		t.metrics = m
	}
	return t
}

// Start runs Check immediately and then on every tick until ctx ends or Stop
// is called.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return fmt.Errorf("trigger stopped")
	}
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("trigger already running")
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx)
	return nil
}

// Stop halts the ticker and cancels every pending timer. No event is
// published once Stop returns, and the trigger cannot be restarted.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	for id, p := range t.prompts {
		p.stopTimer()
		delete(t.prompts, id)
	}
	if t.running {
		t.running = false
		close(t.stopCh)
	}
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Trigger) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Trigger) tick() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Panic in notification check", zap.Any("recover", r))
		}
	}()
	t.Check(t.clock.Now())
}

func occurrenceKey(at time.Time) string {
	return at.Format("2006-01-02 15:04")
}

// Check evaluates every medication at now. Entering a window with doses left
// publishes one dose_due; leaving it forgets the prompt.
func (t *Trigger) Check(now time.Time) {
	meds, logs := t.source()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	seen := make(map[string]bool, len(meds))
	for _, med := range meds {
		seen[med.ID] = true
		res := tracker.Evaluate(med, now)
		p := t.prompts[med.ID]
		if !res.Eligible || !med.ActiveOn(now) {
			if p != nil {
				p.stopTimer()
				delete(t.prompts, med.ID)
			}
			continue
		}

		scheduled := res.Matched.On(now)
		key := occurrenceKey(scheduled)
		if p != nil && p.occurrence == key {
			continue
		}
		if p != nil {
			p.stopTimer()
			delete(t.prompts, med.ID)
		}
		if !tracker.CanLogTaken(med, logs, now) {
			continue
		}

		p = &prompt{
			occurrence: key,
			phase:      PhaseDue,
			event: Event{
				Kind:           KindDue,
				MedicationID:   med.ID,
				MedicationName: med.Name,
				Dosage:         med.Dosage,
				ScheduledTime:  scheduled,
			},
		}
		t.prompts[med.ID] = p
		t.publishLocked(p.event)
	}

	for id, p := range t.prompts {
		if !seen[id] {
			p.stopTimer()
			delete(t.prompts, id)
		}
	}
}

// Snooze hides the prompt for the snooze period.
func (t *Trigger) Snooze(medicationID string) error {
	return t.suppress(medicationID, PhaseSnoozed)
}

// Dismiss hides the prompt; it comes back after the snooze period while
// doses remain.
func (t *Trigger) Dismiss(medicationID string) error {
	return t.suppress(medicationID, PhaseDismissed)
}

func (t *Trigger) suppress(medicationID string, phase Phase) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.prompts[medicationID]
	if p == nil || p.phase == PhaseClosed {
		return apperrors.NotFound("notification", medicationID)
	}
	p.stopTimer()
	p.phase = phase
	occurrence := p.occurrence
	p.timer = t.clock.AfterFunc(t.snooze, func() { t.rearm(medicationID, occurrence) })
	t.metrics.RecordNotification(string(phase))
	t.logger.Debug("Notification suppressed",
		zap.String("medication_id", medicationID),
		zap.String("phase", string(phase)))
	return nil
}

func (t *Trigger) rearm(medicationID, occurrence string) {
	meds, logs := t.source()
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	p := t.prompts[medicationID]
	if p == nil || p.occurrence != occurrence || (p.phase != PhaseSnoozed && p.phase != PhaseDismissed) {
		return
	}
	p.timer = nil

	var med *tracker.Medication
	for i := range meds {
		if meds[i].ID == medicationID {
			med = &meds[i]
			break
		}
	}
	if med == nil {
		delete(t.prompts, medicationID)
		return
	}
	if !tracker.CanLogTaken(*med, logs, now) {
		p.phase = PhaseClosed
		return
	}
	p.phase = PhaseDue
	t.publishLocked(p.event)
}

// Acknowledge closes the occurrence a log was recorded against and withdraws
// any open prompt for it.
func (t *Trigger) Acknowledge(log tracker.DoseLog) {
	key := occurrenceKey(log.ScheduledTime)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	p := t.prompts[log.MedicationID]
	if p == nil || p.occurrence != key {
		if p != nil {
			p.stopTimer()
		}
		t.prompts[log.MedicationID] = &prompt{occurrence: key, phase: PhaseClosed}
		return
	}
	p.stopTimer()
	wasDue := p.phase == PhaseDue
	p.phase = PhaseClosed
	if wasDue {
		cleared := p.event
		cleared.Kind = KindCleared
		t.publishLocked(cleared)
	}
}

// Due returns the prompts currently waiting for an answer.
func (t *Trigger) Due() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := []Event{}
	for _, p := range t.prompts {
		if p.phase == PhaseDue {
			out = append(out, p.event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

// PhaseOf reports the prompt phase of a medication, if it has one.
func (t *Trigger) PhaseOf(medicationID string) (Phase, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.prompts[medicationID]
	if !ok {
		return "", false
	}
	return p.phase, true
}

func (t *Trigger) publishLocked(e Event) {
	n := t.bus.Publish(e)
	t.metrics.RecordNotification(string(e.Kind))
	t.logger.Debug("Notification published",
		zap.String("kind", string(e.Kind)),
		zap.String("medication_id", e.MedicationID),
		zap.Int("subscribers", n))
}
