package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const gcDiscardRatio = 0.5

// RunGC rewrites value-log files until badger reports nothing left to
// reclaim. It returns how many files were rewritten.
func (s *Store) RunGC() (int, error) {
	rewritten := 0
	for {
		err := s.badger.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			rewritten++
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return rewritten, nil
		default:
			return rewritten, err
		}
	}
}

// Maintenance runs periodic storage housekeeping on a cron schedule.
type Maintenance struct {
	cron   *cron.Cron
	store  *Store
	logger *zap.Logger
}

// StartMaintenance schedules value-log GC with a standard cron spec or
// descriptor such as "@hourly".
func (s *Store) StartMaintenance(schedule string) (*Maintenance, error) {
	m := &Maintenance{
		cron:   cron.New(),
		store:  s,
		logger: s.logger,
	}
	if _, err := m.cron.AddFunc(schedule, m.collect); err != nil {
		return nil, fmt.Errorf("invalid gc schedule %q: %w", schedule, err)
	}
	m.cron.Start()
	s.logger.Info("Storage maintenance scheduled", zap.String("schedule", schedule))
	return m, nil
}

func (m *Maintenance) collect() {
	n, err := m.store.RunGC()
	if err != nil {
		m.logger.Error("Value log GC failed", zap.Error(err))
		return
	}
	m.logger.Debug("Value log GC finished", zap.Int("rewritten", n))
}

// Stop waits for a running job to finish or ctx to end.
func (m *Maintenance) Stop(ctx context.Context) {
	done := m.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
