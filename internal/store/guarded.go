package store

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// Guarded wraps a SnapshotStore in a circuit breaker so a failing disk is
// reported quickly instead of stalling every tracker action.
type Guarded struct {
	inner  SnapshotStore
	cb     *gobreaker.CircuitBreaker[[]byte]
	logger *zap.Logger
}

// NewGuarded trips after failures consecutive errors and probes again after
// timeout.
func NewGuarded(inner SnapshotStore, failures uint32, timeout time.Duration, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	if failures == 0 {
		failures = 5
	}
	g := &Guarded{inner: inner, logger: logger}
	g.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "snapshots",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Storage circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guarded) LoadSnapshot(userID string, c Collection) ([]byte, error) {
	data, err := g.cb.Execute(func() ([]byte, error) {
		return g.inner.LoadSnapshot(userID, c)
	})
	return data, g.mapErr(err)
}

func (g *Guarded) SaveSnapshot(userID string, c Collection, data []byte) error {
	_, err := g.cb.Execute(func() ([]byte, error) {
		return nil, g.inner.SaveSnapshot(userID, c, data)
	})
	return g.mapErr(err)
}

func (g *Guarded) ClearSnapshots(userID string) error {
	_, err := g.cb.Execute(func() ([]byte, error) {
		return nil, g.inner.ClearSnapshots(userID)
	})
	return g.mapErr(err)
}

func (g *Guarded) mapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Wrap(err, apperrors.CodeStorage, "storage unavailable")
	}
	return err
}
