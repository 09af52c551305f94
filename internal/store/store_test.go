package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/config"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	s, err := NewMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_OnDisk(t *testing.T) {
	cfg := config.Default(t.TempDir())
	s, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.SaveSnapshot("u1", CollectionRewards, []byte(`{"points":65}`)))
	require.NoError(t, s.Close())

	s, err = New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	data, err := s.LoadSnapshot("u1", CollectionRewards)
	require.NoError(t, err)
	assert.JSONEq(t, `{"points":65}`, string(data))
}

func TestStore_Snapshots(t *testing.T) {
	s := setupTestStore(t)

	data, err := s.LoadSnapshot("u1", CollectionMedications)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.SaveSnapshot("u1", CollectionMedications, []byte(`[1]`)))
	require.NoError(t, s.SaveSnapshot("u1", CollectionMedications, []byte(`[1,2]`)))
	require.NoError(t, s.SaveSnapshot("u2", CollectionMedications, []byte(`[9]`)))

	data, err = s.LoadSnapshot("u1", CollectionMedications)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	require.NoError(t, s.ClearSnapshots("u1"))
	data, err = s.LoadSnapshot("u1", CollectionMedications)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = s.LoadSnapshot("u2", CollectionMedications)
	require.NoError(t, err)
	assert.Equal(t, `[9]`, string(data))
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "medtrack-dose-logs-usr_1", SnapshotKey("usr_1", CollectionDoseLogs))
}

func TestStore_Users(t *testing.T) {
	s := setupTestStore(t)

	user := &User{Email: " Dana@Example.com ", DisplayName: "Dana", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "dana@example.com", user.Email)

	got, err := s.GetUserByEmail("DANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = s.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dana", got.DisplayName)

	err = s.CreateUser(&User{Email: "dana@example.com"})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	_, err = s.GetUser("missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.TouchSignIn(user.ID, now))
	got, err = s.GetUser(user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSignInAt)
	assert.True(t, now.Equal(*got.LastSignInAt))
}

func TestStore_Sessions(t *testing.T) {
	s := setupTestStore(t)

	require.NoError(t, s.SetSession("jti", []byte("usr_1"), time.Hour))
	val, err := s.GetSession("jti")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", string(val))

	require.NoError(t, s.DeleteSession("jti"))
	val, err = s.GetSession("jti")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestStore_RunGCInMemory(t *testing.T) {
	s := setupTestStore(t)
	n, err := s.RunGC()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Maintenance(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.StartMaintenance("not a schedule")
	assert.Error(t, err)

	m, err := s.StartMaintenance("@every 1h")
	require.NoError(t, err)
	m.Stop(context.Background())
}

type flakyStore struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *flakyStore) LoadSnapshot(string, Collection) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("disk on fire")
	}
	return []byte("ok"), nil
}

func (f *flakyStore) SaveSnapshot(string, Collection, []byte) error {
	_, err := f.LoadSnapshot("", "")
	return err
}

func (f *flakyStore) ClearSnapshots(string) error {
	_, err := f.LoadSnapshot("", "")
	return err
}

func TestGuarded_TripsAndRecovers(t *testing.T) {
	inner := &flakyStore{fail: true}
	g := NewGuarded(inner, 2, 50*time.Millisecond, zap.NewNop())

	assert.Error(t, g.SaveSnapshot("u1", CollectionRewards, nil))
	assert.Error(t, g.SaveSnapshot("u1", CollectionRewards, nil))
	assert.Equal(t, gobreaker.StateOpen, g.State())

	err := g.SaveSnapshot("u1", CollectionRewards, nil)
	assert.True(t, errors.Is(err, apperrors.ErrStorage))
	assert.Equal(t, 2, inner.calls)

	inner.mu.Lock()
	inner.fail = false
	inner.mu.Unlock()
	time.Sleep(80 * time.Millisecond)

	data, err := g.LoadSnapshot("u1", CollectionRewards)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.NoError(t, g.ClearSnapshots("u1"))
}
