package store

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// Collection names one persisted slice of a user's tracker state.
type Collection string

const (
	CollectionMedications Collection = "medications"
	CollectionDoseLogs    Collection = "dose-logs"
	CollectionProfiles    Collection = "profiles"
	CollectionRewards     Collection = "rewards"
)

// Collections lists every collection a user owns.
var Collections = []Collection{
	CollectionMedications,
	CollectionDoseLogs,
	CollectionProfiles,
	CollectionRewards,
}

// SnapshotStore persists whole collections per user as opaque documents.
type SnapshotStore interface {
	// LoadSnapshot returns nil, nil when nothing was saved yet.
	LoadSnapshot(userID string, c Collection) ([]byte, error)
	SaveSnapshot(userID string, c Collection, data []byte) error
	ClearSnapshots(userID string) error
}

// SnapshotKey is the storage key of a user's collection.
func SnapshotKey(userID string, c Collection) string {
	return "medtrack-" + string(c) + "-" + userID
}

// LoadSnapshot reads a collection document from BadgerDB
func (s *Store) LoadSnapshot(userID string, c Collection) ([]byte, error) {
	var val []byte
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(SnapshotKey(userID, c)))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to load "+string(c))
	}
	return val, nil
}

// SaveSnapshot replaces a collection document in BadgerDB
func (s *Store) SaveSnapshot(userID string, c Collection, data []byte) error {
	err := s.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(SnapshotKey(userID, c)), data)
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to save "+string(c))
	}
	return nil
}

// ClearSnapshots removes every collection of a user
func (s *Store) ClearSnapshots(userID string) error {
	err := s.badger.Update(func(txn *badger.Txn) error {
		for _, c := range Collections {
			if err := txn.Delete([]byte(SnapshotKey(userID, c))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to clear snapshots")
	}
	return nil
}
