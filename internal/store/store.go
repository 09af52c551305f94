package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmsas95/medtrack/internal/config"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// Store provides unified access to SQLite (accounts) and BadgerDB (tracker
// snapshots and live sessions).
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	badger *badger.DB
	logger *zap.Logger
}

// New creates a new Store instance
func New(cfg *config.Config, log *zap.Logger) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "medtrack.db")
	}

	// Open SQLite with optimizations
	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Configure connection pool
	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	badgerPath := cfg.Storage.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}

	// Open BadgerDB with optimizations
	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil). // Disable verbose logging
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20). // 16MB value log files
		WithMemTableSize(16 << 20)      // 16MB memtable

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s, err := open(sqliteDB, badgerDB, log)
	if err != nil {
		badgerDB.Close()
		sqliteDB.Close()
		return nil, err
	}
	return s, nil
}

// NewMemory opens a Store backed by in-memory SQLite and Badger.
func NewMemory(log *zap.Logger) (*Store, error) {
	sqliteDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// each connection to :memory: is a separate database
	sqliteDB.SetMaxOpenConns(1)

	badgerDB, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s, err := open(sqliteDB, badgerDB, log)
	if err != nil {
		badgerDB.Close()
		sqliteDB.Close()
		return nil, err
	}
	return s, nil
}

func open(sqliteDB *sql.DB, badgerDB *badger.DB, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Auto-migrate schemas
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &Store{
		db:     db,
		sqlDB:  sqliteDB,
		badger: badgerDB,
		logger: log,
	}, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	return errors.Join(s.badger.Close(), s.sqlDB.Close())
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Badger returns the BadgerDB instance
func (s *Store) Badger() *badger.DB {
	return s.badger
}

// ==================== User Methods ====================

// CreateUser inserts a new account. A duplicate e-mail is a conflict.
func (s *Store) CreateUser(user *User) error {
	existing, err := s.GetUserByEmail(user.Email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if existing != nil {
		return apperrors.New(apperrors.CodeConflict, "an account with this e-mail already exists")
	}
	if err := s.db.Create(user).Error; err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to create user")
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(id string) (*User, error) {
	var user User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to load user")
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by normalized e-mail
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var user User
	if err := s.db.First(&user, "email = ?", NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user", email)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to load user")
	}
	return &user, nil
}

// TouchSignIn records a successful sign-in.
func (s *Store) TouchSignIn(id string, at time.Time) error {
	return s.db.Model(&User{}).Where("id = ?", id).Update("last_sign_in_at", at).Error
}

// ==================== Session Methods (BadgerDB) ====================

// SetSession stores session data in BadgerDB
func (s *Store) SetSession(key string, value []byte, ttl time.Duration) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte("session:"+key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// GetSession retrieves session data from BadgerDB. A missing or expired
// session returns nil, nil.
func (s *Store) GetSession(key string) ([]byte, error) {
	var val []byte
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("session:" + key))
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
	return val, err
}

// DeleteSession removes session data
func (s *Store) DeleteSession(key string) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte("session:" + key))
	})
}
