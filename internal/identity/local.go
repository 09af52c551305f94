package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/store"
)

const minPasswordLength = 6

// Accounts is the user storage Local needs.
type Accounts interface {
	CreateUser(user *store.User) error
	GetUser(id string) (*store.User, error)
	GetUserByEmail(email string) (*store.User, error)
	TouchSignIn(id string, at time.Time) error
	SetSession(key string, value []byte, ttl time.Duration) error
	GetSession(key string) ([]byte, error)
	DeleteSession(key string) error
}

// Options configure a Local provider.
type Options struct {
	Secret     string
	TTL        time.Duration
	BcryptCost int
	Now        func() time.Time
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Local authenticates against the local account database and issues
// HS256 tokens whose ids are kept live in badger until sign-out or expiry.
type Local struct {
	accounts Accounts
	secret   []byte
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewLocal creates a Local provider.
func NewLocal(accounts Accounts, opts Options, logger *zap.Logger) (*Local, error) {
	if opts.Secret == "" {
		return nil, apperrors.New(apperrors.CodeConfig, "jwt secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		accounts: accounts,
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		cost:     opts.BcryptCost,
		now:      opts.Now,
		logger:   logger,
		subs:     make(map[int]chan Event),
	}, nil
}

// SignUp creates an account and opens its first session.
func (l *Local) SignUp(ctx context.Context, creds Credentials) (Session, error) {
	email := store.NormalizeEmail(creds.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, apperrors.Validation("invalid e-mail address")
	}
	if len(creds.Password) < minPasswordLength {
		return Session{}, apperrors.Validation("password must be at least %d characters", minPasswordLength)
	}
	name := strings.TrimSpace(creds.DisplayName)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), l.cost)
	if err != nil {
		return Session{}, apperrors.Wrap(err, apperrors.CodeValidation, "password cannot be used")
	}

	user := &store.User{Email: email, DisplayName: name, PasswordHash: string(hash)}
	if err := l.accounts.CreateUser(user); err != nil {
		return Session{}, err
	}

	sess, err := l.issue(user)
	if err != nil {
		return Session{}, err
	}
	l.logger.Info("User signed up", zap.String("user_id", user.ID))
	l.emit(EventSignedUp, user.ID)
	return sess, nil
}

// SignIn checks a password and opens a new session.
func (l *Local) SignIn(ctx context.Context, creds Credentials) (Session, error) {
	user, err := l.accounts.GetUserByEmail(creds.Email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return Session{}, apperrors.New(apperrors.CodeUnauthorized, "invalid e-mail or password")
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return Session{}, apperrors.New(apperrors.CodeUnauthorized, "invalid e-mail or password")
	}

	sess, err := l.issue(user)
	if err != nil {
		return Session{}, err
	}
	if err := l.accounts.TouchSignIn(user.ID, l.now()); err != nil {
		l.logger.Warn("Failed to record sign-in", zap.String("user_id", user.ID), zap.Error(err))
	}
	l.logger.Info("User signed in", zap.String("user_id", user.ID))
	l.emit(EventSignedIn, user.ID)
	return sess, nil
}

// SignOut revokes a session. Signing out an unknown token is a no-op.
func (l *Local) SignOut(ctx context.Context, token string) error {
	c, err := l.parse(token)
	if err != nil {
		return nil
	}
	if err := l.accounts.DeleteSession(c.ID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to revoke session")
	}
	l.logger.Info("User signed out", zap.String("user_id", c.Subject))
	l.emit(EventSignedOut, c.Subject)
	return nil
}

// Session resolves a bearer token.
func (l *Local) Session(ctx context.Context, token string) (*Session, error) {
	c, err := l.parse(token)
	if err != nil {
		return nil, nil
	}
	val, err := l.accounts.GetSession(c.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to load session")
	}
	if val == nil || string(val) != c.Subject {
		return nil, nil
	}
	return &Session{
		Token:       token,
		UserID:      c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

// Subscribe registers a listener for session changes.
func (l *Local) Subscribe() (<-chan Event, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.next
	l.next++
	ch := make(chan Event, 16)
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
}

func (l *Local) issue(user *store.User) (Session, error) {
	now := l.now()
	expires := now.Add(l.ttl)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		Name:  user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate token: %w", err)
	}
	if err := l.accounts.SetSession(jti, []byte(user.ID), l.ttl); err != nil {
		return Session{}, apperrors.Wrap(err, apperrors.CodeStorage, "failed to store session")
	}

	return Session{
		Token:       signed,
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		ExpiresAt:   expires,
	}, nil
}

func (l *Local) parse(token string) (*claims, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil || !parsed.Valid {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}
	return c, nil
}

func (l *Local) emit(kind EventKind, userID string) {
	metrics.Default().RecordAuthEvent(string(kind))

	e := Event{Kind: kind, UserID: userID, At: l.now()}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			l.logger.Warn("Dropping session event for slow subscriber", zap.String("kind", string(kind)))
		}
	}
}
