package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/identity"
	"github.com/gmsas95/medtrack/internal/service"
)

const (
	localSession = "session"
	localTracker = "tracker"

	limiterIdle = 10 * time.Minute
)

// bearerToken reads the Authorization header, or the token query parameter
// on websocket upgrades where browsers cannot set headers.
func bearerToken(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if websocket.IsWebSocketUpgrade(c) {
		return c.Query("token")
	}
	return ""
}

// authMiddleware resolves the session and opens the user's tracker.
func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return apperrors.New(apperrors.CodeUnauthorized, "missing authorization header")
		}

		sess, err := s.auth.Session(c.UserContext(), token)
		if err != nil {
			return err
		}
		if sess == nil {
			return apperrors.New(apperrors.CodeUnauthorized, "invalid token")
		}

		trk, err := s.trackers.Open(sess.UserID, sess.DisplayName)
		if err != nil {
			return err
		}

		c.Locals(localSession, sess)
		c.Locals(localTracker, trk)
		return c.Next()
	}
}

func sessionOf(c *fiber.Ctx) *identity.Session {
	sess, _ := c.Locals(localSession).(*identity.Session)
	return sess
}

func trackerOf(c *fiber.Ctx) *service.Tracker {
	trk, _ := c.Locals(localTracker).(*service.Tracker)
	return trk
}

func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// requestMetrics counts every request by method and final status.
func (s *Server) requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			// render the error now so the recorded status is the one sent
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()
		s.metrics.RecordRequest(c.Method(), status)
		s.metrics.RecordResponseTime(time.Since(start))
		s.logger.Debug("Request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)))
		return nil
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*limiterEntry
}

func newIPLimiter(perMinute, burst int) *ipLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		clients: make(map[string]*limiterEntry),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.clients[ip]
	if !ok {
		l.prune(now)
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *ipLimiter) prune(now time.Time) {
	for ip, e := range l.clients {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(l.clients, ip)
		}
	}
}

func (s *Server) rateLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.limiter.allow(c.IP(), time.Now()) {
			s.metrics.RecordRejected("rate_limited")
			return fiber.NewError(fiber.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}
