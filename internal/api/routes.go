package api

import (
	"strings"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.requestMetrics())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", s.rateLimit(), s.handleSignUp)
	auth.Post("/signin", s.rateLimit(), s.handleSignIn)

	protected := api.Use(s.authMiddleware())

	protected.Post("/auth/signout", s.handleSignOut)

	protected.Get("/dashboard", s.handleDashboard)
	protected.Delete("/data", s.handleResetData)

	protected.Get("/profiles", s.handleListProfiles)
	protected.Post("/profiles", s.handleCreateProfile)
	protected.Put("/profiles/:id", s.handleUpdateProfile)
	protected.Delete("/profiles/:id", s.handleDeleteProfile)
	protected.Post("/profiles/:id/select", s.handleSelectProfile)

	protected.Get("/medications", s.handleListMedications)
	protected.Post("/medications", s.handleCreateMedication)
	protected.Get("/medications/:id/window", s.handleMedicationWindow)

	protected.Get("/logs", s.handleListLogs)
	protected.Post("/logs", s.handleLogDose)

	protected.Get("/rewards", s.handleRewards)
	protected.Get("/upcoming", s.handleUpcoming)
	protected.Get("/analytics", s.handleAnalytics)
	protected.Get("/export", s.handleExport)

	protected.Get("/notifications", s.handleListNotifications)
	protected.Post("/notifications/:id/snooze", s.handleSnooze)
	protected.Post("/notifications/:id/dismiss", s.handleDismiss)

	protected.Get("/ws", s.requireUpgrade, websocket.New(s.handleWebSocket))
}
