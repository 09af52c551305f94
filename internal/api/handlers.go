package api

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/export"
	"github.com/gmsas95/medtrack/internal/identity"
	"github.com/gmsas95/medtrack/internal/service"
	"github.com/gmsas95/medtrack/internal/tracker"
)

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.New(apperrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// ==================== Public ====================

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "healthy",
		"version":       Version,
		"timestamp":     time.Now().Unix(),
		"open_trackers": s.trackers.Len(),
	})
}

func (s *Server) handleSignUp(c *fiber.Ctx) error {
	var creds identity.Credentials
	if err := parseBody(c, &creds); err != nil {
		return err
	}
	sess, err := s.auth.SignUp(c.UserContext(), creds)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (s *Server) handleSignIn(c *fiber.Ctx) error {
	var creds identity.Credentials
	if err := parseBody(c, &creds); err != nil {
		return err
	}
	sess, err := s.auth.SignIn(c.UserContext(), creds)
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

// ==================== Session ====================

func (s *Server) handleSignOut(c *fiber.Ctx) error {
	if err := s.auth.SignOut(c.UserContext(), sessionOf(c).Token); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	return c.JSON(trackerOf(c).Dashboard())
}

func (s *Server) handleResetData(c *fiber.Ctx) error {
	res, err := trackerOf(c).Reset()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "erased", "warnings": res.Warnings})
}

// ==================== Profiles ====================

func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"profiles":      trackerOf(c).Profiles(),
		"relationships": tracker.Relationships,
	})
}

func (s *Server) handleCreateProfile(c *fiber.Ctx) error {
	var in tracker.ProfileInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := trackerOf(c).AddProfile(in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var in tracker.ProfileInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := trackerOf(c).UpdateProfile(c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleDeleteProfile(c *fiber.Ctx) error {
	res, err := trackerOf(c).DeleteProfile(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "deleted", "warnings": res.Warnings})
}

func (s *Server) handleSelectProfile(c *fiber.Ctx) error {
	res, err := trackerOf(c).SelectProfile(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// ==================== Medications ====================

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"medications": trackerOf(c).Medications(),
		"categories":  tracker.Categories,
	})
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var in tracker.MedicationInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := trackerOf(c).AddMedication(in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) handleMedicationWindow(c *fiber.Ctx) error {
	st, err := trackerOf(c).Window(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

// ==================== Dose logs ====================

func (s *Server) handleListLogs(c *fiber.Ctx) error {
	f := service.LogFilter{
		MedicationID: c.Query("medication"),
		Status:       tracker.DoseStatus(c.Query("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		return apperrors.Validation("unknown dose status %q", f.Status)
	}
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return apperrors.Validation("invalid days %q", d)
		}
		f.Days = n
	}
	return c.JSON(fiber.Map{"logs": trackerOf(c).Logs(f)})
}

func (s *Server) handleLogDose(c *fiber.Ctx) error {
	var req tracker.DoseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := trackerOf(c).LogDose(req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ==================== Projections ====================

func (s *Server) handleRewards(c *fiber.Ctx) error {
	return c.JSON(trackerOf(c).Rewards())
}

func (s *Server) handleUpcoming(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"upcoming": trackerOf(c).Upcoming()})
}

func (s *Server) handleAnalytics(c *fiber.Ctx) error {
	return c.JSON(trackerOf(c).Analytics())
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format", string(export.FormatCSV)))
	if err != nil {
		return err
	}
	r, err := export.ParseRange(c.Query("range"), c.Query("days"), c.Query("start"), c.Query("end"))
	if err != nil {
		return err
	}

	trk := trackerOf(c)
	data := trk.Export()
	now := trk.Now()
	rep := export.NewReport(data.Profile.Name, data.Medications, data.Logs, r, now)

	var buf bytes.Buffer
	if err := rep.Write(&buf, format); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to build report")
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.FileName(format, data.Profile.Name, now)))
	return c.Send(buf.Bytes())
}

// ==================== Notifications ====================

func (s *Server) handleListNotifications(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"due": trackerOf(c).Due()})
}

func (s *Server) handleSnooze(c *fiber.Ctx) error {
	if err := trackerOf(c).Snooze(c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "snoozed", "minutes": s.config.Tracker.SnoozeMinutes})
}

func (s *Server) handleDismiss(c *fiber.Ctx) error {
	if err := trackerOf(c).Dismiss(c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "dismissed"})
}
