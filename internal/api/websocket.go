package api

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/service"
	"github.com/gmsas95/medtrack/internal/tracker"
)

const wsBuffer = 16

// clientAction answers a reminder from the client.
type clientAction struct {
	Action       string `json:"action"`
	MedicationID string `json:"medication_id"`
	Notes        string `json:"notes,omitempty"`
}

// handleWebSocket pushes reminder events to the client and applies the
// client's answers.
func (s *Server) handleWebSocket(c *websocket.Conn) {
	defer c.Close()

	trk, _ := c.Locals(localTracker).(*service.Tracker)
	if trk == nil {
		return
	}
	logger := s.logger.With(zap.String("user_id", trk.UserID()))

	s.metrics.IncrementActiveConnections()
	defer s.metrics.DecrementActiveConnections()

	var writeMu sync.Mutex
	send := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(v)
	}

	events, cancel := trk.Subscribe(wsBuffer)
	defer cancel()

	for _, e := range trk.Due() {
		if err := send(e); err != nil {
			return
		}
	}

	leaving := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			if err := send(e); err != nil {
				logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		}
		select {
		case <-leaving:
		default:
			// the tracker closed under us: the session ended
			_ = send(fiber.Map{"type": "session_closed"})
			writeMu.Lock()
			c.Close()
			writeMu.Unlock()
		}
	}()

	for {
		mt, msg, err := c.ReadMessage()
		if err != nil {
			logger.Debug("WebSocket closed", zap.Error(err))
			break
		}
		if mt != websocket.TextMessage {
			continue
		}

		var act clientAction
		if err := json.Unmarshal(msg, &act); err != nil {
			_ = send(fiber.Map{"type": "error", "error": "invalid message format"})
			continue
		}
		if err := s.applyAction(trk, act); err != nil {
			_, body := s.errorResponse("/api/ws", err)
			body["type"] = "error"
			body["action"] = act.Action
			_ = send(body)
			continue
		}
		_ = send(fiber.Map{"type": "ack", "action": act.Action, "medication_id": act.MedicationID})
	}

	close(leaving)
	cancel()
	<-done
}

func (s *Server) applyAction(trk *service.Tracker, act clientAction) error {
	switch act.Action {
	case string(tracker.StatusTaken), string(tracker.StatusMissed), string(tracker.StatusSkipped):
		_, err := trk.LogDose(tracker.DoseRequest{
			MedicationID: act.MedicationID,
			Status:       tracker.DoseStatus(act.Action),
			Notes:        act.Notes,
		})
		return err
	case "snooze":
		return trk.Snooze(act.MedicationID)
	case "dismiss":
		return trk.Dismiss(act.MedicationID)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown action "+act.Action)
	}
}
