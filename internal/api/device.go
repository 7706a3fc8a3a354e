package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gpioled/internal/audit"
	"github.com/nerrad567/gpioled/internal/led"
)

// ActionAPICommand is the audit action recorded for accepted commands.
const ActionAPICommand = "api_command"

// setStateRequest is the request body for PUT /device/state.
type setStateRequest struct {
	Command string `json:"command"`
}

// handleGetDevice returns the device snapshot.
func (s *Server) handleGetDevice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.device.Snapshot())
}

// handleSetDeviceState switches the LED on or off.
//
// The control byte goes through an ordinary interface session, so the
// request is subject to the same rules as a node client: an unloaded device
// answers 503 and an unknown command answers 400 without touching the pin.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid JSON body")
		return
	}

	control, err := led.ParseCommand(req.Command)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidation, `command must be "on" or "off"`)
		return
	}

	if err := led.Send(s.device.Interface(), control); err != nil {
		status, code, ok := deviceErrorStatus(err)
		if !ok {
			s.logger.Error("device write failed", "command", req.Command, "error", err)
			writeInternalError(w, r, "device write failed")
			return
		}
		writeError(w, r, status, code, err.Error())
		return
	}

	var subject string
	if claims := claimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}
	s.logger.Info("device command applied", "command", req.Command, "user", subject)

	if s.auditor != nil {
		s.auditor.Record(&audit.AuditLog{
			Action:   ActionAPICommand,
			EntityID: s.device.Name(),
			UserID:   subject,
			Source:   "api",
			Details: map[string]any{
				"command":    req.Command,
				"request_id": requestID(r),
			},
		})
	}

	writeJSON(w, http.StatusOK, s.device.Snapshot())
}
