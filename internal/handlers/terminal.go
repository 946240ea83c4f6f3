package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/ehcaw/lsclear-backend/internal/database"
	"github.com/ehcaw/lsclear-backend/internal/logutil"
	"github.com/ehcaw/lsclear-backend/internal/terminal"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// Terminals is the session lifecycle controller, set from main during init.
var Terminals *terminal.Controller

// WebSocket close codes for attach failures. 4xxx is the application
// range; the low digits mirror the matching HTTP statuses.
const (
	wsCloseNotFound        websocket.StatusCode = 4404
	wsCloseAlreadyAttached websocket.StatusCode = 4409
	wsCloseSessionClosed   websocket.StatusCode = 4410
	wsCloseInternal        websocket.StatusCode = 4500
)

type startSessionRequest struct {
	UserID string `json:"user_id"`
	Rows   uint16 `json:"rows"`
	Cols   uint16 `json:"cols"`
}

// StartTerminalSession creates (or reuses) a terminal session for a user.
// POST /terminal/start
func StartTerminalSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if _, err := database.GetUserByID(req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "User lookup failed")
		return
	}

	sess, reused, err := Terminals.StartSession(req.UserID, req.Rows, req.Cols)
	if err != nil {
		switch {
		case errors.Is(err, terminal.ErrRegistryFull):
			writeError(w, http.StatusServiceUnavailable, "Too many active sessions")
		default:
			log.Printf("Terminal session creation failed for user %s: %v", logutil.SanitizeForLog(req.UserID), err)
			writeError(w, http.StatusInternalServerError, "Failed to start shell")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"reused":     reused,
	})
}

// TerminalStatus is the poll endpoint for the client's connect loop.
// GET /terminal/{sessionID}
func TerminalStatus(w http.ResponseWriter, r *http.Request) {
	status, err := Terminals.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// StopTerminalSession tears a session down. Repeated deletes succeed.
// DELETE /terminal/{sessionID}?user_id=...
func StopTerminalSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	switch err := Terminals.DeleteSession(sessionID, userID); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, terminal.ErrNotOwner):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, terminal.ErrNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to close session")
	}
}

// CleanupUserSessions closes every session a user holds; used by the
// frontend when a user logs out or closes the editor.
// POST /terminal/cleanup/{userID}
func CleanupUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" || userID == "undefined" || userID == "null" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
		return
	}

	closed := Terminals.CloseAllForOwner(userID)
	log.Printf("Cleanup for user %s closed %d sessions", logutil.SanitizeForLog(userID), closed)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"closed": closed,
	})
}

// TerminalWS attaches a WebSocket to a session and bridges it to the
// shell until either side closes. GET /terminal/ws/{sessionID}
func TerminalWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("Failed to accept terminal websocket: %v", err)
		return
	}
	defer conn.CloseNow()

	conn.SetReadLimit(1024 * 1024)

	switch err := Terminals.Attach(r.Context(), sessionID, conn); {
	case err == nil:
		conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, terminal.ErrNotFound):
		conn.Close(wsCloseNotFound, "Session not found")
	case errors.Is(err, terminal.ErrAlreadyAttached):
		conn.Close(wsCloseAlreadyAttached, "Session already attached")
	case errors.Is(err, terminal.ErrSessionClosed):
		conn.Close(wsCloseSessionClosed, "Session closed")
	default:
		log.Printf("Terminal attach failed for session %s: %v", logutil.SanitizeForLog(sessionID), err)
		conn.Close(wsCloseInternal, "Attach failed")
	}
}
