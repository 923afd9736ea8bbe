package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type commandResponse struct {
	Command string `json:"command"`
	Status  string `json:"status"`
}

// accepted reports a command handed to the DAW. Delivery is not confirmed.
func (s *Server) accepted(w http.ResponseWriter, command string, err error) {
	if err != nil {
		s.logger.Warn("api command failed", "command", command, "error", err)
		writeSendFailed(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse{Command: command, Status: "sent"})
}

func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	s.accepted(w, "sync", s.driver.Commands().Sync())
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	s.accepted(w, "reload", s.driver.Commands().Reload())
}

// handlePanic silences every attached device. It never reaches the DAW, so
// a failure is local and reported as 500.
func (s *Server) handlePanic(w http.ResponseWriter, _ *http.Request) {
	if err := s.driver.Commands().Panic(); err != nil {
		s.logger.Warn("midi panic failed", "error", err)
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Command: "panic", Status: "done"})
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	cmds := s.driver.Commands()
	action := chi.URLParam(r, "action")

	var err error
	switch action {
	case "play":
		err = cmds.Play()
	case "stop":
		err = cmds.Stop()
	case "continue":
		err = cmds.Continue()
	case "record":
		err = cmds.Record()
	default:
		writeNotFound(w, "unknown transport action: "+action)
		return
	}
	s.accepted(w, action, err)
}

type gotoRequest struct {
	Bar int `json:"bar"`
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Bar < 1 {
		writeBadRequest(w, "bar must be at least 1")
		return
	}
	s.accepted(w, "goto", s.driver.Commands().Goto(req.Bar))
}
