package httpapi

import (
	"fmt"
	"net/http"

	"duelhall/internal/domain"
)

// EnqueueRequest optionally overrides the display name shown to the opponent.
type EnqueueRequest struct {
	DisplayName string `json:"display_name,omitempty"`
}

// MatchmakingResponse reports a pairing, or that the caller still waits.
type MatchmakingResponse struct {
	Matched bool                `json:"matched"`
	Signal  *domain.MatchSignal `json:"signal,omitempty"`
	Removed bool                `json:"removed,omitempty"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseGameType(r.PathValue("mode"))
	if err != nil {
		s.fail(w, "HandleEnqueue", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	var req EnqueueRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, "HandleEnqueue", err)
		return
	}
	me := caller(r.Context())
	name := req.DisplayName
	if name == "" && s.onboarding != nil {
		name = s.onboarding.DisplayName(r.Context(), me)
	}

	sig, err := s.authority.Enqueue(r.Context(), me, name, mode)
	if err != nil {
		s.fail(w, "HandleEnqueue", err)
		return
	}
	writeJSON(w, http.StatusOK, MatchmakingResponse{Matched: sig != nil, Signal: sig})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseGameType(r.PathValue("mode"))
	if err != nil {
		s.fail(w, "HandleCancel", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	removed := s.authority.Cancel(caller(r.Context()), mode)
	writeJSON(w, http.StatusOK, MatchmakingResponse{Removed: removed})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	sig, err := s.authority.Check(r.Context(), caller(r.Context()))
	if err != nil {
		s.fail(w, "HandleSignal", err)
		return
	}
	writeJSON(w, http.StatusOK, MatchmakingResponse{Matched: sig != nil, Signal: sig})
}
