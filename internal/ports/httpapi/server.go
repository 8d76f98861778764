// Package httpapi exposes the document store, device sign-in and the
// matchmaking authority over HTTP for standalone deployments.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"duelhall/internal/app/matchmaking"
	"duelhall/internal/app/onboarding"
	"duelhall/internal/auth"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// MaxBodyBytes bounds request bodies, documents included.
const MaxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Server routes the HTTP API.
type Server struct {
	mux        *http.ServeMux
	store      ports.DocumentStore
	issuer     *auth.Issuer
	authority  *matchmaking.Authority
	onboarding *onboarding.Service
	devices    *deviceDirectory
	logger     runtime.Logger
}

// NewServer wires the routes. authority and onboard may be nil to disable
// matchmaking and display-name assignment.
func NewServer(store ports.DocumentStore, issuer *auth.Issuer, authority *matchmaking.Authority, onboard *onboarding.Service, logger runtime.Logger) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		store:      store,
		issuer:     issuer,
		authority:  authority,
		onboarding: onboard,
		devices:    &deviceDirectory{store: store},
		logger:     logger,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /v1/auth/device", s.handleDeviceAuth)

	authed := s.requireToken
	s.mux.Handle("GET /v1/store/{collection}", authed(http.HandlerFunc(s.handleList)))
	s.mux.Handle("GET /v1/store/{collection}/{key}", authed(http.HandlerFunc(s.handleGet)))
	s.mux.Handle("PUT /v1/store/{collection}/{key}", authed(http.HandlerFunc(s.handlePut)))
	s.mux.Handle("DELETE /v1/store/{collection}/{key}", authed(http.HandlerFunc(s.handleDelete)))

	if s.authority != nil {
		s.mux.Handle("POST /v1/matchmaking/{mode}", authed(http.HandlerFunc(s.handleEnqueue)))
		s.mux.Handle("DELETE /v1/matchmaking/{mode}", authed(http.HandlerFunc(s.handleCancel)))
		s.mux.Handle("GET /v1/matchmaking/signal", authed(http.HandlerFunc(s.handleSignal)))
	}
}

// requireToken verifies the bearer token and stores the caller's identity in
// the request context.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := s.issuer.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ports.WithIdentity(r.Context(), claims.UserID)))
	})
}

func caller(ctx context.Context) string {
	me, _ := ports.ContextIdentity{}.Identity(ctx)
	return me
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// fail maps known sentinels onto status codes. Anything else is logged and
// reported as 500.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ports.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ports.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error("%s: %v", op, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
