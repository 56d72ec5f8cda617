// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api exposes login and procedure calls over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/holomush/procauth/internal/dispatch"
	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/session"
	"github.com/holomush/procauth/pkg/errutil"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the procedure API.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	// disabled is the shared session used when authentication is off.
	disabled *session.Session
}

// Option configures a Handler.
type Option func(*Handler)

// WithAuthDisabled makes every request run as the auth-disabled subject.
func WithAuthDisabled() Option {
	return func(h *Handler) {
		s := h.sessions.AuthDisabled()
		h.disabled = &s
	}
}

// NewHandler creates the API handler.
func NewHandler(d *dispatch.Dispatcher, sessions *session.Manager, opts ...Option) *Handler {
	h := &Handler{dispatcher: d, sessions: sessions}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.SessionMiddleware)

		r.Post("/logout", h.Logout)
		r.Get("/procedures", h.ListProcedures)
		r.Post("/procedures/{name}", h.CallProcedure)
	})
	return r
}

const bearerPrefix = "Bearer "

type sessionKey struct{}

// bearerToken returns the token from the Authorization header, or "".
func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func sessionFrom(ctx context.Context) session.Session {
	s, _ := ctx.Value(sessionKey{}).(session.Session)
	return s
}

// SessionMiddleware resolves the bearer session token, or the auth-disabled
// session when authentication is off.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.disabled != nil {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, *h.disabled)))
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer session token"})
			return
		}
		s, err := h.sessions.Get(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	Username  string     `json:"username"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Login opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.disabled != nil {
		writeJSON(w, http.StatusOK, loginResponse{})
		return
	}

	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: s.Token, Username: s.Username, ExpiresAt: &s.ExpiresAt})
}

// Logout closes the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if s.AuthDisabled {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.sessions.Logout(bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type procedureInfo struct {
	Name        string   `json:"name"`
	Signature   string   `json:"signature"`
	Description string   `json:"description"`
	Requires    []string `json:"requires"`
}

// ListProcedures lists procedures, optionally filtered by the glob in the
// filter query parameter.
func (h *Handler) ListProcedures(w http.ResponseWriter, r *http.Request) {
	descriptors, err := h.dispatcher.Procedures(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]procedureInfo, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, describe(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func describe(d procedure.Descriptor) procedureInfo {
	requires := make([]string, 0, len(d.Requires()))
	for _, c := range d.Requires() {
		requires = append(requires, c.String())
	}
	return procedureInfo{
		Name:        d.Name(),
		Signature:   d.Signature(),
		Description: d.Description(),
		Requires:    requires,
	}
}

type callRequest struct {
	Args []any `json:"args"`
}

type callResponse struct {
	Records []procedure.Record `json:"records"`
}

// CallProcedure invokes the procedure named in the path.
func (h *Handler) CallProcedure(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	records, err := h.dispatcher.Call(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "name"), req.Args)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []procedure.Record{}
	}
	writeJSON(w, http.StatusOK, callResponse{Records: records})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), slog.Default(), "api request failed", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: errutil.Code(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}
