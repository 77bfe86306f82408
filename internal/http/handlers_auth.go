package http

import (
	"errors"
	"net/http"
	"time"

	"banco/internal/core"
	"banco/internal/log"
	"banco/internal/services"
)

type sessionState struct {
	Authenticated bool       `json:"authenticated"`
	Usuario       string     `json:"usuario,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) currentState() sessionState {
	st := sessionState{
		Authenticated: s.deps.Session.Authenticated(),
		Usuario:       s.deps.Session.DisplayName(),
	}
	if cur, err := s.deps.Session.Current(); err == nil && !cur.ExpiresAt.IsZero() {
		exp := cur.ExpiresAt
		st.ExpiresAt = &exp
	}
	return st
}

// handleLoginState reports whether an operator is signed in.
func (s *Server) handleLoginState(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.currentState()).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c core.Credentials
	if err := DecodeJSON(w, r, &c); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c.CPF = SanitizeInput(c.CPF)

	if _, err := s.deps.Actions.Login(r.Context(), c); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Login rejected",
			log.FieldErrorKind, string(core.KindOf(err)),
			log.FieldError, err)
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(s.currentState()).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Logout failed", log.FieldError, err)
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(sessionState{}).Write(w)
}

// handleCreateUser runs the sign-up saga. A half-finished sign-up answers
// 409 with the created user so the operator can see what exists.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var u core.NewUser
	if err := DecodeJSON(w, r, &u); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	signup, err := s.deps.Actions.CreateUser(r.Context(), sanitizeNewUser(u))
	if err != nil {
		var partial *services.PartialFailureError
		if errors.As(err, &partial) {
			status, body := describeError(err)
			NewJSONResponse().Status(status).Data(struct {
				ErrorBody
				Usuario any `json:"usuario"`
			}{body, partial.User}).Write(w)
			return
		}
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(signup).Write(w)
}
