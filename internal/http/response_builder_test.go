package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidwall/gjson"

	"banco/internal/bank"
	"banco/internal/core"
	"banco/internal/services"
	"banco/internal/session"
	"banco/internal/sheets"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Data(map[string]int{"numero": 3}).
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := gjson.Get(rr.Body.String(), "numero").Int(); got != 3 {
		t.Errorf("numero = %d", got)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
}

func TestErrorResponse_StatusMapping(t *testing.T) {
	validation := &core.ValidationError{}
	validation.Add("valor", "required")

	tests := []struct {
		name     string
		err      error
		status   int
		kind     string
		partial  bool
		hasField string
	}{
		{"validation", validation, http.StatusUnprocessableEntity, "validation", false, "valor"},
		{"domain", &core.Error{Kind: core.KindDomain, Message: "Saldo insuficiente."}, http.StatusConflict, "domain", false, ""},
		{"transport", &core.Error{Kind: core.KindTransport, Message: "backend unreachable"}, http.StatusBadGateway, "transport", false, ""},
		{"session", &core.Error{Kind: core.KindSession, Message: "Token expirado"}, http.StatusUnauthorized, "session", false, ""},
		{"no session", session.ErrNoSession, http.StatusUnauthorized, "session", false, ""},
		{"in flight", fmt.Errorf("operate: %w", services.ErrInFlight), http.StatusConflict, kindInFlight, false, ""},
		{"unknown account", fmt.Errorf("%w: 9", bank.ErrAccountNotFound), http.StatusNotFound, "domain", false, ""},
		{"export disabled", sheets.ErrNotConfigured, http.StatusServiceUnavailable, "unknown", false, ""},
		{"partial", &services.PartialFailureError{
			User: bank.CreatedUser{Nome: "Carla"},
			Err:  &core.Error{Kind: core.KindDomain, Message: "boom"},
		}, http.StatusConflict, "domain", true, ""},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			ErrorResponse(tt.err).Write(rr)
			body := rr.Body.String()

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if got := gjson.Get(body, "kind").String(); got != tt.kind {
				t.Errorf("kind = %q, want %q", got, tt.kind)
			}
			if got := gjson.Get(body, "partial").Bool(); got != tt.partial {
				t.Errorf("partial = %v, want %v", got, tt.partial)
			}
			if tt.hasField != "" && !gjson.Get(body, "fields."+tt.hasField).Exists() {
				t.Errorf("missing field %q in %s", tt.hasField, body)
			}
			if gjson.Get(body, "error").String() == "" {
				t.Error("error message missing")
			}
		})
	}
}
