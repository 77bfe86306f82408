package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"banco/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"cpf":"11111111111","senha":"1234"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"cpf":"1","token":"x"}`, true},
		{"trailing data", `{"cpf":"1"}{"cpf":"2"}`, true},
		{"malformed", `{"cpf":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			var c core.Credentials
			err := DecodeJSON(httptest.NewRecorder(), r, &c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(""))
	var c core.Credentials
	if err := DecodeJSON(httptest.NewRecorder(), r, &c); !errors.Is(err, errEmptyBody) {
		t.Fatalf("error = %v, want errEmptyBody", err)
	}
}

func TestParseAccountNumber(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"7", 7, false},
		{" 12 ", 12, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"numero": tt.raw})
			got, err := ParseAccountNumber(r, "numeroConta")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
			if err != nil && !core.IsKind(err, core.KindValidation) {
				t.Errorf("kind = %s, want validation", core.KindOf(err))
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Ana  ", "Ana"},
		{"Rua\x00 A\x07", "Rua A"},
		{"linha\tum", "linha\tum"},
	}
	for _, tt := range tests {
		if got := SanitizeInput(tt.in); got != tt.want {
			t.Errorf("SanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
