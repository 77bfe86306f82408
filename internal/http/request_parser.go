// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON bodies, account numbers in paths and free-text input.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"banco/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON reads one JSON object from the request body into v. Unknown
// fields are rejected so that typos surface instead of silently zeroing
// amounts.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// ParseAccountNumber extracts the {numero} path variable. An invalid value
// is a validation failure on field.
func ParseAccountNumber(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(mux.Vars(r)["numero"])
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		v := &core.ValidationError{}
		v.Add(field, "must be a positive account number")
		return 0, v
	}
	return n, nil
}

// SanitizeInput removes control characters except tab, newline and carriage
// return, and trims surrounding whitespace.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// sanitizeNewUser cleans the free-text fields of a sign-up.
func sanitizeNewUser(u core.NewUser) core.NewUser {
	u.Nome = SanitizeInput(u.Nome)
	u.CPF = SanitizeInput(u.CPF)
	u.DataNascimento = SanitizeInput(u.DataNascimento)
	u.Endereco = SanitizeInput(u.Endereco)
	return u
}
