// Package http exposes the banking console over a JSON API.
//
// This file implements the builder used for every JSON response and the
// mapping from domain failures to HTTP statuses.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"banco/internal/bank"
	"banco/internal/core"
	"banco/internal/services"
	"banco/internal/session"
	"banco/internal/sheets"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	data       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.data)
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Fields  map[string]string `json:"fields,omitempty"`
	Partial bool              `json:"partial,omitempty"`
	Queued  bool              `json:"queued,omitempty"`
}

const kindInFlight = "in_flight"

// ErrorResponse maps err to a status and an ErrorBody.
func ErrorResponse(err error) *JSONResponseBuilder {
	status, body := describeError(err)
	return NewJSONResponse().Status(status).Data(body)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods).
		Data(ErrorBody{Error: "method not allowed", Kind: string(core.KindValidation)})
}

// BadRequestError reports a body that could not be decoded at all.
func BadRequestError(message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusBadRequest).
		Data(ErrorBody{Error: message, Kind: string(core.KindValidation)})
}

func describeError(err error) (int, ErrorBody) {
	body := ErrorBody{Error: core.Message(err), Kind: string(core.KindOf(err))}

	var partial *services.PartialFailureError
	if errors.As(err, &partial) {
		body.Error = partial.Error()
		body.Partial = true
		body.Queued = partial.Queued
		return http.StatusConflict, body
	}

	var ve *core.ValidationError
	switch {
	case errors.Is(err, services.ErrInFlight):
		body.Kind = kindInFlight
		return http.StatusConflict, body
	case errors.Is(err, session.ErrNoSession):
		body.Kind = string(core.KindSession)
		return http.StatusUnauthorized, body
	case errors.Is(err, sheets.ErrNotConfigured):
		return http.StatusServiceUnavailable, body
	case errors.As(err, &ve):
		body.Fields = ve.Fields
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, bank.ErrAccountNotFound):
		return http.StatusNotFound, body
	}

	switch core.KindOf(err) {
	case core.KindDomain:
		return http.StatusConflict, body
	case core.KindTransport:
		return http.StatusBadGateway, body
	case core.KindSession:
		return http.StatusUnauthorized, body
	default:
		return http.StatusInternalServerError, body
	}
}
