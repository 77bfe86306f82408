// Package graphql executes named operations against the remote GraphQL
// endpoint and normalizes every failure into a *core.Error.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"banco/internal/core"
	"banco/internal/log"
)

const maxResponseBytes = 8 << 20

// Operation is one named query or mutation with its variables.
type Operation struct {
	Name      string
	Document  string
	Variables map[string]any
}

type request struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Error is a single entry of a GraphQL "errors" array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, if any.
func (e Error) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Client struct {
	endpoint string
	http     Doer
	logger   *log.Logger
}

func NewClient(endpoint string, httpClient Doer, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		logger:   log.OrNop(logger).WithComponent(log.ComponentGraphQL),
	}
}

// Execute performs exactly one round-trip. On partial success both the data
// and a non-nil error are returned. The error is always a *core.Error.
func (c *Client) Execute(ctx context.Context, op Operation) (json.RawMessage, error) {
	body, err := json.Marshal(request{OperationName: op.Name, Query: op.Document, Variables: op.Variables})
	if err != nil {
		return nil, &core.Error{Kind: core.KindTransport, Op: op.Name, Message: "could not encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &core.Error{Kind: core.KindTransport, Op: op.Name, Message: "could not build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "GraphQL request failed", log.FieldOperation, op.Name, log.FieldError, err)
		return nil, &core.Error{Kind: core.KindTransport, Op: op.Name, Message: "backend unreachable", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &core.Error{Kind: core.KindTransport, Op: op.Name, Message: "could not read response", StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.DebugContext(ctx, "GraphQL response received",
		log.FieldOperation, op.Name,
		log.FieldStatusCode, resp.StatusCode,
		"bytes", len(payload))

	return decodeResponse(op.Name, resp.StatusCode, payload)
}

func decodeResponse(opName string, status int, payload []byte) (json.RawMessage, error) {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		msg := firstMessage(payload)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, &core.Error{Kind: core.KindSession, Op: opName, Message: msg, StatusCode: status}
	}

	if !gjson.ValidBytes(payload) {
		msg := "invalid response from backend"
		if status >= 300 {
			msg = fmt.Sprintf("backend returned %d", status)
		}
		return nil, &core.Error{Kind: core.KindTransport, Op: opName, Message: msg, StatusCode: status}
	}

	var data json.RawMessage
	if d := gjson.GetBytes(payload, "data"); d.Exists() && d.Type != gjson.Null {
		data = json.RawMessage(d.Raw)
	}

	errs := gjson.GetBytes(payload, "errors")
	if errs.IsArray() && len(errs.Array()) > 0 {
		var gqlErrs []Error
		if err := json.Unmarshal([]byte(errs.Raw), &gqlErrs); err != nil {
			return data, &core.Error{Kind: core.KindTransport, Op: opName, Message: "malformed errors in response", StatusCode: status, Err: err}
		}
		return data, normalize(opName, status, gqlErrs)
	}

	if status < 200 || status >= 300 {
		return nil, &core.Error{Kind: core.KindTransport, Op: opName, Message: fmt.Sprintf("backend returned %d", status), StatusCode: status}
	}

	if data == nil {
		return nil, &core.Error{Kind: core.KindTransport, Op: opName, Message: "response carried no data", StatusCode: status}
	}
	return data, nil
}

// normalize turns a GraphQL errors array into a single error. Any
// authentication failure wins over domain failures.
func normalize(opName string, status int, errs []Error) error {
	messages := make([]string, 0, len(errs))
	kind := core.KindDomain
	for _, e := range errs {
		messages = append(messages, e.Message)
		if isSessionError(e) {
			kind = core.KindSession
		}
	}
	return &core.Error{
		Kind:       kind,
		Op:         opName,
		Message:    strings.Join(messages, "; "),
		StatusCode: status,
		Err:        &Errors{List: errs},
	}
}

// Errors carries the raw GraphQL errors behind a normalized *core.Error.
type Errors struct {
	List []Error
}

func (e *Errors) Error() string {
	parts := make([]string, 0, len(e.List))
	for _, item := range e.List {
		parts = append(parts, item.Message)
	}
	return strings.Join(parts, "; ")
}

// AsErrors extracts the raw GraphQL errors from err.
func AsErrors(err error) ([]Error, bool) {
	var e *Errors
	if errors.As(err, &e) {
		return e.List, true
	}
	return nil, false
}

var sessionMarkers = []string{
	"unauthenticated",
	"not authenticated",
	"unauthorized",
	"invalid token",
	"token expired",
	"expired token",
	"token inválido",
	"token expirado",
	"não autenticado",
	"não autorizado",
}

func isSessionError(e Error) bool {
	switch strings.ToUpper(e.Code()) {
	case "UNAUTHENTICATED", "FORBIDDEN":
		return true
	}
	msg := strings.ToLower(e.Message)
	for _, marker := range sessionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func firstMessage(payload []byte) string {
	if !gjson.ValidBytes(payload) {
		return ""
	}
	if m := gjson.GetBytes(payload, "errors.0.message"); m.Exists() {
		return m.String()
	}
	return gjson.GetBytes(payload, "detail").String()
}
