// Package gateway is the single entry point to the remote backend. Queries
// are exposed as long-lived subscriptions over a shared view store; mutations
// are one-shot calls followed by invalidate-and-reload of the queries they
// affect. The store is a pure cache: nothing here ever patches a cached
// result locally.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"banco/internal/graphql"
)

// FetchPolicy decides whether a watch may be answered from the view store.
type FetchPolicy int

const (
	// CacheFirst serves a ready cached value and only fetches when there is none.
	CacheFirst FetchPolicy = iota
	// NetworkOnly fetches on every watch and never retains results.
	NetworkOnly
)

func (p FetchPolicy) String() string {
	if p == NetworkOnly {
		return "network-only"
	}
	return "cache-first"
}

type Query struct {
	Name     string
	Document string
	Policy   FetchPolicy
}

type Mutation struct {
	Name     string
	Document string
}

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Snapshot is one state of a query result as seen by subscribers. A loading
// snapshot may still carry the previous data while a refetch is in flight.
// A ready snapshot may carry Err when the backend returned partial data.
type Snapshot struct {
	Key       string
	Query     string
	Status    Status
	Data      json.RawMessage
	Err       error
	Seq       uint64
	FetchedAt time.Time
}

var ErrNoData = errors.New("snapshot carries no data")

// Settled reports whether the snapshot is a final result rather than loading.
func (s Snapshot) Settled() bool {
	return s.Status == StatusReady || s.Status == StatusError
}

// Decode unmarshals the snapshot data into v.
func (s Snapshot) Decode(v any) error {
	if len(s.Data) == 0 {
		if s.Err != nil {
			return s.Err
		}
		return ErrNoData
	}
	return json.Unmarshal(s.Data, v)
}

// Executor performs one round-trip to the backend. *graphql.Client
// implements it.
type Executor interface {
	Execute(ctx context.Context, op graphql.Operation) (json.RawMessage, error)
}

// MutateRequest describes one mutation and its cache consequences.
type MutateRequest struct {
	Mutation  Mutation
	Variables map[string]any
	// Invalidates names the queries to mark stale and reload on success.
	Invalidates []string
	// OnSuccess runs after the response and before any invalidation.
	OnSuccess func(data json.RawMessage)
}

// EntryInfo describes one view store entry.
type EntryInfo struct {
	Key         string `json:"key"`
	Query       string `json:"query"`
	Status      Status `json:"status"`
	Subscribers int    `json:"subscribers"`
	Seq         uint64 `json:"seq"`
	Retained    bool   `json:"retained"`
}
