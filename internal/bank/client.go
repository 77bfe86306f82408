package bank

import (
	"context"

	"banco/internal/core"
	"banco/internal/dashboard"
	"banco/internal/gateway"
)

// DashboardView is one state of the dashboard: the user graph, the metrics
// derived from it and how fresh it is.
type DashboardView struct {
	Status  gateway.Status    `json:"status"`
	Users   []core.User       `json:"usuarios"`
	Metrics dashboard.Metrics `json:"metrics"`
	Err     error             `json:"-"`
	Seq     uint64            `json:"seq"`
}

// Client reads the backend through the gateway.
type Client struct {
	gw *gateway.Gateway
}

func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

// Gateway returns the underlying gateway.
func (c *Client) Gateway() *gateway.Gateway {
	return c.gw
}

// ViewOf turns a GetUsuarios snapshot into a dashboard view. Metrics are
// derived from whatever data the snapshot carries, stale data included.
func ViewOf(snap gateway.Snapshot) DashboardView {
	v := DashboardView{Status: snap.Status, Err: snap.Err, Seq: snap.Seq}
	if len(snap.Data) == 0 {
		v.Metrics = dashboard.Derive(nil)
		return v
	}
	users, err := DecodeUsers(snap)
	if err != nil {
		v.Status = gateway.StatusError
		v.Err = err
		v.Metrics = dashboard.Derive(nil)
		return v
	}
	v.Users = users
	v.Metrics = dashboard.Derive(users)
	return v
}

// WatchDashboard follows the user graph until ctx is done. A slow reader
// only sees the latest view. The returned channel is closed on exit.
func (c *Client) WatchDashboard(ctx context.Context) <-chan DashboardView {
	sub := c.gw.Watch(ctx, UsersQuery, nil)
	out := make(chan DashboardView, 1)

	go func() {
		defer close(out)
		defer sub.Close()
		for snap := range sub.Updates() {
			view := ViewOf(snap)
			select {
			case out <- view:
				continue
			default:
			}
			select {
			case <-out:
			default:
			}
			select {
			case out <- view:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Dashboard returns the first settled dashboard view.
func (c *Client) Dashboard(ctx context.Context) (DashboardView, error) {
	snap, err := c.gw.Query(ctx, UsersQuery, nil)
	if snap.Status == "" {
		return DashboardView{}, err
	}
	view := ViewOf(snap)
	if view.Status == gateway.StatusError {
		return view, view.Err
	}
	return view, nil
}

// Refresh drops any cached user graph and reads it again.
func (c *Client) Refresh(ctx context.Context) (DashboardView, error) {
	c.gw.Invalidate(QueryUsers)
	return c.Dashboard(ctx)
}

// Statement fetches the statement of one account, always from the network.
func (c *Client) Statement(ctx context.Context, numero int) (core.Statement, error) {
	snap, err := c.gw.Query(ctx, StatementQuery, StatementVars(numero))
	if err != nil && len(snap.Data) == 0 {
		return core.Statement{}, err
	}
	return DecodeStatement(snap, numero)
}
