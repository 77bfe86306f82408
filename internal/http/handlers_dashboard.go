package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"banco/internal/bank"
	"banco/internal/core"
	"banco/internal/dashboard"
	"banco/internal/gateway"
	"banco/internal/log"
	"banco/internal/sheets"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePongTimeout  = 60 * time.Second
	livePingInterval = 30 * time.Second
)

// dashboardResponse is the wire shape of a dashboard view.
type dashboardResponse struct {
	Status      gateway.Status    `json:"status"`
	Seq         uint64            `json:"seq"`
	Usuarios    []core.User       `json:"usuarios"`
	Metrics     dashboard.Metrics `json:"metrics"`
	ContaPadrao *int              `json:"contaPadrao,omitempty"`
	Erro        string            `json:"erro,omitempty"`
}

func toDashboardResponse(v bank.DashboardView) dashboardResponse {
	resp := dashboardResponse{
		Status:   v.Status,
		Seq:      v.Seq,
		Usuarios: v.Users,
		Metrics:  v.Metrics,
	}
	if resp.Usuarios == nil {
		resp.Usuarios = []core.User{}
	}
	if acc, ok := dashboard.DefaultOperationTarget(v.Users); ok {
		n := acc.Numero
		resp.ContaPadrao = &n
	}
	if v.Err != nil {
		resp.Erro = core.Message(v.Err)
	}
	return resp
}

// handleDashboard serves the user graph and its metrics. refresh=true drops
// the cached graph first.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	load := s.deps.Bank.Dashboard
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		load = s.deps.Bank.Refresh
	}

	view, err := load(r.Context())
	if err != nil && len(view.Users) == 0 {
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(toDashboardResponse(view)).Write(w)
}

// handleDashboardLive streams every dashboard state over a websocket until
// the peer goes away or the server shuts down.
func (s *Server) handleDashboardLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Websocket upgrade failed", log.FieldError, err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := log.FromContext(r.Context())

	// The read pump only exists to notice the peer closing.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongTimeout))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	views := s.deps.Bank.WatchDashboard(ctx)
	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	for {
		select {
		case view, ok := <-views:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(toDashboardResponse(view)); err != nil {
				logger.DebugContext(ctx, "Live dashboard write failed", log.FieldError, err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(liveWriteTimeout))
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleActions lists the state of every action control.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.deps.Actions.Statuses()).Write(w)
}

// handleExport appends the current KPIs to the configured sheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		ErrorResponse(sheets.ErrNotConfigured).Write(w)
		return
	}
	view, err := s.deps.Bank.Dashboard(r.Context())
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}

	ref, err := s.deps.Exporter.AppendMetrics(r.Context(), time.Now(), view.Metrics)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "KPI export failed", log.FieldError, err)
		NewJSONResponse().Status(http.StatusBadGateway).
			Data(ErrorBody{Error: "Falha ao exportar indicadores", Kind: string(core.KindTransport)}).
			Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(map[string]any{
		"ref":     ref,
		"metrics": view.Metrics,
	}).Write(w)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Actions.SeedDemoData(r.Context()); err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]bool{"ok": true}).Write(w)
}
