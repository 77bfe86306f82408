package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"banco/internal/bank"
	"banco/internal/gateway"
	"banco/internal/guard"
	"banco/internal/log"
	"banco/internal/metrics"
	"banco/internal/middleware/ratelimit"
	"banco/internal/middleware/security"
	"banco/internal/middleware/trace"
	"banco/internal/services"
	"banco/internal/session"
	"banco/internal/sheets"
)

// SessionView is the part of the session store the handlers use.
type SessionView interface {
	Authenticated() bool
	DisplayName() string
	Current() (session.Session, error)
	Logout(ctx context.Context) error
}

// Deps groups everything the server needs.
type Deps struct {
	Session  SessionView
	Bank     *bank.Client
	Actions  *services.Orchestrator
	Guard    *guard.Guard
	Exporter sheets.MetricsExporter // nil disables /dashboard/export
	Logger   *log.Logger

	LoginRateLimit ratelimit.Config

	// Ready reports whether the backend can be reached. Optional.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	deps     Deps
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	clientIP *security.ClientIPResolver
	tracer   *trace.Middleware
	upgrader websocket.Upgrader
	started  time.Time

	// done is closed on shutdown so long-lived websocket handlers exit.
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := log.OrNop(deps.Logger).WithComponent(log.ComponentHTTP)
	clientIP := security.NewClientIPResolver()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(deps.LoginRateLimit),
		clientIP: clientIP,
		tracer:   trace.NewMiddleware(clientIP.ClientIP),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		started: time.Now(),
		done:    make(chan struct{}),
	}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)
	if deps.Guard != nil {
		r.Use(deps.Guard.Middleware)
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError("").Write(w)
	})

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/login", s.handleLoginState).Methods(http.MethodGet)
	r.Handle("/login", s.limiter.Middleware(clientIP.ClientIP, s.onLoginLimited)(
		http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	r.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)

	// Protected by the guard.
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/live", s.handleDashboardLive).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/actions", s.handleActions).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/export", s.handleExport).Methods(http.MethodPost)
	r.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{numero}/statement", s.handleStatement).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{numero}/operations", s.handleAccountOperation).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{numero}/transfers", s.handleTransfer).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{numero}/limit", s.handleUpdateLimit).Methods(http.MethodPut)
	r.HandleFunc("/operations", s.handleDefaultOperation).Methods(http.MethodPost)
	r.HandleFunc("/seed", s.handleSeed).Methods(http.MethodPost)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = log.Middleware(logger)(s.tracer.Middleware(headers.Middleware(r)))
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onLoginLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Login rate limit exceeded",
		log.FieldClientIP, s.clientIP.ClientIP(r))
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Header("Retry-After", "60").
		Data(ErrorBody{Error: "Muitas tentativas de login. Tente novamente mais tarde.", Kind: "rate_limited"}).
		Write(w)
}

// handleIndex sends the operator to the dashboard or to the login page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	target := guard.LoginPath
	if s.deps.Session.Authenticated() {
		target = "/dashboard"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.deps.Ready != nil {
		if err := s.deps.Ready(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	entries := s.deps.Bank.Gateway().Entries()
	loading := 0
	for _, e := range entries {
		if e.Status == gateway.StatusLoading {
			loading++
		}
	}
	checks["view_store"] = map[string]any{
		"entries": len(entries),
		"loading": loading,
		"seq":     s.deps.Bank.Gateway().LastSeq(),
	}
	checks["session"] = map[string]any{"authenticated": s.deps.Session.Authenticated()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}
	checks["kpi_export"] = s.deps.Exporter != nil

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
