package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"alliance.fr/admin/internal/area"
	"alliance.fr/admin/internal/audit"
	"alliance.fr/admin/internal/auth"
	"alliance.fr/admin/internal/obs"
)

// ServiceName identifies this API in health responses and the gRPC health service.
const ServiceName = "alliance-admin-api"

// ReadyProbe checks readiness, e.g. that the database answers.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries every dependency of the HTTP layer.
type Options struct {
	Version          string
	Verifier         *auth.Verifier
	Signer           *auth.Signer
	Resolver         *area.Resolver
	Ready            ReadyProbe
	Logger           *zap.Logger
	Metrics          *obs.Metrics
	UnifyLoginErrors bool
	RateBurst        int
	RatePerSecond    int
	AllowedOrigins   []string
	MaxBodyBytes     int64
	TrustedProxies   []string
}

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	opts    Options
	guard   *area.Guard
	log     *zap.Logger
	audit   *audit.Logger
	metrics *obs.Metrics
}

func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = obs.NewMetrics()
	}
	if opts.Resolver == nil {
		opts.Resolver = area.MustResolver(area.DefaultServices)
	}
	if opts.Signer == nil {
		opts.Signer = auth.NewSigner("")
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	opts.Metrics.SetBuildInfo(opts.Version)

	clientIPs, err := NewClientIPResolver(opts.TrustedProxies)
	if err != nil {
		opts.Logger.Warn("ignoring trusted proxies", zap.Error(err))
		clientIPs = &ClientIPResolver{}
	}

	a := &API{
		mux:     http.NewServeMux(),
		opts:    opts,
		guard:   area.NewGuard(opts.Resolver),
		log:     opts.Logger,
		audit:   audit.New(opts.Logger),
		metrics: opts.Metrics,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", a.metrics.Handler())

	a.mux.Handle("/v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), opts.RateBurst, opts.RatePerSecond, clientIPs.ClientIP))
	a.mux.HandleFunc("/v1/session", a.handleSession)
	a.mux.HandleFunc("/v1/services", a.handleServices)
	a.mux.HandleFunc("/v1/areas/", a.handleArea)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "route not found", "")
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(a.opts.AllowedOrigins, h)
	h = SecurityHeaders(h)
	h = LoggingJSON(a.log, h)
	h = Recover(a.log, h)
	h = RequestID(h)
	return a.metrics.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": ServiceName,
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.opts.Ready.Check(ctx); err != nil {
		a.log.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"token_signing":   a.opts.Signer.Configured(),
		"login_available": a.opts.Verifier != nil,
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    ServiceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.opts.Version,
	})
}
