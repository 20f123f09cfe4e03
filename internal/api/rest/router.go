package rest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries the wiring knobs the router needs.
type RouterConfig struct {
	JWTSecret string
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter assembles the HTTP surface. The API routes sit behind
// authentication; the webhook and operational endpoints do not, since
// vendors and probes cannot carry our tokens.
func NewRouter(handler *Handler, logger *zap.Logger, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	auth := AuthMiddleware(cfg.JWTSecret, logger)
	mux.Handle("POST /api/v1/dispatch", auth(http.HandlerFunc(handler.handleDispatch)))
	mux.Handle("GET /api/v1/admission", auth(http.HandlerFunc(handler.handleAdmission)))

	mux.HandleFunc("POST /api/v1/webhooks/inbound", handler.handleInbound)

	mux.HandleFunc("GET /healthz", handler.handleHealthz)
	mux.HandleFunc("GET /readyz", handler.handleReadyz)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return Chain(mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
	)
}
