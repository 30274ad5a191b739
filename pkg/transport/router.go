package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// InputPath is where the input endpoint is mounted.
	InputPath string

	// MetricsPath is where Prometheus metrics are served. Empty disables
	// the endpoint.
	MetricsPath string

	// Gatherer is the metrics source. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter mounts the input endpoint, /healthz and the metrics endpoint.
func NewRouter(input http.Handler, config RouterConfig) chi.Router {
	if config.InputPath == "" {
		config.InputPath = "/input"
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Handle(config.InputPath, input)

	if config.MetricsPath != "" {
		r.Handle(config.MetricsPath, promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
