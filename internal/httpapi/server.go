package httpapi

import (
	"context"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smsrelay/internal/observability"
)

const readyzTimeout = 2 * time.Second

type Server struct {
	Mux *mux.Router
}

// New returns a router with request logging and metrics plus the operational
// endpoints /healthz, /readyz and /metrics.
func New(ready ...func(ctx context.Context) error) *Server {
	r := mux.NewRouter()
	r.Use(Logging, Metrics(observability.APIRequests))
	r.Handle("/healthz", Healthz()).Methods("GET")
	r.Handle("/readyz", Readyz(readyzTimeout, ready...)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return &Server{Mux: r}
}
