// Package metrics exposes Prometheus instrumentation for the context factory
// and a standalone metrics server, served separately from the API listener.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProvisionDispatched counts provisioning batches handed to the platform.
	ProvisionDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_provision_dispatched_total",
		Help: "Number of provisioning batches dispatched to the platform.",
	})

	// ProvisionRejected counts requests aborted by a synchronous gate before
	// any batch was scheduled.
	ProvisionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_provision_rejected_total",
		Help: "Number of provisioning requests rejected before dispatch.",
	}, []string{"reason"})

	// ProvisionSettled counts reconciled batch outcomes.
	ProvisionSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_provision_settled_total",
		Help: "Number of settled provisioning batches by outcome.",
	}, []string{"outcome"})

	// PayloadReplacements counts successful payload store replacements.
	PayloadReplacements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_payload_replacements_total",
		Help: "Number of successful payload replacements.",
	})

	// PayloadSizeBytes tracks the size of the currently stored payload.
	PayloadSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factory_payload_size_bytes",
		Help: "Size in bytes of the currently stored payload.",
	})
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service name and listen address.
func New(name, listenAddr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factory_build_info",
		Help: "Build information.",
	}, []string{"service"})
	if err := prometheus.Register(buildInfo); err != nil {
		// Re-registration happens in tests that construct multiple servers.
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return nil, err
		}
	} else {
		buildInfo.WithLabelValues(name).Set(1)
	}

	return &MetricsServer{
		srv: &http.Server{
			Addr:    listenAddr,
			Handler: mux,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
