// Copyright (c) OpenFaaS Author(s) 2021. All rights reserved.
// Licensed under the MIT license. See LICENSE file in the project root for full license information.

package metrics

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves /metrics along with any probe handlers on a port
// separate from the deploy port, so that every path on the deploy port
// still triggers a deploy.
type MetricsServer struct {
	s        *http.Server
	mux      *http.ServeMux
	registry *prometheus.Registry
	port     int
}

// NewMetricsServer creates a registry with the Go and process collectors.
func NewMetricsServer(port int) *MetricsServer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	readTimeout := 5 * time.Second
	writeTimeout := 5 * time.Second

	return &MetricsServer{
		s: &http.Server{
			Addr:           fmt.Sprintf(":%d", port),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			MaxHeaderBytes: 1 << 20, // Max header of 1MB
			Handler:        mux,
		},
		mux:      mux,
		registry: registry,
		port:     port,
	}
}

// Registerer is where deploy and HTTP metrics are registered.
func (m *MetricsServer) Registerer() prometheus.Registerer {
	return m.registry
}

// Handle adds a handler, such as a health check, to the metrics port.
func (m *MetricsServer) Handle(pattern string, handler http.Handler) {
	m.mux.Handle(pattern, handler)
}

// Handler returns the mux, used in tests.
func (m *MetricsServer) Handler() http.Handler {
	return m.mux
}

// Serve listens until ctx is done, then shuts down.
func (m *MetricsServer) Serve(ctx context.Context) {
	log.Printf("Metrics listening on port: %d\n", m.port)

	go func() {
		if err := m.s.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Error from metrics server: %s", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.s.Shutdown(shutdownCtx)
	}()
}
