// Copyright (c) OpenFaaS Author(s) 2021. All rights reserved.
// Licensed under the MIT license. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	limiter "github.com/openfaas/faas-middleware/concurrency-limiter"
	"github.com/spf13/pflag"

	"github.com/openfaas/deploy-watchdog/config"
	"github.com/openfaas/deploy-watchdog/metrics"
)

func main() {
	atomic.StoreInt32(&acceptingConnections, 0)

	watchdogConfig, configErr := config.New(os.Environ())
	if configErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", configErr.Error())
		os.Exit(1)
	}

	if err := config.ApplyFlags(&watchdogConfig, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}

	scriptPath := watchdogConfig.DeployScript
	if !filepath.IsAbs(scriptPath) && len(watchdogConfig.DeployDir) > 0 {
		scriptPath = filepath.Join(watchdogConfig.DeployDir, scriptPath)
	}
	if _, err := os.Stat(scriptPath); err != nil {
		log.Printf("Warning: deploy script %s is not readable yet: %s", scriptPath, err)
	}

	metricsServer := metrics.NewMetricsServer(watchdogConfig.MetricsPort)
	httpMetrics := metrics.NewHttp(metricsServer.Registerer())
	deployMetrics := metrics.NewDeploy(metricsServer.Registerer())

	var requestHandler http.Handler = makeDeployRequestHandler(watchdogConfig, &deployMetrics)

	var limit limiter.Limiter
	if watchdogConfig.MaxInflight > 0 {
		concurrencyLimiter := limiter.NewConcurrencyLimiter(requestHandler, watchdogConfig.MaxInflight)
		requestHandler = concurrencyLimiter
		limit = concurrencyLimiter
	}

	lockCheck := lockFilePresent
	if watchdogConfig.SuppressLock {
		lockCheck = func() bool { return true }
	}

	metricsServer.Handle("/_/health", http.HandlerFunc(makeHealthHandler(lockCheck)))
	metricsServer.Handle("/_/ready", &readiness{
		lockCheck: lockCheck,
		limiter:   limit,
	})

	s := &http.Server{
		Addr:           fmt.Sprintf(":%d", watchdogConfig.TCPPort),
		ReadTimeout:    watchdogConfig.HTTPReadTimeout,
		WriteTimeout:   watchdogConfig.HTTPWriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max header of 1MB
		Handler:        httpMetrics.InstrumentHandler(requestHandler),
	}

	log.Printf("Deploy watchdog mode: %s\tscript: %s %s\n",
		config.WatchdogMode(watchdogConfig.OperationalMode),
		watchdogConfig.DeployShell,
		scriptPath)

	log.Printf("Timeouts: read: %s write: %s exec: %s\n",
		watchdogConfig.HTTPReadTimeout,
		watchdogConfig.HTTPWriteTimeout,
		watchdogConfig.ExecTimeout)

	if watchdogConfig.MaxInflight > 0 {
		log.Printf("Max in-flight deploys: %d\n", watchdogConfig.MaxInflight)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsServer.Serve(ctx)

	listenUntilShutdown(s, watchdogConfig.HealthcheckInterval, watchdogConfig.SuppressLock)
}

// listenUntilShutdown starts the deploy server and blocks until SIGTERM. On
// SIGTERM health checks fail for healthcheckInterval, then the server stops
// accepting connections and waits for in-flight deploys to finish.
func listenUntilShutdown(s *http.Server, healthcheckInterval time.Duration, suppressLock bool) {
	idleConnsClosed := make(chan struct{})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGTERM, os.Interrupt)

		<-sig

		log.Printf("SIGTERM: no new connections in %s\n", healthcheckInterval)
		atomic.StoreInt32(&acceptingConnections, 0)

		if healthcheckInterval > 0 {
			<-time.After(healthcheckInterval)
		}

		log.Printf("No new connections allowed, waiting for in-flight deploys\n")
		if err := s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in Shutdown: %v", err)
		}

		close(idleConnsClosed)
	}()

	go func() {
		log.Printf("Listening on port: %s\n", s.Addr)
		if err := s.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Error ListenAndServe: %v", err)
		}
	}()

	if !suppressLock {
		if err := lock(); err != nil {
			log.Fatalf("Error writing lock file: %s", err)
		}
	}

	atomic.StoreInt32(&acceptingConnections, 1)

	<-idleConnsClosed

	log.Printf("Exiting\n")
}
