// Copyright (c) OpenFaaS Author(s) 2021. All rights reserved.
// Licensed under the MIT license. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/openfaas/deploy-watchdog/config"
	"github.com/openfaas/deploy-watchdog/executor"
	"github.com/openfaas/deploy-watchdog/metrics"
)

// deployIDs numbers deploys so concurrent runs can be told apart in the log.
var deployIDs uint64

// makeDeployRequestHandler runs the deploy script once per request, on any
// path, and relays its merged output as a text/plain body. Status is 200
// only when the script exits with code 0.
func makeDeployRequestHandler(watchdogConfig config.WatchdogConfig, deployMetrics *metrics.Deploy) http.HandlerFunc {
	deployInvoker := executor.DeployRunner{
		ExecTimeout:   watchdogConfig.ExecTimeout,
		LogOutput:     watchdogConfig.LogOutput,
		LogPrefix:     watchdogConfig.PrefixLogs,
		LogBufferSize: watchdogConfig.LogBufferSize,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		requestURI := r.RequestURI
		if len(requestURI) == 0 {
			requestURI = r.URL.RequestURI()
		}

		deployID := atomic.AddUint64(&deployIDs, 1)
		log.Printf("REQUEST [%d]: %s %s", deployID, r.Method, requestURI)

		var environment []string
		if watchdogConfig.InjectCGIHeaders {
			environment = getEnvironment(r)
		}

		commandName, arguments := watchdogConfig.Process()
		if watchdogConfig.OperationalMode == config.ModePath {
			arguments = append(arguments, requestURI)
		}

		req := executor.DeployRequest{
			Process:     commandName,
			ProcessArgs: arguments,
			Environment: environment,
			Dir:         watchdogConfig.DeployDir,
		}

		if deployMetrics != nil {
			deployMetrics.InFlight.Inc()
			defer deployMetrics.InFlight.Dec()
		}

		// A client that hangs up must not abort a deploy half way through.
		res, err := deployInvoker.Run(context.Background(), req)

		w.Header().Set("Content-Type", "text/plain")

		if err != nil {
			log.Printf("RESPONSE [%d]: %d, error: %s", deployID, http.StatusInternalServerError, err)
			if deployMetrics != nil {
				deployMetrics.Observe(metrics.ResultError, res.ExitCode, res.Duration)
			}

			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}

		status := http.StatusOK
		result := metrics.ResultSuccess
		switch {
		case res.TimedOut:
			status = http.StatusInternalServerError
			result = metrics.ResultTimeout
		case !res.Success():
			status = http.StatusInternalServerError
			result = metrics.ResultFailure
		}

		if deployMetrics != nil {
			deployMetrics.Observe(result, res.ExitCode, res.Duration)
		}

		log.Printf("RESPONSE [%d]: %d, exit code: %d, %d bytes", deployID, status, res.ExitCode, len(res.Output))

		w.WriteHeader(status)
		if _, err := w.Write(res.Output); err != nil {
			log.Printf("Error writing response for %s: %s", requestURI, err)
		}
	}
}

func getEnvironment(r *http.Request) []string {
	var envs []string

	envs = os.Environ()
	for k, v := range r.Header {
		kv := fmt.Sprintf("Http_%s=%s", strings.ReplaceAll(k, "-", "_"), v[0])
		envs = append(envs, kv)
	}
	envs = append(envs, fmt.Sprintf("Http_Method=%s", r.Method))

	if len(r.URL.RawQuery) > 0 {
		envs = append(envs, fmt.Sprintf("Http_Query=%s", r.URL.RawQuery))
	}

	if len(r.URL.Path) > 0 {
		envs = append(envs, fmt.Sprintf("Http_Path=%s", r.URL.Path))
	}

	return envs
}
