// Copyright (c) OpenFaaS Author(s) 2021. All rights reserved.
// Licensed under the MIT license. See LICENSE file in the project root for full license information.

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
)

// WatchdogConfig configuration for a deploy watchdog.
type WatchdogConfig struct {
	TCPPort          int
	MetricsPort      int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ExecTimeout      time.Duration

	// HealthcheckInterval is how long the watchdog reports unhealthy
	// before shutting down the invoke server after a SIGTERM.
	HealthcheckInterval time.Duration

	// DeployShell is the interpreter used to run DeployScript.
	DeployShell string

	// DeployScript is the path to the script, relative to the working directory.
	DeployScript string

	// DeployDir is the working directory of the child process, empty means inherit.
	DeployDir string

	OperationalMode int

	// MaxInflight limits concurrent deploys, 0 means unlimited.
	MaxInflight int

	InjectCGIHeaders bool
	LogOutput        bool
	PrefixLogs       bool
	LogBufferSize    int
	SuppressLock     bool
}

// Process returns the interpreter and the arguments used to run the deploy
// script, without any request-derived arguments.
func (w WatchdogConfig) Process() (string, []string) {
	return w.DeployShell, []string{w.DeployScript}
}

// New create config based upon environmental variables.
func New(env []string) (WatchdogConfig, error) {
	envMap := mapEnv(env)

	defaultLogBufferSize := 64 * units.KiB

	c := WatchdogConfig{
		DeployShell:     "bash",
		DeployScript:    "deploy.sh",
		DeployDir:       envMap["deploy_dir"],
		OperationalMode: ModePath,
	}

	if val := envMap["deploy_shell"]; len(val) > 0 {
		c.DeployShell = val
	}
	if val := envMap["deploy_script"]; len(val) > 0 {
		c.DeployScript = val
	}

	if val := envMap["mode"]; len(val) > 0 {
		c.OperationalMode = WatchdogModeConst(val)
		if c.OperationalMode == 0 {
			return c, fmt.Errorf("unknown mode: %q, valid modes: path, static", val)
		}
	}

	var err error
	if c.TCPPort, err = getInt(envMap, "port", 8080); err != nil {
		return c, err
	}
	if c.MetricsPort, err = getInt(envMap, "metrics_port", 8081); err != nil {
		return c, err
	}
	if c.TCPPort == c.MetricsPort {
		return c, fmt.Errorf("port and metrics_port must differ, both are: %d", c.TCPPort)
	}

	if c.HTTPReadTimeout, err = getDuration(envMap, "read_timeout", 0); err != nil {
		return c, err
	}
	if c.HTTPWriteTimeout, err = getDuration(envMap, "write_timeout", 0); err != nil {
		return c, err
	}
	if c.ExecTimeout, err = getDuration(envMap, "exec_timeout", 0); err != nil {
		return c, err
	}
	if c.HealthcheckInterval, err = getDuration(envMap, "healthcheck_interval", c.HTTPWriteTimeout); err != nil {
		return c, err
	}

	if c.MaxInflight, err = getInt(envMap, "max_inflight", 0); err != nil {
		return c, err
	}
	if c.MaxInflight < 0 {
		return c, fmt.Errorf("max_inflight must be 0 or greater, got: %d", c.MaxInflight)
	}

	if c.LogBufferSize, err = getBytes(envMap, "log_buffer_size", int(defaultLogBufferSize)); err != nil {
		return c, err
	}

	c.InjectCGIHeaders = getBool(envMap, "cgi_headers", false)
	c.LogOutput = getBool(envMap, "log_output", true)
	c.PrefixLogs = getBool(envMap, "prefix_logs", true)
	c.SuppressLock = getBool(envMap, "suppress_lock", false)

	return c, nil
}

func mapEnv(env []string) map[string]string {
	mapped := map[string]string{}

	for _, val := range env {
		key, value, ok := strings.Cut(val, "=")
		if !ok {
			continue
		}
		mapped[key] = value
	}

	return mapped
}

func getDuration(env map[string]string, key string, defaultValue time.Duration) (time.Duration, error) {
	val, exists := env[key]
	if !exists || len(val) == 0 {
		return defaultValue, nil
	}

	// bare numbers are treated as seconds
	if !strings.ContainsAny(val, "nsuµmh") {
		val = val + "s"
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if parsed < 0 {
		return defaultValue, fmt.Errorf("%s must not be negative, got: %s", key, parsed)
	}

	return parsed, nil
}

func getInt(env map[string]string, key string, defaultValue int) (int, error) {
	val, exists := env[key]
	if !exists || len(val) == 0 {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid integer for %s: %w", key, err)
	}

	return parsed, nil
}

// getBytes accepts plain byte counts and human sizes such as 64KB or 1MiB.
func getBytes(env map[string]string, key string, defaultValue int) (int, error) {
	val, exists := env[key]
	if !exists || len(val) == 0 {
		return defaultValue, nil
	}

	parsed, err := units.RAMInBytes(val)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid size for %s: %w", key, err)
	}
	if parsed <= 0 {
		return defaultValue, fmt.Errorf("%s must be greater than 0, got: %d", key, parsed)
	}

	return int(parsed), nil
}

func getBool(env map[string]string, key string, defaultValue bool) bool {
	val, exists := env[key]
	if !exists || len(val) == 0 {
		return defaultValue
	}

	switch strings.ToLower(val) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}
