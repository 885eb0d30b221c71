package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ApplyFlags overrides values read from the environment with command-line flags.
func ApplyFlags(c *WatchdogConfig, args []string) error {
	fs := pflag.NewFlagSet("deploy-watchdog", pflag.ContinueOnError)

	port := fs.IntP("port", "p", c.TCPPort, "port for the deploy endpoint")
	metricsPort := fs.Int("metrics-port", c.MetricsPort, "port for metrics and health checks")
	script := fs.StringP("script", "s", c.DeployScript, "path to the deploy script")
	shell := fs.String("shell", c.DeployShell, "interpreter used to run the deploy script")
	dir := fs.String("dir", c.DeployDir, "working directory for the deploy script")
	mode := fs.String("mode", WatchdogMode(c.OperationalMode), "path: pass the request URI as an argument, static: pass no arguments")
	execTimeout := fs.Duration("exec-timeout", c.ExecTimeout, "kill the deploy after this long, 0 to wait forever")

	if err := fs.Parse(args); err != nil {
		return err
	}

	operationalMode := WatchdogModeConst(*mode)
	if operationalMode == 0 {
		return fmt.Errorf("unknown mode: %q, valid modes: path, static", *mode)
	}
	if *port == *metricsPort {
		return fmt.Errorf("port and metrics-port must differ, both are: %d", *port)
	}
	if *execTimeout < 0 {
		return fmt.Errorf("exec-timeout must not be negative, got: %s", *execTimeout)
	}

	c.TCPPort = *port
	c.MetricsPort = *metricsPort
	c.DeployScript = *script
	c.DeployShell = *shell
	c.DeployDir = *dir
	c.OperationalMode = operationalMode
	c.ExecTimeout = *execTimeout

	return nil
}
