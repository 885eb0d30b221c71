// Copyright (c) OpenFaaS Author(s) 2021. All rights reserved.
// Licensed under the MIT license. See LICENSE file in the project root for full license information.

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/alessio/shellescape"
	units "github.com/docker/go-units"
)

// outputGrace bounds how long output is still collected after a timed out
// deploy was killed, in case a detached grandchild holds the pipe open.
const outputGrace = time.Second

// DeployRequest describes a single run of the deploy script.
type DeployRequest struct {
	Process     string
	ProcessArgs []string

	// Environment replaces the inherited environment when non-nil.
	Environment []string

	// Dir is the working directory, empty means the watchdog's own.
	Dir string
}

// DeployResult is the outcome of a deploy which was started.
type DeployResult struct {
	// ExitCode is -1 when the process was terminated by a signal.
	ExitCode int

	// Output holds stdout and stderr in the order they were written.
	Output []byte

	Duration time.Duration
	TimedOut bool
}

// Success is true only for a zero exit code within the timeout.
func (r DeployResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// DeployRunner forks the deploy script for each invocation and waits for it.
type DeployRunner struct {
	// ExecTimeout kills the deploy and its process group, 0 disables it.
	ExecTimeout time.Duration

	LogOutput     bool
	LogPrefix     bool
	LogBufferSize int

	// LogWriter receives relayed output lines, defaults to os.Stderr.
	LogWriter io.Writer
}

// Run forks the deploy and blocks until it exits and its output is drained.
// A non-zero exit is reported in the result, the error is reserved for
// deploys that could not be started or waited for.
func (f *DeployRunner) Run(ctx context.Context, req DeployRequest) (DeployResult, error) {
	res := DeployResult{ExitCode: -1}

	if f.ExecTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.ExecTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, req.Process, req.ProcessArgs...)
	cmd.Env = req.Environment
	cmd.Dir = req.Dir
	setProcessGroup(cmd)

	log.Printf("Running: %s", shellescape.QuoteCommand(cmd.Args))

	// One pipe for both streams keeps the interleaving the script produced.
	pr, pw, err := os.Pipe()
	if err != nil {
		return res, fmt.Errorf("unable to create output pipe: %w", err)
	}
	defer pr.Close()

	cmd.Stdout = pw
	cmd.Stderr = pw

	out := bytes.Buffer{}
	var sink io.Writer = &out

	var logDone <-chan struct{}
	var logPipe *io.PipeWriter
	if f.LogOutput {
		var logReader *io.PipeReader
		logReader, logPipe = io.Pipe()
		logDone = bindLoggingPipe("output", logReader, f.logWriter(), f.LogPrefix, f.LogBufferSize)
		sink = io.MultiWriter(&out, logPipe)
	}

	closeLogs := func() {
		if logPipe != nil {
			logPipe.Close()
			<-logDone
		}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		closeLogs()
		res.Duration = time.Since(start)
		return res, fmt.Errorf("unable to start %s: %w", req.Process, err)
	}

	// Only the child must hold the write end, or the copy never sees EOF.
	pw.Close()

	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(sink, pr)
		copyDone <- copyErr
	}()

	waitErr := cmd.Wait()

	var copyErr error
	if ctx.Err() != nil {
		select {
		case copyErr = <-copyDone:
		case <-time.After(outputGrace):
			pr.Close()
			<-copyDone
		}
	} else {
		copyErr = <-copyDone
	}

	closeLogs()

	res.Duration = time.Since(start)
	res.Output = out.Bytes()
	res.TimedOut = waitErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)

	if copyErr != nil {
		log.Printf("Error reading output from %s: %s", req.Process, copyErr)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case res.TimedOut:
		// the deadline passed as the deploy exited, the exit code is lost
	default:
		return res, fmt.Errorf("unable to wait for %s: %w", req.Process, waitErr)
	}

	if res.TimedOut {
		log.Printf("Deploy was killed by ExecTimeout: %s", f.ExecTimeout)
	}

	log.Printf("Took %f secs, exit code: %d (%s)", res.Duration.Seconds(), res.ExitCode, units.HumanDuration(res.Duration))

	return res, nil
}

func (f *DeployRunner) logWriter() io.Writer {
	if f.LogWriter != nil {
		return f.LogWriter
	}
	return os.Stderr
}
