// Copyright (c) OpenFaaS Author(s) 2021. All rights reserved.
// Licensed under the MIT license. See LICENSE file in the project root for full license information.

package executor

import (
	"bytes"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"testing"
	"time"
)

const lorem = `Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur. Excepteur sint occaecat cupidatat non proident, sunt in culpa qui officia deserunt mollit anim id est laborum.`

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	logs := &bytes.Buffer{}
	log.SetOutput(logs)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
	})
	return logs
}

func TestBindLoggingPipe_ErrorsWithLargeToken(t *testing.T) {
	reader := strings.NewReader(lorem)
	logs := captureLogs(t)

	out := bytes.Buffer{}

	maxBufferBytes := 32
	addPrefix := false
	<-bindLoggingPipe("TestDeploy", reader, &out, addPrefix, maxBufferBytes)

	got := out.String()
	want := ""
	if want != got {
		t.Fatalf("expected empty string due to error, but got %q", got)
	}

	wantSt := `bufio.Scanner: token too long`
	if !strings.Contains(logs.String(), wantSt) {
		t.Fatalf("want text: %q, but not found in: %q", wantSt, logs.String())
	}
}

func TestBindLoggingPipe_DrainsAfterLargeToken(t *testing.T) {
	captureLogs(t)

	pr, pw := io.Pipe()
	done := bindLoggingPipe("TestDeploy", pr, io.Discard, false, 32)

	written := make(chan error, 1)
	go func() {
		_, err := io.WriteString(pw, strings.Repeat(lorem+"\n", 100))
		pw.Close()
		written <- err
	}()

	select {
	case err := <-written:
		if err != nil {
			t.Fatalf("write failed: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer blocked after the scanner gave up")
	}
	<-done
}

func TestBindLoggingPipe_ReadsValidSize(t *testing.T) {
	input := lorem + "\n"
	validSize := len(input)
	reader := strings.NewReader(input)

	logs := captureLogs(t)

	out := bytes.Buffer{}

	maxBufferBytes := validSize
	addPrefix := false
	<-bindLoggingPipe("TestDeploy", reader, &out, addPrefix, maxBufferBytes)

	got := out.String()
	want := input
	if want != got {
		t.Fatalf("want output %q, but got %q", want, got)
	}

	wantSt := `bufio.Scanner: token too long`
	if strings.Contains(logs.String(), wantSt) {
		t.Fatalf("Found error %s in output: %q", wantSt, logs.String())
	}
}

func TestBindLoggingPipe_ReadsValidSizedLines(t *testing.T) {
	input1 := lorem + "\n"
	input2 := `Sed ut perspiciatis unde omnis iste natus error sit voluptatem accusantium doloremque laudantium, totam rem aperiam, eaque ipsa quae ab illo inventore veritatis et quasi architecto beatae vitae dicta sunt explicabo.
`
	validSize := int(math.Max(float64(len(input1)), float64(len(input2))))

	reader := strings.NewReader(input1 + input2)

	logs := captureLogs(t)

	out := bytes.Buffer{}

	maxBufferBytes := validSize
	addPrefix := false
	<-bindLoggingPipe("TestDeploy", reader, &out, addPrefix, maxBufferBytes)

	got := out.String()
	want := input1 + input2
	if want != got {
		t.Fatalf("want output %q, but got %q", want, got)
	}

	wantSt := `bufio.Scanner: token too long`
	if strings.Contains(logs.String(), wantSt) {
		t.Fatalf("Found error %s in output: %q", wantSt, logs.String())
	}
}

func TestBindLoggingPipe_AddsPrefix(t *testing.T) {
	captureLogs(t)

	out := bytes.Buffer{}
	<-bindLoggingPipe("output", strings.NewReader("Deployed OK\n"), &out, true, 0)

	if !strings.Contains(out.String(), "output: Deployed OK") {
		t.Fatalf("want prefixed line, got %q", out.String())
	}
}
