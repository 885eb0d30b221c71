package executor

import (
	"bufio"
	"io"
	"log"
)

// bindLoggingPipe spawns a goroutine for passing through logging of the given
// output pipe. The returned channel is closed once the pipe is exhausted.
// Lines longer than maxBufferSize stop the relay, the rest of the pipe is
// drained so the writer never blocks.
func bindLoggingPipe(name string, pipe io.Reader, output io.Writer, logPrefix bool, maxBufferSize int) <-chan struct{} {
	log.Printf("Started logging %s from deploy.", name)

	if maxBufferSize <= 0 {
		maxBufferSize = bufio.MaxScanTokenSize
	}

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, maxBufferSize), maxBufferSize)

	logFlags := log.Flags()
	prefix := log.Prefix()
	if !logPrefix {
		logFlags = 0
		prefix = ""
	}

	logger := log.New(output, prefix, logFlags)

	done := make(chan struct{})
	go func() {
		defer close(done)

		for scanner.Scan() {
			if logPrefix {
				logger.Printf("%s: %s", name, scanner.Text())
			} else {
				logger.Println(scanner.Text())
			}
		}

		if err := scanner.Err(); err != nil {
			log.Printf("Error scanning %s: %s", name, err.Error())
			io.Copy(io.Discard, pipe)
		}
	}()

	return done
}
