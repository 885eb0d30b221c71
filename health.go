package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
)

// acceptingConnections is 1 once the deploy port is listening, and 0 again
// after SIGTERM.
var acceptingConnections int32

func lockFilePath() string {
	return filepath.Join(os.TempDir(), ".lock")
}

func lock() error {
	lockFile := lockFilePath()
	log.Printf("Writing lock-file to: %s\n", lockFile)
	return os.WriteFile(lockFile, []byte{}, 0660)
}

func lockFilePresent() bool {
	if _, err := os.Stat(lockFilePath()); err != nil {
		return false
	}
	return true
}

func makeHealthHandler(lockCheck func() bool) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if atomic.LoadInt32(&acceptingConnections) == 0 || !lockCheck() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}

			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}
