package main

import (
	"net/http"
	"sync/atomic"

	limiter "github.com/openfaas/faas-middleware/concurrency-limiter"
)

type readiness struct {
	lockCheck func() bool
	limiter   limiter.Limiter
}

// LimitMet returns true if the concurrency limit has been reached
// or false if no limiter has been used
func (r *readiness) LimitMet() bool {
	if r.limiter == nil {
		return false
	}
	return r.limiter.Met()
}

func (r *readiness) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		status := http.StatusOK

		switch {
		case atomic.LoadInt32(&acceptingConnections) == 0, !r.lockCheck():
			status = http.StatusServiceUnavailable
		case r.LimitMet():
			status = http.StatusTooManyRequests
		}

		w.WriteHeader(status)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
