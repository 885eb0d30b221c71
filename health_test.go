package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestHealthHandler_StatusOK_LockFilePresent(t *testing.T) {
	rr := httptest.NewRecorder()

	if !lockFilePresent() {
		if err := lock(); err != nil {
			t.Fatal(err)
		}
	}

	acceptingConnections = 1
	defer func() { acceptingConnections = 0 }()

	req, err := http.NewRequest(http.MethodGet, "/_/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	handler := makeHealthHandler(lockFilePresent)
	handler(rr, req)

	required := http.StatusOK
	if status := rr.Code; status != required {
		t.Errorf("handler returned wrong status code - want: %v, got: %v", required, status)
	}
}

func TestHealthHandler_StatusServiceUnavailable_LockFileNotPresent(t *testing.T) {
	rr := httptest.NewRecorder()

	if lockFilePresent() {
		if err := removeLockFile(); err != nil {
			t.Fatal(err)
		}
	}

	acceptingConnections = 1
	defer func() { acceptingConnections = 0 }()

	req, err := http.NewRequest(http.MethodGet, "/_/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	handler := makeHealthHandler(lockFilePresent)
	handler(rr, req)

	required := http.StatusServiceUnavailable
	if status := rr.Code; status != required {
		t.Errorf("handler returned wrong status code - want: %v, got: %v", required, status)
	}
}

func TestHealthHandler_StatusServiceUnavailable_NotAcceptingConnections(t *testing.T) {
	rr := httptest.NewRecorder()

	acceptingConnections = 0

	req, err := http.NewRequest(http.MethodGet, "/_/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	handler := makeHealthHandler(func() bool { return true })
	handler(rr, req)

	required := http.StatusServiceUnavailable
	if status := rr.Code; status != required {
		t.Errorf("handler returned wrong status code - want: %v, got: %v", required, status)
	}
}

func TestHealthHandler_StatusMethodNotAllowed_ForWriteableVerbs(t *testing.T) {
	verbs := []string{http.MethodPost, http.MethodPut, http.MethodDelete}

	for _, verb := range verbs {
		rr := httptest.NewRecorder()
		req, err := http.NewRequest(verb, "/_/health", nil)
		if err != nil {
			t.Fatal(err)
		}

		handler := makeHealthHandler(func() bool { return true })
		handler(rr, req)

		required := http.StatusMethodNotAllowed
		if status := rr.Code; status != required {
			t.Errorf("handler returned wrong status code -  want: %v, got: %v", required, status)
		}
	}
}

func removeLockFile() error {
	return os.Remove(lockFilePath())
}
