/*
	This file contains functions useful for testing the server in other packages.
	Because *_test.go files are not compiled into packages that import this one, these
	functions live here and carry the "Test" prefix.
*/

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	// engines used by test servers
	_ "github.com/lwansbrough/craft2/storage/badger"
	_ "github.com/lwansbrough/craft2/storage/blob"
)

// TestConfig returns a config with an in-memory badger store and a small cache.
func TestConfig() Config {
	c := DefaultConfig()
	c.Cache.Size = 8
	c.Server.ShutdownDelay = 1
	return c
}

// OpenTestServer starts a server for the given config and closes it when the test ends.
func OpenTestServer(t *testing.T, config Config) *Server {
	s, err := New(config)
	if err != nil {
		t.Fatalf("unable to create test server: %v\n", err)
	}
	if err := s.LoadVolumes(context.Background()); err != nil {
		t.Fatalf("unable to load test volumes: %v\n", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("error closing test server: %v\n", err)
		}
	})
	return s
}

// TestHTTPResponse returns a response from a test request, setting a bearer token if given.
// Use TestHTTP if you just want the response body bytes.
func TestHTTPResponse(t *testing.T, s *Server, method, urlStr, token string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure the response has
// status OK.
func TestHTTP(t *testing.T, s *Server, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, s, method, urlStr, "", payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a response with the given error status code.
func TestBadHTTP(t *testing.T, s *Server, method, urlStr string, payload io.Reader, status int) {
	resp := TestHTTPResponse(t, s, method, urlStr, "", payload)
	if resp.Code != status {
		t.Fatalf("Expected status %d to %s on %q, got %d: %s\n", status, method, urlStr, resp.Code, resp.Body.String())
	}
}

// CreateTestVolume creates a volume through the HTTP API.
func CreateTestVolume(t *testing.T, s *Server, name string, size [3]uint32) {
	body, err := json.Marshal(map[string]interface{}{"name": name, "size": size})
	if err != nil {
		t.Fatal(err)
	}
	TestHTTP(t, s, "POST", WebAPIPath+"volumes", bytes.NewReader(body))
}
