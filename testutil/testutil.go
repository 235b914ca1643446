// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/pointy/cliparse"
	"github.com/danielhkuo/pointy/memstore"
	"github.com/danielhkuo/pointy/models"
)

// NewStore returns a fresh in-memory store for a test.
func NewStore(t *testing.T) *memstore.Store {
	t.Helper()
	return memstore.New()
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         4117,
		StoreBackend: cliparse.BackendMemory,
		AdminKeySalt: "test-admin-salt",
	}
}

// JoinSession joins a session through the API and returns the response.
func JoinSession(t *testing.T, mux http.Handler, name, userID string) models.JoinSessionResponse {
	t.Helper()

	req := MakeRequest("POST", "/sessions/"+name+"/join",
		models.JoinSessionRequest{UserID: userID}, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	AssertStatus(t, w, http.StatusCreated)
	var resp models.JoinSessionResponse
	AssertJSON(t, w, &resp)
	return resp
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
