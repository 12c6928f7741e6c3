package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAPIKeyMiddleware(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name           string
		method         string
		path           string
		requestHeader  string
		expectedStatus int
	}{
		{
			name:           "valid API key",
			method:         "GET",
			path:           "/api/v1/health",
			requestHeader:  testAPIKey,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing API key header",
			method:         "GET",
			path:           "/api/v1/health",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid API key",
			method:         "GET",
			path:           "/api/v1/health",
			requestHeader:  "wrong-key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "encode without key",
			method:         "POST",
			path:           "/api/v1/encode",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "decode with wrong key",
			method:         "POST",
			path:           "/api/v1/decode",
			requestHeader:  "wrong-key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "stream frames without key",
			method:         "POST",
			path:           "/api/v1/streams/abc/frames",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "encode with key reaches the handler",
			method:         "POST",
			path:           "/api/v1/encode",
			requestHeader:  testAPIKey,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"frames":[[]]}`))
			if tt.requestHeader != "" {
				req.Header.Set("X-API-Key", tt.requestHeader)
			}

			w := httptest.NewRecorder()
			ts.handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus == http.StatusUnauthorized {
				var response APIResponse
				if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if response.Success || response.Error == "" {
					t.Errorf("Expected an error envelope, got %+v", response)
				}
			}
		})
	}
}

func TestSendSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "test"}

	sendSuccess(w, data)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	// Check that response contains expected data
	body := w.Body.String()
	if len(body) == 0 {
		t.Error("Expected non-empty response body")
	}
}

func TestSendError(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		statusCode     int
		expectedStatus int
	}{
		{
			name:           "bad request error",
			message:        "Invalid request",
			statusCode:     http.StatusBadRequest,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unauthorized error",
			message:        "Not authorized",
			statusCode:     http.StatusUnauthorized,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "internal server error",
			message:        "Server error",
			statusCode:     http.StatusInternalServerError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			sendError(w, tt.message, tt.statusCode)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", contentType)
			}

			var response APIResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Success || response.Error != tt.message {
				t.Errorf("Expected error %q, got %+v", tt.message, response)
			}
		})
	}
}

func TestInstrumentAuthMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := m.InstrumentAuthMiddleware(apiKeyMiddleware("test-key"))(ok)

	for _, key := range []string{"test-key", "wrong-key", "", "test-key"} {
		req := httptest.NewRequest("GET", "/test", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusSuccess)); got != 2 {
		t.Errorf("Expected 2 successful auth requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusError)); got != 1 {
		t.Errorf("Expected 1 failed auth request, got %v", got)
	}
}
