package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status ok, got '%s'", result["status"])
	}
}

func TestSanitizeForLog(t *testing.T) {
	cases := map[string]string{
		"plain":              "plain",
		"with\nnewline":      "withnewline",
		"with\r\nboth":       "withboth",
		"injected\rcarriage": "injectedcarriage",
	}
	for input, expected := range cases {
		if got := sanitizeForLog(input); got != expected {
			t.Errorf("sanitizeForLog(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusTeapot, "nope")

	assertStatusCode(t, recorder, http.StatusTeapot)
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got '%s'", ct)
	}
	assertJSONError(t, recorder, "nope")
}
