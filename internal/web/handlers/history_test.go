package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-auth/internal/history"
)

type fakeSummarizer struct {
	summary *history.Summary
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, userID int64) (*history.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.summary
	s.UserID = userID
	return &s, nil
}

func TestHistorySummary_Success(t *testing.T) {
	handler := NewHistoryHandler(&fakeSummarizer{summary: &history.Summary{
		Total:    3,
		BySource: map[string]int{"signup": 1, "reauth": 2},
	}})

	req := httptest.NewRequest("GET", "/api/v1/users/42/history", nil)
	req = requestWithChiParams(req, map[string]string{"userID": "42"})

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var summary history.Summary
	parseJSONResponse(t, recorder, &summary)
	if summary.UserID != 42 {
		t.Errorf("expected user id 42, got %d", summary.UserID)
	}
	if summary.Total != 3 {
		t.Errorf("expected total 3, got %d", summary.Total)
	}
	if summary.BySource["reauth"] != 2 {
		t.Errorf("unexpected source counts: %v", summary.BySource)
	}
}

func TestHistorySummary_UnknownUserIsEmpty(t *testing.T) {
	handler := NewHistoryHandler(&fakeSummarizer{summary: &history.Summary{}})

	req := httptest.NewRequest("GET", "/api/v1/users/999/history", nil)
	req = requestWithChiParams(req, map[string]string{"userID": "999"})

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, req)

	// No history is a normal state, not a 404.
	assertStatusCode(t, recorder, http.StatusOK)

	var summary history.Summary
	parseJSONResponse(t, recorder, &summary)
	if summary.Total != 0 {
		t.Errorf("expected empty summary, got total %d", summary.Total)
	}
}

func TestHistorySummary_InvalidUserID(t *testing.T) {
	handler := NewHistoryHandler(&fakeSummarizer{summary: &history.Summary{}})

	req := httptest.NewRequest("GET", "/api/v1/users/bogus/history", nil)
	req = requestWithChiParams(req, map[string]string{"userID": "bogus"})

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid user id")
}

func TestHistorySummary_StoreFailure(t *testing.T) {
	handler := NewHistoryHandler(&fakeSummarizer{err: errors.New("connection refused")})

	req := httptest.NewRequest("GET", "/api/v1/users/42/history", nil)
	req = requestWithChiParams(req, map[string]string{"userID": "42"})

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "Internal server error")
}
