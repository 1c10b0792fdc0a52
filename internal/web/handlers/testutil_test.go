package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/verify"
)

// fakeEngine is a canned-response implementation of the Engine interface.
type fakeEngine struct {
	result *verify.Result
	err    error

	gotPassport []byte
	gotSelfie   []byte
	gotUserID   int64
}

func (f *fakeEngine) VerifyIdentity(ctx context.Context, passportImage, selfieImage []byte, userID int64) (*verify.Result, error) {
	f.gotPassport = passportImage
	f.gotSelfie = selfieImage
	f.gotUserID = userID
	return f.result, f.err
}

func (f *fakeEngine) Reauthenticate(ctx context.Context, selfieImage []byte, userID int64) (*verify.Result, error) {
	f.gotSelfie = selfieImage
	f.gotUserID = userID
	return f.result, f.err
}

func (f *fakeEngine) Threshold() float64 { return 0.35 }

// acceptedResult builds a positive verification result for fakes.
func acceptedResult(sim float64) *verify.Result {
	return &verify.Result{
		IsAuthenticated: true,
		Similarity:      &sim,
		Threshold:       0.35,
	}
}

// pngBytes encodes a tiny valid PNG for upload tests.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a multipart form from file parts and plain fields.
func multipartBody(t *testing.T, files map[string][]byte, filenames map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, data := range files {
		name := filenames[field]
		if name == "" {
			name = "image.png"
		}
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
