package textextract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(url string) *HTTPClient {
	c := NewHTTPClient(url, zap.NewNop())
	c.pollInterval = time.Millisecond
	c.pollTimeout = 50 * time.Millisecond
	return c
}

func TestExtractTextPollsUntilSuccess(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
		default:
			polls++
			status := "running"
			text := ""
			if polls >= 3 {
				status = "succeeded"
				text = "extracted text"
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "text": text})
		}
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).ExtractText(context.Background(), []byte("doc"), "image/png")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if text != "extracted text" {
		t.Fatalf("unexpected text: %q", text)
	}
	if polls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls)
	}
}

func TestExtractTextReportsJobFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-2"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error": "unreadable scan"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ExtractText(context.Background(), []byte("doc"), "image/png")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %T: %v", err, err)
	}
}

func TestExtractTextTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-3"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ExtractText(context.Background(), []byte("doc"), "image/png")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %T: %v", err, err)
	}
	if extractionErr.Reason != "ocr job took too long" {
		t.Fatalf("unexpected reason: %s", extractionErr.Reason)
	}
}

func TestExtractTextServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ExtractText(context.Background(), []byte("doc"), "image/png")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %T: %v", err, err)
	}
}
