package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const testAddress = "10 Main St, Chennai, Tamil Nadu 600001"

func TestVerifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("address"); got != testAddress {
			t.Errorf("unexpected address param: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"verified":           true,
			"normalized_address": "10 Main Street, Chennai, Tamil Nadu 600001, India",
		})
	}))
	defer server.Close()

	result := NewHTTPClient(server.URL, "key", zap.NewNop()).Verify(context.Background(), testAddress)
	if !result.Verified {
		t.Fatal("expected verified result")
	}
	if result.NormalizedAddress != "10 Main Street, Chennai, Tamil Nadu 600001, India" {
		t.Fatalf("unexpected normalized address: %q", result.NormalizedAddress)
	}
}

func TestVerifyAbsorbsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	result := NewHTTPClient(server.URL, "key", zap.NewNop()).Verify(context.Background(), testAddress)
	if result.Verified {
		t.Fatal("expected unverified result")
	}
	if result.NormalizedAddress != testAddress {
		t.Fatalf("expected input echoed back, got %q", result.NormalizedAddress)
	}
}

func TestVerifyAbsorbsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	result := NewHTTPClient(server.URL, "key", zap.NewNop()).Verify(context.Background(), testAddress)
	if result.Verified || result.NormalizedAddress != testAddress {
		t.Fatalf("expected unverified echo, got %+v", result)
	}
}

func TestVerifyAbsorbsNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"verified": false, "normalized_address": ""})
	}))
	defer server.Close()

	result := NewHTTPClient(server.URL, "key", zap.NewNop()).Verify(context.Background(), testAddress)
	if result.Verified || result.NormalizedAddress != testAddress {
		t.Fatalf("expected unverified echo, got %+v", result)
	}
}
