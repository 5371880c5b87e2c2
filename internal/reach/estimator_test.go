package reach

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEstimator_EstimateImpressions(t *testing.T) {
	var gotReq estimateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/estimate" {
			t.Errorf("path = %s, want /v1/estimate", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(estimateResponse{Impressions: 4200})
	}))
	defer srv.Close()

	est := NewHTTPEstimator(srv.URL)
	n, err := est.EstimateImpressions(context.Background(), []string{"Frontend", "Backend"}, "India")
	if err != nil {
		t.Fatalf("EstimateImpressions() error = %v", err)
	}
	if n != 4200 {
		t.Errorf("impressions = %d, want 4200", n)
	}
	if len(gotReq.Skills) != 2 || gotReq.Region != "India" {
		t.Errorf("request payload = %+v, want skills and region forwarded", gotReq)
	}
}

func TestHTTPEstimator_TrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/estimate" {
			t.Errorf("path = %s, want /v1/estimate", r.URL.Path)
		}
		json.NewEncoder(w).Encode(estimateResponse{Impressions: 1000})
	}))
	defer srv.Close()

	est := NewHTTPEstimator(srv.URL + "/")
	if _, err := est.EstimateImpressions(context.Background(), nil, "GLOBAL"); err != nil {
		t.Fatalf("EstimateImpressions() error = %v", err)
	}
}

func TestHTTPEstimator_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	est := NewHTTPEstimator(srv.URL)
	if _, err := est.EstimateImpressions(context.Background(), []string{"Frontend"}, "GLOBAL"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestHTTPEstimator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	est := NewHTTPEstimator(srv.URL)
	if _, err := est.EstimateImpressions(context.Background(), []string{"Frontend"}, "GLOBAL"); err == nil {
		t.Fatal("expected error when the estimator is unreachable")
	}
}
