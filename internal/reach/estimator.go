// Package reach provides email-impression estimation for listings: an HTTP
// client for the external reach estimator, a request-scoped memo that
// deduplicates estimates by skill set and region, and a Redis-backed shared
// cache.
package reach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
)

// DefaultImpressionFloor is used when the estimator fails or reports zero.
// Sponsors always see a non-zero reach figure.
const DefaultImpressionFloor = 1000

// Estimator estimates email impressions for a notification targeting the
// given skills and region.
type Estimator interface {
	EstimateImpressions(ctx context.Context, skills []string, region string) (int, error)
}

// Key builds the deduplication key for an estimate: sorted skills joined with
// the region. Two listings targeting the same audience share one estimate.
func Key(skills []string, region string) string {
	sorted := make([]string, len(skills))
	copy(sorted, skills)
	sort.Strings(sorted)
	return strings.Join(sorted, "|") + "@" + region
}

// RoundImpressions rounds an estimate to the nearest thousand.
func RoundImpressions(n int) int {
	return int(math.Round(float64(n)/1000.0)) * 1000
}

// HTTPEstimator calls the external reach estimator service.
type HTTPEstimator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEstimator creates an HTTPEstimator for the given base URL.
func NewHTTPEstimator(baseURL string) *HTTPEstimator {
	return &HTTPEstimator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type estimateRequest struct {
	Skills []string `json:"skills"`
	Region string   `json:"region"`
}

type estimateResponse struct {
	Impressions int `json:"impressions"`
}

// EstimateImpressions requests an impression estimate from the service.
func (e *HTTPEstimator) EstimateImpressions(ctx context.Context, skills []string, region string) (int, error) {
	body, err := json.Marshal(estimateRequest{Skills: skills, Region: region})
	if err != nil {
		return 0, fmt.Errorf("failed to encode estimate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/estimate", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build estimate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("estimate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("estimator returned status %d", resp.StatusCode)
	}

	var out estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode estimate response: %w", err)
	}
	return out.Impressions, nil
}
