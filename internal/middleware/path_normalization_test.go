package middleware

import (
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		// Static routes - no normalization
		{
			name:     "root path",
			path:     "/",
			expected: "/",
		},
		{
			name:     "sponsor stage",
			path:     "/api/sponsor/stage",
			expected: "/api/sponsor/stage",
		},
		{
			name:     "health endpoint",
			path:     "/health",
			expected: "/health",
		},
		{
			name:     "readiness endpoint",
			path:     "/health/ready",
			expected: "/health/ready",
		},
		{
			name:     "metrics endpoint",
			path:     "/metrics",
			expected: "/metrics",
		},

		// Listing patterns
		{
			name:     "listing by id",
			path:     "/api/listings/123",
			expected: "/api/listings/{id}",
		},
		{
			name:     "listing by uuid",
			path:     "/api/listings/550e8400-e29b-41d4-a716-446655440000",
			expected: "/api/listings/{id}",
		},
		{
			name:     "listing scouts",
			path:     "/api/listings/123/scouts",
			expected: "/api/listings/{id}/scouts",
		},
		{
			name:     "listing scouts by uuid",
			path:     "/api/listings/550e8400-e29b-41d4-a716-446655440000/scouts",
			expected: "/api/listings/{id}/scouts",
		},
		{
			name:     "scout invite",
			path:     "/api/listings/123/scouts/usr-9/invite",
			expected: "/api/listings/{id}/scouts/{user_id}/invite",
		},

		// Unknown paths fall through untouched
		{
			name:     "unknown path",
			path:     "/api/unknown/thing",
			expected: "/api/unknown/thing",
		},
		{
			name:     "listing subresource without pattern",
			path:     "/api/listings/123/other",
			expected: "/api/listings/123/other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizePath(tt.path)
			if result != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestNormalizePath_CardinalityControl(t *testing.T) {
	// Test that different IDs normalize to the same pattern
	paths := []string{
		"/api/listings/1/scouts",
		"/api/listings/2/scouts",
		"/api/listings/999/scouts",
		"/api/listings/550e8400-e29b-41d4-a716-446655440000/scouts",
		"/api/listings/abc-def-ghi/scouts",
	}

	expected := "/api/listings/{id}/scouts"
	seen := make(map[string]bool)

	for _, path := range paths {
		result := normalizePath(path)
		if result != expected {
			t.Errorf("normalizePath(%q) = %q, want %q", path, result, expected)
		}
		seen[result] = true
	}

	// Should all normalize to the same pattern (low cardinality)
	if len(seen) != 1 {
		t.Errorf("Expected all paths to normalize to single pattern, got %d patterns: %v", len(seen), seen)
	}
}
