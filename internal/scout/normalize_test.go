package scout

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]float64
		want   map[string]float64
	}{
		{
			name:   "empty pool",
			values: map[string]float64{},
			want:   map[string]float64{},
		},
		{
			name:   "single entry maps to the floor",
			values: map[string]float64{"a": 1500},
			want:   map[string]float64{"a": 0.1},
		},
		{
			name:   "identical values all map to the floor",
			values: map[string]float64{"a": 500, "b": 500, "c": 500},
			want:   map[string]float64{"a": 0.1, "b": 0.1, "c": 0.1},
		},
		{
			name:   "all zeros map to the floor",
			values: map[string]float64{"a": 0, "b": 0},
			want:   map[string]float64{"a": 0.1, "b": 0.1},
		},
		{
			name:   "min and max hit the bounds",
			values: map[string]float64{"lo": 0, "hi": 100},
			want:   map[string]float64{"lo": 0.1, "hi": 1.0},
		},
		{
			name:   "midpoint lands between the bounds",
			values: map[string]float64{"lo": 0, "mid": 50, "hi": 100},
			want:   map[string]float64{"lo": 0.1, "mid": 0.55, "hi": 1.0},
		},
		{
			name:   "negative minimum still scales",
			values: map[string]float64{"lo": -10, "hi": 10},
			want:   map[string]float64{"lo": 0.1, "hi": 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.values)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for k, want := range tt.want {
				if !almostEqual(got[k], want) {
					t.Errorf("Normalize()[%q] = %v, want %v", k, got[k], want)
				}
			}
		})
	}
}
