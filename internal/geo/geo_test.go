package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64
		delta    float64
	}{
		{
			name:     "same point",
			a:        Point{Lat: 12.9716, Lon: 77.5946},
			b:        Point{Lat: 12.9716, Lon: 77.5946},
			expected: 0,
			delta:    0.001,
		},
		{
			name:     "one degree of longitude at the equator",
			a:        Point{Lat: 0, Lon: 0},
			b:        Point{Lat: 0, Lon: 1},
			expected: 111194.93,
			delta:    0.5,
		},
		{
			name:     "one degree of latitude",
			a:        Point{Lat: 12, Lon: 77},
			b:        Point{Lat: 13, Lon: 77},
			expected: 111194.93,
			delta:    0.5,
		},
		{
			name:     "short hop near campus",
			a:        Point{Lat: 12.9716, Lon: 77.5946},
			b:        Point{Lat: 12.9716 + 0.000135, Lon: 77.5946},
			expected: 15.01,
			delta:    0.05,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.expected, Distance(tt.a, tt.b), tt.delta)
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 12.9716, Lon: 77.5946}
	b := Point{Lat: 12.9720, Lon: 77.5950}
	require.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}
