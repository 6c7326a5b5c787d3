package msproject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"PT8H0M0S", 1},
		{"PT0H30M0S", 0.0625},
		{"", 0},
		{"16", 2},
		{"PT1312H0M0S", 164},
		{"PT4H", 0.5},
		{"PT0H0M28800S", 1},
		{"PT2.5H0M0S", 0.3125},
		{"PT", 0},
		{"garbage", 0},
		{"  PT8H0M0S  ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseDuration(tt.in), 1e-9)
		})
	}
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 12.5, ParseFloat("12.5", 0))
	assert.Equal(t, 0.0, ParseFloat("", 0))
	assert.Equal(t, 100.0, ParseFloat("NaN", 100))
	assert.Equal(t, 7.0, ParseFloat("Inf", 7))
	assert.Equal(t, 3.0, ParseFloat("abc", 3))
}

func TestParseUnits(t *testing.T) {
	tests := map[string]float64{
		"":    100,
		"1":   100,
		"0.5": 50,
		"50":  50,
		"NaN": 100,
		"2":   2,
	}
	for in, want := range tests {
		assert.InDelta(t, want, ParseUnits(in), 1e-9, in)
	}
}

func TestParseWorkAndLag(t *testing.T) {
	assert.InDelta(t, 2.0, ParseWork("PT16H0M0S"), 1e-9)
	assert.InDelta(t, 3.0, ParseWork("3"), 1e-9)
	assert.InDelta(t, 0.0, ParseWork("x"), 1e-9)
	assert.InDelta(t, 1.0, ParseLag("4800"), 1e-9)
	assert.InDelta(t, 0.0, ParseLag(""), 1e-9)
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0.0, ClampPercent(-5))
	assert.Equal(t, 100.0, ClampPercent(150))
	assert.Equal(t, 42.0, ClampPercent(42))
}
