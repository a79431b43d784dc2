package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		num, den int
		want     float64
	}{
		{"zero denominator", 5, 0, 0},
		{"zero numerator", 0, 10, 0},
		{"half", 1, 2, 50},
		{"rounds to two decimals", 1, 3, 33.33},
		{"rounds up", 2, 3, 66.67},
		{"clamped above", 7, 5, 100},
		{"negative numerator", -1, 5, 0},
		{"whole", 3, 3, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, percentage(tt.num, tt.den))
		})
	}
}

func TestAverageRate(t *testing.T) {
	assert.Equal(t, 0.0, averageRate(nil))
	assert.Equal(t, 50.0, averageRate([]float64{25, 75}))
	assert.Equal(t, 33.34, averageRate([]float64{33.33, 33.33, 33.36}))
}
