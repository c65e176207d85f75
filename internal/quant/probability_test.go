package quant

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestTouchProbability(t *testing.T) {
	tests := []struct {
		name                   string
		price, level, iv, days float64
		want                   float64
	}{
		{"above spot", 100, 110, 0.2, 30, 4.8232},
		{"below spot", 100, 90, 0.2, 30, 3.3066},
		{"near above", 100, 105, 0.3, 7, 12.0122},
		{"near below", 100, 95, 0.3, 7, 10.8484},
		{"far level clamps low", 100, 200, 0.2, 1, 1},
		{"at spot", 100, 100, 0.2, 30, 50},
		{"zero price", 0, 100, 0.2, 30, 50},
		{"zero level", 100, 0, 0.2, 30, 50},
		{"zero iv", 100, 110, 0, 30, 50},
		{"negative days", 100, 110, 0.2, -1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TouchProbability(tt.price, tt.level, tt.iv, tt.days)
			if math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("TouchProbability(%v, %v, %v, %v) = %v, want %v",
					tt.price, tt.level, tt.iv, tt.days, got, tt.want)
			}
		})
	}
}

func TestTouchProbabilityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)

	properties.Property("probability stays within [1, 99]", prop.ForAll(
		func(price, level, iv, days float64) bool {
			p := TouchProbability(price, level, iv, days)
			return p >= MinProbability && p <= MaxProbability
		},
		gen.Float64Range(0.01, 10000),
		gen.Float64Range(0.01, 10000),
		gen.Float64Range(0.001, 5),
		gen.Float64Range(0.01, 1000),
	))

	properties.Property("level at spot is a coin flip", prop.ForAll(
		func(price, iv, days float64) bool {
			return math.Abs(TouchProbability(price, price, iv, days)-50) < 1e-9
		},
		gen.Float64Range(0.01, 10000),
		gen.Float64Range(0.001, 5),
		gen.Float64Range(0.01, 1000),
	))

	properties.Property("farther levels are less likely", prop.ForAll(
		func(price, step, iv, days float64) bool {
			near := TouchProbability(price, price*(1+step), iv, days)
			far := TouchProbability(price, price*(1+2*step), iv, days)
			return far <= near
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(0.001, 0.5),
		gen.Float64Range(0.05, 2),
		gen.Float64Range(1, 365),
	))

	properties.TestingRun(t)
}
