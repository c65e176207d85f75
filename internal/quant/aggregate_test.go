package quant

import (
	"math"
	"reflect"
	"testing"

	"github.com/dgnsrekt/gex-analytics/internal/data"
)

func ptr(v float64) *float64 { return &v }

func contract(strike float64, side string, oi, vol int64, gamma float64) data.OptionContract {
	return data.OptionContract{
		Strike:       strike,
		OptionType:   side,
		OpenInterest: oi,
		Volume:       vol,
		Greeks:       data.Greeks{Gamma: gamma},
	}
}

func TestAggregate(t *testing.T) {
	contracts := []data.OptionContract{
		contract(105, "call", 10, 100, 0.02),
		contract(95, "put", 20, 50, 0.01),
		contract(95, "call", 5, 7, 0.01),
		contract(0, "call", 1000, 1000, 1),   // skipped: strike
		contract(-5, "put", 1000, 1000, 1),   // skipped: strike
		contract(100, "straddle", 10, 10, 1), // skipped: type
	}

	aggs := Aggregate(contracts, 100)

	if len(aggs) != 2 {
		t.Fatalf("expected 2 strikes, got %d", len(aggs))
	}
	if aggs[0].Strike != 95 || aggs[1].Strike != 105 {
		t.Fatalf("expected ascending strikes [95 105], got [%v %v]", aggs[0].Strike, aggs[1].Strike)
	}

	at95 := aggs[0]
	if want := 0.01 * 20 * 100 * 100; math.Abs(at95.PutGamma-want) > 1e-9 {
		t.Errorf("put gamma at 95 = %v, want %v", at95.PutGamma, want)
	}
	if want := 0.01 * 5 * 100 * 100; math.Abs(at95.CallGamma-want) > 1e-9 {
		t.Errorf("call gamma at 95 = %v, want %v", at95.CallGamma, want)
	}
	if at95.PutOI != 20 || at95.CallOI != 5 || at95.PutVolume != 50 || at95.CallVolume != 7 {
		t.Errorf("unexpected counts at 95: %+v", at95)
	}

	totals := aggs.Totals()
	if totals.CallOI != 15 || totals.PutOI != 20 {
		t.Errorf("totals OI = %d/%d, want 15/20", totals.CallOI, totals.PutOI)
	}
	if totals.CallVolume != 107 || totals.PutVolume != 50 {
		t.Errorf("totals volume = %d/%d, want 107/50", totals.CallVolume, totals.PutVolume)
	}
}

func TestAggregateQuantizesStrikes(t *testing.T) {
	contracts := []data.OptionContract{
		contract(100.0000001, "call", 1, 0, 0.01),
		contract(99.9999999, "put", 1, 0, 0.01),
		contract(100.5, "call", 1, 0, 0.01),
	}

	aggs := Aggregate(contracts, 100)
	if len(aggs) != 2 {
		t.Fatalf("expected 2 strikes after quantization, got %d", len(aggs))
	}
	if aggs[0].Strike != 100 || aggs[0].CallOI != 1 || aggs[0].PutOI != 1 {
		t.Errorf("unexpected first aggregate: %+v", aggs[0])
	}
	if aggs[1].Strike != 100.5 {
		t.Errorf("second strike = %v, want 100.5", aggs[1].Strike)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	contracts := []data.OptionContract{
		contract(110, "call", 300, 12, 0.013),
		contract(90, "put", 250, 40, 0.011),
		contract(100, "call", 800, 900, 0.05),
		contract(100, "put", 700, 600, 0.049),
		contract(102.5, "call", 120, 3, 0.03),
	}
	contracts[0].ImpliedVolatility = ptr(0.31)
	contracts[2].Greeks.MidIV = ptr(24.5)

	first := Aggregate(contracts, 101.37)
	second := Aggregate(contracts, 101.37)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("aggregate is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestWeightedIV(t *testing.T) {
	contracts := []data.OptionContract{
		contract(100, "call", 100, 0, 0.01),
		contract(100, "put", 300, 0, 0.01),
		contract(110, "call", 0, 0, 0.01),  // no OI: ignored
		contract(120, "call", 50, 0, 0.01), // no IV: ignored
	}
	contracts[0].ImpliedVolatility = ptr(0.20)
	contracts[1].Greeks.SmvVol = ptr(40) // percent
	contracts[2].ImpliedVolatility = ptr(0.90)

	got := Aggregate(contracts, 100).WeightedIV()
	want := (0.20*100 + 0.40*300) / 400
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("WeightedIV() = %v, want %v", got, want)
	}

	if iv := Aggregate(nil, 100).WeightedIV(); iv != 0 {
		t.Errorf("WeightedIV() of empty set = %v, want 0", iv)
	}
}

func TestDeltaWeightDefaults(t *testing.T) {
	c := contract(100, "call", 1, 0, 0.01)
	c.Greeks.Delta = 0.62
	p := contract(100, "put", 1, 0, 0.01)

	aggs := Aggregate([]data.OptionContract{c, p}, 100)
	if got, want := aggs[0].DeltaWeight(), 0.62+0.5; math.Abs(got-want) > 1e-12 {
		t.Errorf("DeltaWeight() = %v, want %v", got, want)
	}
}
