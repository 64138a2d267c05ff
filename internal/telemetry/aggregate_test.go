package telemetry

import (
	"math"
	"testing"
)

func TestSummarize_Basic(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4, 5})

	if s.Mean != 3 {
		t.Errorf("Mean = %v, want 3", s.Mean)
	}
	if s.Max != 5 {
		t.Errorf("Max = %v, want 5", s.Max)
	}
	if s.Min != 1 {
		t.Errorf("Min = %v, want 1", s.Min)
	}
	if s.Median != 3 {
		t.Errorf("Median = %v, want 3", s.Median)
	}
	// Population std of 1..5 is sqrt(2).
	if math.Abs(s.Std-math.Sqrt2) > 1e-12 {
		t.Errorf("Std = %v, want sqrt(2)", s.Std)
	}
}

func TestSummarize_SingleSample(t *testing.T) {
	s := Summarize([]float64{3.5})

	for name, got := range map[string]float64{
		"Mean": s.Mean, "Max": s.Max, "Min": s.Min, "Median": s.Median,
	} {
		if got != 3.5 {
			t.Errorf("%s = %v, want 3.5", name, got)
		}
	}
	if s.Std != 0 {
		t.Errorf("Std = %v, want 0 for a single sample", s.Std)
	}
}

func TestSummarize_EvenCountMedian(t *testing.T) {
	s := Summarize([]float64{4, 1, 3, 2})
	if s.Median != 2.5 {
		t.Errorf("Median = %v, want 2.5", s.Median)
	}
}

func TestSummarize_InvalidEntriesExcluded(t *testing.T) {
	nan := math.NaN()
	s := Summarize([]float64{nan, 2, math.Inf(1), 4, nan})

	if s.Mean != 3 {
		t.Errorf("Mean = %v, want 3 (invalid entries must be excluded, not zeroed)", s.Mean)
	}
	if s.Min != 2 || s.Max != 4 {
		t.Errorf("Min/Max = %v/%v, want 2/4", s.Min, s.Max)
	}
}

func TestSummarize_AllInvalidYieldsMissingMarker(t *testing.T) {
	for name, values := range map[string][]float64{
		"empty":       {},
		"nil":         nil,
		"all NaN":     {math.NaN(), math.NaN()},
		"all non-fin": {math.Inf(1), math.Inf(-1), math.NaN()},
	} {
		s := Summarize(values)
		for stat, got := range map[string]float64{
			"Mean": s.Mean, "Max": s.Max, "Min": s.Min, "Std": s.Std, "Median": s.Median,
		} {
			if !math.IsNaN(got) {
				t.Errorf("%s: %s = %v, want NaN missing marker", name, stat, got)
			}
		}
	}
}

func TestMajorityVote(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"simple majority", []string{"0", "1", "1"}, "1"},
		{"unanimous", []string{"0", "0", "0"}, "0"},
		{"tie breaks to first occurrence", []string{"1", "0", "0", "1"}, "1"},
		{"single value", []string{"2"}, "2"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		if got := MajorityVote(tt.values); got != tt.want {
			t.Errorf("%s: MajorityVote(%v) = %q, want %q", tt.name, tt.values, got, tt.want)
		}
	}
}

func TestSummarize_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Summarize(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input mutated: %v", in)
	}
}
