package flip

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	if s := summarize(nil); s.Count != 0 {
		t.Fatalf("expected empty summary got %+v", s)
	}
	s := summarize([]float64{4, 1, 3, 2})
	if s.Count != 4 || s.Max != 4 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if math.Abs(s.Mean-2.5) > 1e-9 {
		t.Fatalf("unexpected mean %v", s.Mean)
	}
	if s.P50 != 2 {
		t.Fatalf("unexpected median %v", s.P50)
	}
	if s.StdDev <= 0 {
		t.Fatal("expected positive std dev")
	}
}
