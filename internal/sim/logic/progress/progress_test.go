package progress

import "testing"

func TestRatio(t *testing.T) {
	cases := []struct {
		p, total, want float64
	}{
		{0, 2, 0},
		{1, 2, 0.5},
		{3, 2, 1},
		{1, 0, 0},
		{-1, 2, 0},
	}
	for _, c := range cases {
		if got := Ratio(c.p, c.total); got != c.want {
			t.Fatalf("Ratio(%v,%v)=%v want %v", c.p, c.total, got, c.want)
		}
	}
}

func TestTimer_ReachesAtExactDuration(t *testing.T) {
	tm := Timer{Duration: 2}
	for i := 0; i < 3; i++ {
		if tm.Add(0.5) {
			t.Fatalf("reached early at step %d", i)
		}
	}
	if !tm.Add(0.5) {
		t.Fatalf("expected reached at 2.0, elapsed=%v", tm.Elapsed)
	}
	tm.Reset()
	if tm.Ratio() != 0 {
		t.Fatalf("ratio after reset: %v", tm.Ratio())
	}
}

func TestTimer_ZeroDurationReachesOnFirstAdd(t *testing.T) {
	tm := Timer{}
	if !tm.Add(0.5) {
		t.Fatalf("zero duration should be reached, elapsed=%v", tm.Elapsed)
	}
	tm = Timer{Duration: -1}
	if !tm.Reached() {
		t.Fatalf("negative duration should be reached")
	}
}
