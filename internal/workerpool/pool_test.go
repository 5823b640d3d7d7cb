package workerpool

import "testing"

func TestSizePreviousPowerOfTwoCappedAtEight(t *testing.T) {
	cases := []struct {
		cpus, want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 4},
		{5, 4},
		{7, 4},
		{8, 8},
		{16, 8},
		{64, 8},
	}
	for _, c := range cases {
		if got := Size(c.cpus); got != c.want {
			t.Errorf("Size(%d) = %d, want %d", c.cpus, got, c.want)
		}
	}
}

func TestNewDerivesSizeWhenWorkersNonPositive(t *testing.T) {
	p := New(0)
	if p.Workers() < 1 {
		t.Fatalf("Workers() = %d, want >= 1", p.Workers())
	}
}

func TestNewHonorsExplicitWorkerCount(t *testing.T) {
	p := New(3)
	if p.Workers() != 3 {
		t.Fatalf("Workers() = %d, want 3", p.Workers())
	}
	if p.Semaphore() == nil {
		t.Fatal("expected a non-nil semaphore")
	}
}
