package latency

import (
	"math/rand"
	"testing"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

func TestFixedPlusJitterDeterminism(t *testing.T) {
	g := FixedPlusJitter(MsToNs(5), MsToNs(2))
	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		at := fixedpoint.SimulatedTime(i) * fixedpoint.SimulatedTime(MsToNs(10))
		a1 := g(r1, at)
		a2 := g(r2, at)
		if a1 != a2 {
			t.Fatalf("non-deterministic at iteration %d: %d != %d", i, a1, a2)
		}
	}
}

func TestFixedHasNoJitter(t *testing.T) {
	g := Fixed(MsToNs(10))
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if d := g(r, 0); d != MsToNs(10) {
			t.Fatalf("iteration %d: expected %d, got %d", i, MsToNs(10), d)
		}
	}
}

func TestFixedPlusJitterBounds(t *testing.T) {
	base := MsToNs(5)
	jitter := MsToNs(3)
	g := FixedPlusJitter(base, jitter)
	r := rand.New(rand.NewSource(99))

	for i := 0; i < 10000; i++ {
		delay := g(r, 0)
		if delay < base {
			t.Fatalf("delay %d < base %d", delay, base)
		}
		if delay >= base+jitter {
			t.Fatalf("delay %d >= base+jitter %d", delay, base+jitter)
		}
	}
}

func TestDisabledPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Disabled to panic")
		}
	}()
	r := rand.New(rand.NewSource(1))
	Disabled(r, 0)
}

func TestMsToNs(t *testing.T) {
	if MsToNs(1) != 1_000_000 {
		t.Errorf("MsToNs(1) = %d, want 1000000", MsToNs(1))
	}
	if MsToNs(50) != 50_000_000 {
		t.Errorf("MsToNs(50) = %d, want 50000000", MsToNs(50))
	}
}
