package rft

import (
	"math/rand"
	"testing"
)

// TestAddAssociative checks the associativity law spec §8 calls out:
// add(add(a,b),c) == add(a,add(b,c)).
func TestAddAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		a := Value(rng.Intn(SeqMax))
		b := Size(rng.Intn(SeqMax))
		c := Size(rng.Intn(SeqMax))
		lhs := Add(Add(a, b), c)
		rhs := Add(a, Size((uint32(b)+uint32(c))%SeqMax))
		if lhs != rhs {
			t.Fatalf("add(add(%d,%d),%d) = %d, want add(%d,add(%d,%d)) = %d", a, b, c, lhs, a, b, c, rhs)
		}
	}
}

func TestAddWraps(t *testing.T) {
	cases := []struct {
		b    Value
		d    Size
		want Value
	}{
		{0, 0, 0},
		{SeqMax - 1, 1, 0},
		{SeqMax - 1, 2, 1},
		{100, SeqMax, 100},
	}
	for _, c := range cases {
		if got := Add(c.b, c.d); got != c.want {
			t.Errorf("Add(%d, %d) = %d, want %d", c.b, c.d, got, c.want)
		}
	}
}

// TestInForwardWindowHalfSpace checks
// in_forward_window(add(base,k), base) == (k < SeqMax/2) for all k in
// [0, SeqMax), the one-to-one classification property the receive engine's
// reorder/discard decision depends on.
func TestInForwardWindowHalfSpace(t *testing.T) {
	bases := []Value{0, 1, SeqMax - 1, SeqHalf, 12345}
	for _, base := range bases {
		for k := 0; k < SeqMax; k += 37 { // stride to keep the test fast
			s := Add(base, Size(k))
			want := k < SeqHalf
			if got := InForwardWindow(s, base); got != want {
				t.Fatalf("InForwardWindow(add(%d,%d)=%d, %d) = %v, want %v", base, k, s, base, got, want)
			}
		}
	}
}

func TestInForwardWindowBoundary(t *testing.T) {
	const base = Value(1000)
	if !InForwardWindow(Add(base, SeqHalf-1), base) {
		t.Fatal("SeqHalf-1 ahead of base should be in the forward window")
	}
	if InForwardWindow(Add(base, SeqHalf), base) {
		t.Fatal("exactly SeqHalf ahead of base should be outside the forward window")
	}
	if !InForwardWindow(base, base) {
		t.Fatal("base itself must be in its own forward window (distance 0)")
	}
}

func TestRandomISNRange(t *testing.T) {
	var src ISNSource
	for i := 0; i < 1000; i++ {
		v, err := src.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if v > SeqMax {
			t.Fatalf("ISN %d out of range [0, %d]", v, SeqMax)
		}
	}
}

func TestRandomISNSpreadsOut(t *testing.T) {
	// Two connections opened back to back should not land on the same ISN;
	// the counter mixed into the hash is what makes them differ (the secret
	// alone is fixed for the process's whole lifetime). The hash is reduced
	// modulo SeqMax+1, so a collision remains possible with probability
	// about 1 in 30721.
	var src ISNSource
	first, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	second, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first == second {
		t.Fatalf("consecutive ISNs collided: both %d", first)
	}
}
