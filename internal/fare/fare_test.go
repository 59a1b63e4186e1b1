package fare

import "testing"

func TestQuote(t *testing.T) {
	c := New(DefaultRates())
	if got := c.Quote(5.0); got != 2500 {
		t.Fatalf("expected 2500, got %f", got)
	}
	if got := c.Quote(0); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestSettleCancellation(t *testing.T) {
	c := New(DefaultRates())
	// 500 base + 1.0km*300 + 2500*0.15 = 1175
	if got := c.SettleCancellation(1.0, 2500); got != 1175 {
		t.Fatalf("expected 1175, got %f", got)
	}
}

func TestSettleCancellationRounds(t *testing.T) {
	c := New(DefaultRates())
	// 500 + 0.333*300 + 1000*0.15 = 749.9 -> 750
	if got := c.SettleCancellation(0.333, 1000); got != 750 {
		t.Fatalf("expected 750, got %f", got)
	}
}

func TestSettlementDeterminism(t *testing.T) {
	c := New(DefaultRates())
	first := c.SettleCancellation(2.75, c.Quote(8.4))
	for i := 0; i < 100; i++ {
		if got := c.SettleCancellation(2.75, c.Quote(8.4)); got != first {
			t.Fatalf("settlement not deterministic: %f vs %f", got, first)
		}
	}
}
