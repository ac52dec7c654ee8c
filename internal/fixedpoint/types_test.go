package fixedpoint

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSizeSubSaturatesAtZero(t *testing.T) {
	s := Size(5)
	if got := s.Sub(10); got != 0 {
		t.Errorf("expected saturation at 0, got %d", got)
	}
	if got := s.Sub(3); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestDirectionOpposite(t *testing.T) {
	if Buy.Opposite() != Sell {
		t.Errorf("expected Sell, got %v", Buy.Opposite())
	}
	if Sell.Opposite() != Buy {
		t.Errorf("expected Buy, got %v", Sell.Opposite())
	}
}

func TestPriceFromDecimalStringExact(t *testing.T) {
	tick := decimal.New(25, -4) // 0.0025
	p, err := PriceFromDecimalString("100.0050", tick)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 40002 {
		t.Errorf("expected 40002, got %d", p)
	}
}

func TestPriceFromDecimalStringRejectsImprecise(t *testing.T) {
	tick := decimal.New(25, -4) // 0.0025
	_, err := PriceFromDecimalString("100.0051", tick)
	if err == nil {
		t.Fatal("expected precision error, got nil")
	}
}

func TestEventKindOrdering(t *testing.T) {
	if !(KindHistoryEvent < KindTraderRequest &&
		KindTraderRequest < KindExchangeReplyEcho &&
		KindExchangeReplyEcho < KindSubscriptionUpdate &&
		KindSubscriptionUpdate < KindSubscriptionSchedule &&
		KindSubscriptionSchedule < KindTraderWakeUp &&
		KindTraderWakeUp < KindSessionOpenProbe) {
		t.Fatal("event kind tie-break ordering violated")
	}
}
