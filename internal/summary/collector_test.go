package summary

import (
	"testing"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/protocol"
)

func TestComputeFillRateAndTimeToFill(t *testing.T) {
	c := New()
	c.RecordRequest(0, protocol.PlaceLimit(1, fixedpoint.Buy, 10, 100))
	c.RecordQueuePosition(1, 2)
	c.RecordReply(0, protocol.OrderAccepted(1))
	c.RecordReply(1_000_000, protocol.OrderExecuted(1, 10, 100))

	c.RecordRequest(0, protocol.PlaceLimit(2, fixedpoint.Sell, 5, 101))
	c.RecordQueuePosition(2, 1)

	s := c.Compute()
	if s.OrdersSent != 2 || s.LimitOrders != 2 {
		t.Fatalf("expected 2 limit orders sent, got %+v", s)
	}
	if s.TotalFills != 1 || s.TotalQtyFilled != 10 {
		t.Fatalf("expected one fill of qty 10, got %+v", s)
	}
	if s.FillRate != 0.5 {
		t.Fatalf("expected fill rate 0.5 (1 of 2 placed orders filled), got %v", s.FillRate)
	}
	if s.AvgTimeToFillMs != 1.0 {
		t.Fatalf("expected avg time-to-fill 1ms, got %v", s.AvgTimeToFillMs)
	}
	if s.AvgQueuePosPlace != 1.5 {
		t.Fatalf("expected avg queue position 1.5, got %v", s.AvgQueuePosPlace)
	}
}

func TestComputeCanceledBeforeFill(t *testing.T) {
	c := New()
	c.RecordRequest(0, protocol.PlaceLimit(1, fixedpoint.Buy, 10, 100))
	c.RecordReply(0, protocol.OrderAccepted(1))
	c.RecordRequest(0, protocol.CancelLimit(1))
	c.RecordReply(10, protocol.OrderCancelled(1, protocol.CancelTraderRequested))

	s := c.Compute()
	if s.CanceledBeforeFill != 1 {
		t.Fatalf("expected one order canceled without a fill, got %d", s.CanceledBeforeFill)
	}
	if s.TotalFills != 0 {
		t.Fatalf("expected no fills, got %d", s.TotalFills)
	}
}

func TestComputeEmptyCollector(t *testing.T) {
	s := New().Compute()
	if s.OrdersSent != 0 || s.FillRate != 0 || s.TotalFills != 0 {
		t.Fatalf("expected zero-value summary, got %+v", s)
	}
}
