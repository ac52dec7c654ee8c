package exchange

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/history"
	"github.com/nrjones/lob-backtester/internal/latency"
	"github.com/nrjones/lob-backtester/internal/matching"
	"github.com/nrjones/lob-backtester/internal/protocol"
	"github.com/nrjones/lob-backtester/internal/session"
	"github.com/nrjones/lob-backtester/internal/summary"
	"github.com/nrjones/lob-backtester/internal/trader"
)

// recordingTrader counts session lifecycle calls and posts one bid the
// first time it is woken up, so a single run exercises placement,
// queue-position recording, and reply delivery end to end.
type recordingTrader struct {
	opens, closes int
	wokenUp       bool
	nextID        fixedpoint.OrderID
}

func (r *recordingTrader) OnExchangeReply(fixedpoint.SimulatedTime, protocol.ExchangeReply) []protocol.TraderRequest {
	return nil
}
func (r *recordingTrader) OnOrderBookSnapshot(fixedpoint.SimulatedTime, protocol.OrderBookSnapshot) []protocol.TraderRequest {
	return nil
}
func (r *recordingTrader) OnTradeInfo(fixedpoint.SimulatedTime, protocol.TradeInfo) []protocol.TraderRequest {
	return nil
}
func (r *recordingTrader) OnWakeUp(fixedpoint.SimulatedTime) []protocol.TraderRequest {
	if r.wokenUp {
		return nil
	}
	r.wokenUp = true
	r.nextID++
	return []protocol.TraderRequest{protocol.PlaceLimit(r.nextID, fixedpoint.Buy, 10, 100)}
}
func (r *recordingTrader) OnOpen(fixedpoint.SimulatedTime) []protocol.TraderRequest {
	r.opens++
	return nil
}
func (r *recordingTrader) OnClose(fixedpoint.SimulatedTime) []protocol.TraderRequest {
	r.closes++
	return nil
}

func newTestExchange(tr *recordingTrader) *Exchange {
	eng := matching.New()
	sess := session.New(session.ContinuousHours{Start: 0, End: 10_000_000_000})
	sess.WakeUp = &session.Subscription{
		Kind:     session.WakeUpSubscription,
		Interval: latency.Fixed(1_000_000_000),
	}
	rng := rand.New(rand.NewSource(1))
	rx := latency.Fixed(1000)
	tx := latency.Fixed(1000)
	ex := New(eng, sess, nil, tr, rng, rx, tx, 0)
	ex.Summary = summary.New()
	return ex
}

func TestRunOpensAndClosesSessionExactlyOnce(t *testing.T) {
	tr := &recordingTrader{}
	ex := newTestExchange(tr)

	if err := ex.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tr.opens != 1 {
		t.Errorf("expected exactly one OnOpen call, got %d", tr.opens)
	}
	if tr.closes != 1 {
		t.Errorf("expected exactly one OnClose call, got %d", tr.closes)
	}
}

func TestRunDeliversPlacedOrderAndRecordsSummary(t *testing.T) {
	tr := &recordingTrader{}
	ex := newTestExchange(tr)

	if err := ex.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	s := ex.Summary.Compute()
	if s.OrdersSent != 1 || s.LimitOrders != 1 {
		t.Fatalf("expected one limit order recorded in the summary, got %+v", s)
	}
	if s.AvgQueuePosPlace == 0 {
		t.Errorf("expected a recorded queue position at placement, got %+v", s)
	}
}

func TestRunWithNoHistoryStillTerminates(t *testing.T) {
	tr := &recordingTrader{}
	ex := newTestExchange(tr)
	ex.Session.WakeUp = nil // no self-re-enqueuing source of events besides the session probes

	if err := ex.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ex.Queue.Len() != 0 {
		t.Errorf("expected an empty queue once Run returns, got %d pending", ex.Queue.Len())
	}
}

// TestRunProcessesHistoryPastSessionCloseWithoutHanging is a
// regression test: once ContinuousHours closes the venue for good,
// NextOpen(CurrentTime) no longer advances strictly past CurrentTime,
// so the session must not re-arm an open probe at the same instant
// (which would reopen, wipe the book, and re-close forever). A
// history record timestamped after the close boundary must still be
// drained and Run must still return.
func TestRunProcessesHistoryPastSessionCloseWithoutHanging(t *testing.T) {
	dir := t.TempDir()
	obPath := filepath.Join(dir, "ob.csv")
	trdPath := filepath.Join(dir, "trd.csv")
	if err := os.WriteFile(obPath, []byte(
		"datetime,order_id,price,size,bs_flag\n"+
			"2024-01-02 09:30:00.000000000,1,100.00,10,B\n"+
			"2024-01-02 09:30:20.000000000,2,100.00,5,B\n"), 0644); err != nil {
		t.Fatalf("write ob.csv: %v", err)
	}
	if err := os.WriteFile(trdPath, []byte("datetime,order_id,size,bs_flag\n"), 0644); err != nil {
		t.Fatalf("write trd.csv: %v", err)
	}

	step, err := decimal.NewFromString("0.01")
	if err != nil {
		t.Fatalf("decimal.NewFromString: %v", err)
	}
	hist, err := history.NewSource(history.Config{
		OBDiffPaths: []string{obPath},
		TradePaths:  []string{trdPath},
		Columns: history.Columns{
			Timestamp: "datetime",
			OrderID:   "order_id",
			Price:     "price",
			Size:      "size",
			BuySell:   "bs_flag",
		},
		DatetimeFormat: "%Y-%m-%d %H:%M:%S%.f",
		CSVSeparator:   ',',
		PriceStep:      step,
	})
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer hist.Close()

	eng := matching.New()
	// End is 10s into the tape (2024-01-02 09:30:10 UTC in Unix ns); the
	// second ob-diff row (at +20s) falls after close and must still be
	// drained without hanging Run.
	sess := session.New(session.ContinuousHours{Start: 0, End: 1_704_187_810_000_000_000})
	rng := rand.New(rand.NewSource(1))
	ex := New(eng, sess, hist, trader.VoidTrader{}, rng, latency.Fixed(0), latency.Fixed(0), 0)

	done := make(chan error, 1)
	go func() { done <- ex.Run() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return: session likely stuck reopening at the same instant forever")
	}
	if ex.Queue.Len() != 0 {
		t.Errorf("expected an empty queue once Run returns, got %d pending", ex.Queue.Len())
	}
}
