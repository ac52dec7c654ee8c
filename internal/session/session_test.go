package session

import "testing"

func TestContinuousHoursNextOpenClampsToStart(t *testing.T) {
	h := ContinuousHours{Start: 100, End: 1000}
	if got := h.NextOpen(0); got != 100 {
		t.Fatalf("expected clamp to Start=100, got %d", got)
	}
	if got := h.NextOpen(500); got != 500 {
		t.Fatalf("expected pass-through once already past Start, got %d", got)
	}
}

func TestControllerStartsClosed(t *testing.T) {
	c := New(ContinuousHours{Start: 0, End: 1000})
	if c.IsOpen() {
		t.Fatal("expected a new Controller to start Closed")
	}
	if c.State() != Closed {
		t.Fatalf("expected State()==Closed, got %v", c.State())
	}
}

func TestTransitionToOpenIsIdempotent(t *testing.T) {
	c := New(ContinuousHours{Start: 0, End: 1000})
	if !c.TransitionToOpen() {
		t.Fatal("expected first TransitionToOpen to report a real transition")
	}
	if !c.IsOpen() {
		t.Fatal("expected controller to be Open")
	}
	if c.TransitionToOpen() {
		t.Fatal("expected a second TransitionToOpen to be a no-op")
	}
}

func TestTransitionToCloseIsIdempotent(t *testing.T) {
	c := New(ContinuousHours{Start: 0, End: 1000})
	if c.TransitionToClose() {
		t.Fatal("expected TransitionToClose on an already-Closed controller to report no transition")
	}
	c.TransitionToOpen()
	if !c.TransitionToClose() {
		t.Fatal("expected TransitionToClose to report a real transition once Open")
	}
	if c.IsOpen() {
		t.Fatal("expected controller to be Closed")
	}
}

func TestEnabledSubscriptionsFixedOrder(t *testing.T) {
	c := New(ContinuousHours{Start: 0, End: 1000})
	c.WakeUp = &Subscription{Kind: WakeUpSubscription}
	c.OrderBook = &Subscription{Kind: OrderBookSubscription}

	subs := c.EnabledSubscriptions()
	if len(subs) != 2 {
		t.Fatalf("expected 2 enabled subscriptions, got %d", len(subs))
	}
	if subs[0].Kind != OrderBookSubscription || subs[1].Kind != WakeUpSubscription {
		t.Fatalf("expected order-book before wake-up regardless of assignment order, got %+v", subs)
	}
}
