// Package test holds top-level integration tests that exercise the
// full config -> exchange -> summary path against synthetic tapes,
// rather than unit tests within each internal package.
package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nrjones/lob-backtester/internal/config"
	"github.com/nrjones/lob-backtester/internal/scenario"
	"github.com/nrjones/lob-backtester/internal/session"
	"github.com/nrjones/lob-backtester/internal/summary"
	"github.com/nrjones/lob-backtester/internal/trader"
)

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func buildTestConfig(t *testing.T, seed int64) *config.Config {
	t.Helper()
	dir := t.TempDir()
	obCSV, trdCSV := scenario.Generate(scenario.DefaultParams(seed))
	obPath := writeFixture(t, dir, "ob.csv", obCSV)
	trdPath := writeFixture(t, dir, "trd.csv", trdCSV)

	return &config.Config{
		Seed: seed,
		History: config.HistoryConfig{
			OBHistoryPaths:    []string{obPath},
			TradeHistoryPaths: []string{trdPath},
			DatetimeCol:       "datetime",
			IDCol:             "order_id",
			PriceCol:          "price",
			SizeCol:           "size",
			BSFlagCol:         "bs_flag",
			DatetimeFormat:    scenario.DatetimeFormat,
			CSVSep:            ",",
			PriceStep:         "0.01",
		},
		Latency: config.LatencyConfig{
			ExchangeToTraderBaseNs: 5_000,
			TraderToExchangeBaseNs: 5_000,
		},
	}
}

// TestIntegrationRunProducesFillsAndSummary runs one full simulation
// over a synthetic tape and checks that the trader actually traded and
// that the run summary reflects it.
func TestIntegrationRunProducesFillsAndSummary(t *testing.T) {
	cfg := buildTestConfig(t, 7)
	// The generated tape starts at 2024-01-02 09:30:00 UTC; End is 10s
	// after that, in Unix nanoseconds, so the session covers the tape.
	hours := session.ContinuousHours{Start: 0, End: 1_704_187_810_000_000_000}

	ex, err := config.NewBuilder(cfg, hours).
		WithOrderBookSubscription(5, 200_000_000, 0).
		WithTradeInfoSubscription(200_000_000, 0).
		WithWakeUpSubscription(100_000_000, 0).
		Build(trader.NewNaivePostAtBest(0))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ex.Summary = summary.New()

	if err := ex.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	s := ex.Summary.Compute()
	if s.OrdersSent == 0 {
		t.Error("expected the trader to have sent at least one order")
	}
	if ex.Queue.Len() != 0 {
		t.Errorf("expected an empty event queue once Run returns, got %d pending", ex.Queue.Len())
	}
}

// TestIntegrationDebugModeDoesNotAlterOutcome checks that enabling the
// diagnostics sink (features.debug) changes nothing about the run's
// observable outcome, only whether advisories are recorded.
func TestIntegrationDebugModeDoesNotAlterOutcome(t *testing.T) {
	cfg := buildTestConfig(t, 3)
	hours := session.ContinuousHours{Start: 0, End: 5_000_000_000}

	runWithDebug := func(debug bool) *summaryResult {
		b := config.NewBuilder(cfg, hours).
			WithOrderBookSubscription(5, 200_000_000, 0).
			WithWakeUpSubscription(100_000_000, 0)
		if debug {
			b = b.WithDebug()
		}
		ex, err := b.Build(trader.NewNaivePostAtBest(0))
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		ex.Summary = summary.New()
		if err := ex.Run(); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		s := ex.Summary.Compute()
		return &summaryResult{orders: s.OrdersSent, fills: s.TotalFills}
	}

	without := runWithDebug(false)
	with := runWithDebug(true)
	if without.orders != with.orders || without.fills != with.fills {
		t.Errorf("expected debug mode to leave outcome unchanged, got %+v vs %+v", without, with)
	}
}

type summaryResult struct {
	orders, fills int
}
