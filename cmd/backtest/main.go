// Command backtest runs one exchange simulation from a YAML config and
// writes its event log and execution summary to an output directory.
//
// Grounded on teacher cmd/fairsim/main.go's run/replay command pair:
// "run" drives a simulation end to end and hashes its event log, and
// "replay" re-runs the same config from a fresh Exchange and compares
// hashes to catch any accidental nondeterminism.
package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nrjones/lob-backtester/internal/config"
	"github.com/nrjones/lob-backtester/internal/eventlog"
	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/session"
	"github.com/nrjones/lob-backtester/internal/summary"
	"github.com/nrjones/lob-backtester/internal/trader"
)

const defaultRunsDir = "runs"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "run":
		if err := cmdRun(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "replay":
		if err := cmdReplay(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: backtest <command> [options]

Commands:
  run      Run one simulation from a config file
  replay   Re-run the same config and verify the event log matches bit-for-bit

Run options:
  --config <path>     Path to the YAML config file (required)
  --out <path>        Output directory (default: runs/<random-id>)
  --start <ns>        Venue open boundary, simulated nanoseconds (default: 0)
  --end <ns>          Venue close boundary, simulated nanoseconds (required)

Replay options:
  --config <path>     Path to the YAML config file (required)
  --start <ns>        Venue open boundary, simulated nanoseconds (default: 0)
  --end <ns>          Venue close boundary, simulated nanoseconds (required)`)
}

type runFlags struct {
	configPath string
	outDir     string
	start      int64
	end        int64
}

func parseRunFlags(args []string) (runFlags, error) {
	var f runFlags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i < len(args) {
				f.configPath = args[i]
			}
		case "--out":
			i++
			if i < len(args) {
				f.outDir = args[i]
			}
		case "--start":
			i++
			if i < len(args) {
				fmt.Sscanf(args[i], "%d", &f.start)
			}
		case "--end":
			i++
			if i < len(args) {
				fmt.Sscanf(args[i], "%d", &f.end)
			}
		}
	}
	if f.configPath == "" {
		return f, fmt.Errorf("--config is required")
	}
	if f.end == 0 {
		return f, fmt.Errorf("--end is required")
	}
	return f, nil
}

func cmdRun(args []string) error {
	f, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	if f.outDir == "" {
		f.outDir = filepath.Join(defaultRunsDir, uuid.NewString())
	}
	if err := os.MkdirAll(f.outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cfg, summ, logHash, err := runOnce(f)
	if err != nil {
		return err
	}
	_ = cfg

	reportPath := filepath.Join(f.outDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(summ.RenderMarkdown()), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Printf("Run complete.\n")
	fmt.Printf("  Output:   %s\n", f.outDir)
	fmt.Printf("  Log hash: %s\n", logHash)
	fmt.Printf("  Orders sent:  %d\n", summ.OrdersSent)
	fmt.Printf("  Total fills:  %d\n", summ.TotalFills)
	fmt.Printf("  Fill rate:    %.2f%%\n", summ.FillRate*100)
	fmt.Printf("Report written to: %s\n", reportPath)
	return nil
}

func cmdReplay(args []string) error {
	f, err := parseRunFlags(args)
	if err != nil {
		return err
	}

	firstDir, err := os.MkdirTemp("", "backtest-replay-a-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(firstDir)
	secondDir, err := os.MkdirTemp("", "backtest-replay-b-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(secondDir)

	f1 := f
	f1.outDir = firstDir
	_, _, hashA, err := runOnce(f1)
	if err != nil {
		return fmt.Errorf("first run: %w", err)
	}

	f2 := f
	f2.outDir = secondDir
	_, _, hashB, err := runOnce(f2)
	if err != nil {
		return fmt.Errorf("second run: %w", err)
	}

	if hashA == hashB {
		fmt.Printf("Deterministic: both runs produced identical event logs (%s...).\n", hashA[:16])
		return nil
	}
	fmt.Printf("MISMATCH!\n  run A: %s\n  run B: %s\n", hashA, hashB)
	os.Exit(1)
	return nil
}

// runOnce loads the config, builds and runs one Exchange, and returns
// its execution summary plus the sha256 of its event log.
func runOnce(f runFlags) (*config.Config, *summary.Summary, string, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, "", err
	}

	hours := session.ContinuousHours{
		Start: fixedpoint.SimulatedTime(f.start),
		End:   fixedpoint.SimulatedTime(f.end),
	}

	builder := config.NewBuilder(cfg, hours)
	if cfg.Features.Debug {
		builder = builder.WithDebug()
	}
	if cfg.Features.TradeUpdatesBook {
		builder = builder.WithTradeUpdatesBook()
	}
	if sub := cfg.Features.OrderBook; sub != nil {
		builder = builder.WithOrderBookSubscription(sub.Depth, sub.IntervalNs, sub.JitterNs)
	}
	if sub := cfg.Features.TradeInfo; sub != nil {
		builder = builder.WithTradeInfoSubscription(sub.IntervalNs, sub.JitterNs)
	}
	if sub := cfg.Features.WakeUp; sub != nil {
		builder = builder.WithWakeUpSubscription(sub.IntervalNs, sub.JitterNs)
	}

	ex, err := builder.Build(trader.NewNaivePostAtBest(0))
	if err != nil {
		return nil, nil, "", fmt.Errorf("build exchange: %w", err)
	}
	ex.Summary = summary.New()

	logPath := filepath.Join(f.outDir, "events.jsonl")
	logWriter, err := eventlog.NewWriter(logPath)
	if err != nil {
		return nil, nil, "", err
	}
	ex.Log = logWriter

	if err := ex.Run(); err != nil {
		logWriter.Close()
		return nil, nil, "", fmt.Errorf("run: %w", err)
	}
	if err := logWriter.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("close event log: %w", err)
	}

	hash, err := hashFile(logPath)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, ex.Summary.Compute(), hash, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h), nil
}
