package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T, obPath, trdPath string) Config {
	step, err := decimal.NewFromString("0.01")
	if err != nil {
		t.Fatalf("decimal.NewFromString: %v", err)
	}
	return Config{
		OBDiffPaths: []string{obPath},
		TradePaths:  []string{trdPath},
		Columns: Columns{
			Timestamp: "datetime",
			OrderID:   "order_id",
			Price:     "price",
			Size:      "size",
			BuySell:   "bs_flag",
		},
		DatetimeFormat: "%Y-%m-%d %H:%M:%S%.f",
		CSVSeparator:   ',',
		PriceStep:      step,
	}
}

func TestSourceMergesStreamsInTimeOrder(t *testing.T) {
	ob := writeCSV(t, "ob.csv", "datetime,order_id,price,size,bs_flag\n"+
		"2024-01-02 09:30:00.000000000,1,100.00,10,B\n"+
		"2024-01-02 09:30:02.000000000,2,100.01,5,S\n")
	trd := writeCSV(t, "trd.csv", "datetime,order_id,size,bs_flag\n"+
		"2024-01-02 09:30:01.000000000,3,7,B\n")

	src, err := NewSource(testConfig(t, ob, trd))
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close()

	var kinds []RecordKind
	var times []fixedpoint.SimulatedTime
	for {
		rec, err := src.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rec == nil {
			break
		}
		kinds = append(kinds, rec.Kind)
		times = append(times, rec.Time)
	}

	if len(kinds) != 3 {
		t.Fatalf("expected 3 merged records, got %d", len(kinds))
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			t.Fatalf("expected monotonic merge order, got %v", times)
		}
	}
	if kinds[0] != OBDiff || kinds[1] != Trade || kinds[2] != OBDiff {
		t.Fatalf("expected [OBDiff, Trade, OBDiff] interleaving, got %v", kinds)
	}
}

func TestTradeRowHasNoPriceColumn(t *testing.T) {
	ob := writeCSV(t, "ob.csv", "datetime,order_id,price,size,bs_flag\n"+
		"2024-01-02 09:30:00.000000000,1,100.00,10,B\n")
	trd := writeCSV(t, "trd.csv", "datetime,order_id,size,bs_flag\n"+
		"2024-01-02 09:30:01.000000000,2,7,B\n")

	src, err := NewSource(testConfig(t, ob, trd))
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close()

	rec, err := src.Next()
	if err != nil || rec == nil {
		t.Fatalf("expected the OB-diff record first, got %+v, err=%v", rec, err)
	}
	rec, err = src.Next()
	if err != nil || rec == nil {
		t.Fatalf("expected the trade record second, got %+v, err=%v", rec, err)
	}
	if rec.Kind != Trade {
		t.Fatalf("expected a Trade record, got %v", rec.Kind)
	}
	if rec.Price != 0 {
		t.Errorf("expected a trade row's Price to be the zero value (no price column), got %v", rec.Price)
	}
	if rec.Size != 7 {
		t.Errorf("expected size 7, got %v", rec.Size)
	}
}

func TestMissingPriceColumnOnOBDiffIsAnError(t *testing.T) {
	ob := writeCSV(t, "ob.csv", "datetime,order_id,size,bs_flag\n"+
		"2024-01-02 09:30:00.000000000,1,10,B\n")
	trd := writeCSV(t, "trd.csv", "datetime,order_id,size,bs_flag\n"+
		"2024-01-02 09:30:01.000000000,2,7,B\n")

	_, err := NewSource(testConfig(t, ob, trd))
	if err == nil {
		t.Fatal("expected an error: OB-diff rows require a price column")
	}
}

func TestUnrecognizedBuySellFlagIsAnError(t *testing.T) {
	ob := writeCSV(t, "ob.csv", "datetime,order_id,price,size,bs_flag\n"+
		"2024-01-02 09:30:00.000000000,1,100.00,10,X\n")
	trd := writeCSV(t, "trd.csv", "datetime,order_id,size,bs_flag\n")

	// NewSource primes one record from each stream up front, so a
	// malformed first row surfaces immediately rather than on Next().
	if _, err := NewSource(testConfig(t, ob, trd)); err == nil {
		t.Fatal("expected an error for an unrecognized buy/sell flag")
	}
}
