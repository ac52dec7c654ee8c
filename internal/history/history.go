// Package history replays a recorded order-book tape as a lazily-merged
// stream of events. It reads two parallel CSV streams — order-book diffs
// ("PRL": price level) and executed trades ("TRD") — and merges them in
// monotonic timestamp order, one record ahead at a time, so the exchange
// never has to hold more than the next record of each stream in memory.
//
// Grounded on original_source/src/cli.rs's InputInterface trait for the
// column layout and CLI-style defaults, and original_source/src/input.rs
// for the same contract without the clap derive. encoding/csv is used
// deliberately: no third-party CSV library appears anywhere in the
// example pack, so this is the one place this codebase reaches past the
// pack's own stack (see DESIGN.md).
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

// Columns names the CSV columns to look for in both the PRL and TRD
// files. Defaults mirror original_source/src/cli.rs's ArgumentParser.
type Columns struct {
	Timestamp string
	OrderID   string
	Price     string
	Size      string
	BuySell   string
}

// DefaultColumns returns the teacher-style CLI defaults.
func DefaultColumns() Columns {
	return Columns{
		Timestamp: "Timestamp",
		OrderID:   "ORDER_ID",
		Price:     "PRICE",
		Size:      "SIZE",
		BuySell:   "BUY_SELL_FLAG",
	}
}

// Config parameterizes a Source: file paths, column layout, datetime
// format (strftime-style, as in the original CLI), CSV separator, and
// the tick size used to validate/convert price strings.
type Config struct {
	OBDiffPaths   []string
	TradePaths    []string
	Columns       Columns
	DatetimeFormat string // strftime, e.g. "%Y-%m-%d %H:%M:%S%.f"
	CSVSeparator  rune
	PriceStep     decimal.Decimal
}

// RecordKind distinguishes an order-book diff record from an executed
// trade record within the merged stream.
type RecordKind int8

const (
	OBDiff RecordKind = iota
	Trade
)

// Record is one row of either source stream, normalized to the
// engine's fixed-point types.
type Record struct {
	Kind      RecordKind
	Time      fixedpoint.SimulatedTime
	OrderID   fixedpoint.OrderID
	Price     fixedpoint.Price
	Size      fixedpoint.Size
	Direction fixedpoint.Direction
}

// rowReader reads one configured CSV stream, one logical row at a
// time, translating into Record via the shared column-index lookup.
type rowReader struct {
	files      []string
	fileIdx    int
	reader     *csv.Reader
	closer     io.Closer
	colTime    int
	colID      int
	colPrice   int
	colSize    int
	colBS      int
	layout     string
	priceStep  decimal.Decimal
	kind       RecordKind
	exhausted  bool
}

// requiresPrice reports whether a stream of this kind carries a price
// column. Per the OB-diff/trade schemas, a trade row is an aggregated
// execution (datetime, order_id, size, bs_flag) with no price — the
// matching engine derives the actual execution price from whatever the
// simulated book holds when the trade is replayed.
func (k RecordKind) requiresPrice() bool { return k == OBDiff }

func newRowReader(paths []string, cols Columns, datetimeFormat string, sep rune, priceStep decimal.Decimal, kind RecordKind) (*rowReader, error) {
	layout, err := strftimeToGoLayout(datetimeFormat)
	if err != nil {
		return nil, err
	}
	rr := &rowReader{
		files:     paths,
		fileIdx:   -1,
		layout:    layout,
		priceStep: priceStep,
		kind:      kind,
	}
	if err := rr.advanceFile(cols, sep); err != nil {
		return nil, err
	}
	return rr, nil
}

func (rr *rowReader) advanceFile(cols Columns, sep rune) error {
	if rr.closer != nil {
		rr.closer.Close()
		rr.closer = nil
	}
	rr.fileIdx++
	if rr.fileIdx >= len(rr.files) {
		rr.exhausted = true
		return nil
	}
	f, err := os.Open(rr.files[rr.fileIdx])
	if err != nil {
		return fmt.Errorf("history: cannot open %s: %w", rr.files[rr.fileIdx], err)
	}
	rr.closer = f
	r := csv.NewReader(f)
	r.Comma = sep
	header, err := r.Read()
	if err != nil {
		f.Close()
		return fmt.Errorf("history: cannot read header of %s: %w", rr.files[rr.fileIdx], err)
	}
	rr.colTime = indexOf(header, cols.Timestamp)
	rr.colID = indexOf(header, cols.OrderID)
	rr.colPrice = indexOf(header, cols.Price)
	rr.colSize = indexOf(header, cols.Size)
	rr.colBS = indexOf(header, cols.BuySell)
	required := []struct {
		name string
		idx  int
	}{
		{cols.Timestamp, rr.colTime}, {cols.OrderID, rr.colID},
		{cols.Size, rr.colSize}, {cols.BuySell, rr.colBS},
	}
	if rr.kind.requiresPrice() {
		required = append(required, struct {
			name string
			idx  int
		}{cols.Price, rr.colPrice})
	}
	for _, need := range required {
		if need.idx < 0 {
			f.Close()
			return fmt.Errorf("history: column %q not found in %s header %v", need.name, rr.files[rr.fileIdx], header)
		}
	}
	rr.reader = r
	return nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func (rr *rowReader) next(cols Columns, sep rune) (*Record, error) {
	for {
		if rr.exhausted {
			return nil, nil
		}
		row, err := rr.reader.Read()
		if err == io.EOF {
			if err := rr.advanceFile(cols, sep); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("history: read error in %s: %w", rr.files[rr.fileIdx], err)
		}
		return rr.parseRow(row)
	}
}

func (rr *rowReader) parseRow(row []string) (*Record, error) {
	t, err := time.Parse(rr.layout, row[rr.colTime])
	if err != nil {
		return nil, fmt.Errorf("history: cannot parse timestamp %q: %w", row[rr.colTime], err)
	}
	id, err := strconv.ParseUint(row[rr.colID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("history: cannot parse order id %q: %w", row[rr.colID], err)
	}
	var price fixedpoint.Price
	if rr.kind.requiresPrice() {
		price, err = fixedpoint.PriceFromDecimalString(row[rr.colPrice], rr.priceStep)
		if err != nil {
			return nil, err
		}
	}
	sizeDec, err := decimal.NewFromString(row[rr.colSize])
	if err != nil {
		return nil, fmt.Errorf("history: cannot parse size %q: %w", row[rr.colSize], err)
	}
	dir, err := parseBuySellFlag(row[rr.colBS])
	if err != nil {
		return nil, err
	}
	return &Record{
		Kind:      rr.kind,
		Time:      fixedpoint.SimulatedTime(t.UnixNano()),
		OrderID:   fixedpoint.OrderID(id),
		Price:     price,
		Size:      fixedpoint.Size(sizeDec.IntPart()),
		Direction: dir,
	}, nil
}

// parseBuySellFlag accepts the flag vocabulary used across known
// historical tape exports: {0,B,b,False,false} -> Buy,
// {1,S,s,True,true} -> Sell. Anything else is a fatal parse error —
// the spec treats an unrecognized flag as malformed input, not as a
// recoverable default.
func parseBuySellFlag(raw string) (fixedpoint.Direction, error) {
	switch strings.TrimSpace(raw) {
	case "0", "B", "b", "False", "false":
		return fixedpoint.Buy, nil
	case "1", "S", "s", "True", "true":
		return fixedpoint.Sell, nil
	default:
		return 0, fmt.Errorf("history: unrecognized buy/sell flag %q", raw)
	}
}

// strftimeToGoLayout translates the handful of strftime directives the
// original CLI's datetime-format option actually uses into a Go
// reference-time layout. Only the directives that appear in
// original_source's default ("%Y-%m-%d %H:%M:%S%.f") and its
// documented alternatives are supported; an unsupported directive is a
// configuration error, not a silent pass-through.
func strftimeToGoLayout(format string) (string, error) {
	replacements := []struct {
		from, to string
	}{
		{"%Y", "2006"}, {"%m", "01"}, {"%d", "02"},
		{"%H", "15"}, {"%M", "04"}, {"%S", "05"},
		{"%.f", ".000000000"}, {"%f", "000000000"},
	}
	out := format
	for _, r := range replacements {
		out = strings.ReplaceAll(out, r.from, r.to)
	}
	if strings.Contains(out, "%") {
		return "", fmt.Errorf("history: unsupported strftime directive in format %q", format)
	}
	return out, nil
}

// Source lazily merges an order-book-diff stream and a trade stream
// into one monotonically-ordered Record sequence, holding at most one
// buffered record from each underlying stream at a time.
type Source struct {
	ob      *rowReader
	trd     *rowReader
	obNext  *Record
	trdNext *Record
	lastT   fixedpoint.SimulatedTime
	started bool
	cfg     Config
}

// NewSource opens both streams and primes the first record of each.
func NewSource(cfg Config) (*Source, error) {
	ob, err := newRowReader(cfg.OBDiffPaths, cfg.Columns, cfg.DatetimeFormat, cfg.CSVSeparator, cfg.PriceStep, OBDiff)
	if err != nil {
		return nil, err
	}
	trd, err := newRowReader(cfg.TradePaths, cfg.Columns, cfg.DatetimeFormat, cfg.CSVSeparator, cfg.PriceStep, Trade)
	if err != nil {
		return nil, err
	}
	s := &Source{ob: ob, trd: trd, cfg: cfg}
	if err := s.fill(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) fill() error {
	if s.obNext == nil {
		r, err := s.ob.next(s.cfg.Columns, s.cfg.CSVSeparator)
		if err != nil {
			return err
		}
		s.obNext = r
	}
	if s.trdNext == nil {
		r, err := s.trd.next(s.cfg.Columns, s.cfg.CSVSeparator)
		if err != nil {
			return err
		}
		s.trdNext = r
	}
	return nil
}

// Next returns the next record in the merged stream, or nil when both
// streams are exhausted. Tie-break when both streams have a record at
// the identical timestamp: the order-book diff is delivered first
// unless the trade's order ID sorts numerically lower, mirroring the
// convention that a trade print and its triggering book update can
// share a timestamp but the diff is logically downstream of the match
// that produced it — except when the trade stream's ID indicates it
// was recorded earlier in the exchange's own sequencing.
func (s *Source) Next() (*Record, error) {
	if err := s.fill(); err != nil {
		return nil, err
	}
	var chosen *Record
	switch {
	case s.obNext == nil && s.trdNext == nil:
		return nil, nil
	case s.obNext == nil:
		chosen = s.trdNext
		s.trdNext = nil
	case s.trdNext == nil:
		chosen = s.obNext
		s.obNext = nil
	case s.trdNext.Time < s.obNext.Time:
		chosen = s.trdNext
		s.trdNext = nil
	case s.obNext.Time < s.trdNext.Time:
		chosen = s.obNext
		s.obNext = nil
	case s.trdNext.OrderID < s.obNext.OrderID:
		chosen = s.trdNext
		s.trdNext = nil
	default:
		chosen = s.obNext
		s.obNext = nil
	}
	if s.started && chosen.Time < s.lastT {
		panic(fmt.Sprintf("history: time regression, %d after %d", chosen.Time, s.lastT))
	}
	s.lastT = chosen.Time
	s.started = true
	return chosen, nil
}

// Close releases both underlying file handles.
func (s *Source) Close() {
	if s.ob.closer != nil {
		s.ob.closer.Close()
	}
	if s.trd.closer != nil {
		s.trd.closer.Close()
	}
}
