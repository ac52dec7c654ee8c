// Package scenario generates synthetic order-book-diff and trade CSV
// fixtures in internal/history's schema, for tests and demos that need
// a tape without checking in a real one.
//
// Grounded on the teacher's internal/scenario/params.go Config/
// ScenarioParams pair, adapted from an in-memory domain.Event producer
// to a CSV-row producer feeding internal/history.Source.
package scenario

// Params controls a synthetic tape's shape.
type Params struct {
	Seed int64

	// DurationNs bounds how far past StartNs the generator runs.
	StartNs    int64
	DurationNs int64

	InitialMidPrice string // decimal string, e.g. "100.00"
	InitialSpread   string // decimal string, e.g. "0.02"
	PriceTick       string // decimal string, e.g. "0.01"
	MaxPriceLevels  int64
	DepthPerLevel   int64

	OrderIntervalNs  int64
	MarketOrderRatio float64 // fraction of background orders that are market orders
	CancelRate       float64 // fraction that cancel a resting order instead
	MinOrderSize     int64
	MaxOrderSize     int64
}

// DefaultParams mirrors the teacher's calm-scenario defaults, scaled
// down to values a unit test can afford to run synchronously.
func DefaultParams(seed int64) Params {
	return Params{
		Seed:             seed,
		DurationNs:       2_000_000_000,
		InitialMidPrice:  "100.00",
		InitialSpread:    "0.02",
		PriceTick:        "0.01",
		MaxPriceLevels:   3,
		DepthPerLevel:    2,
		OrderIntervalNs:  100_000_000,
		MarketOrderRatio: 0.2,
		CancelRate:       0.15,
		MinOrderSize:     1,
		MaxOrderSize:     10,
	}
}
