// Package config loads a run's configuration from a YAML file and
// builds an exchange from it.
//
// Grounded on 0xtitan6-polymarket-mm's internal/config/config.go — the
// only example in the pack with a real external-configuration layer —
// for the viper/mapstructure loading idiom, applied to spec.md's input
// configuration and feature-flag option table.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the top-level run configuration, maps directly onto the
// YAML file structure.
type Config struct {
	History  HistoryConfig  `mapstructure:"history"`
	Features FeaturesConfig `mapstructure:"features"`
	Latency  LatencyConfig  `mapstructure:"latency"`
	Seed     int64          `mapstructure:"seed"`
}

// HistoryConfig is spec.md's input-configuration table: the two CSV
// family paths, shared column layout, datetime format, separator, and
// tick size.
type HistoryConfig struct {
	OBHistoryPaths    []string `mapstructure:"ob_history_paths"`
	TradeHistoryPaths []string `mapstructure:"trade_history_paths"`
	DatetimeCol       string   `mapstructure:"datetime_col"`
	IDCol             string   `mapstructure:"id_col"`
	PriceCol          string   `mapstructure:"price_col"`
	SizeCol           string   `mapstructure:"size_col"`
	BSFlagCol         string   `mapstructure:"bs_flag_col"`
	DatetimeFormat    string   `mapstructure:"datetime_format"`
	CSVSep            string   `mapstructure:"csv_sep"`
	PriceStep         string   `mapstructure:"price_step"`
}

// FeaturesConfig is spec.md's compile-time-flag-turned-runtime-option
// set: DEBUG, trade-updates-book, and each subscription, each typed so
// a zero value means "disabled."
type FeaturesConfig struct {
	Debug            bool                `mapstructure:"debug"`
	TradeUpdatesBook bool                `mapstructure:"trade_updates_book"`
	OrderBook        *SubscriptionConfig `mapstructure:"order_book_subscription"`
	TradeInfo        *SubscriptionConfig `mapstructure:"trade_info_subscription"`
	WakeUp           *SubscriptionConfig `mapstructure:"wakeup_subscription"`
}

// SubscriptionConfig parameterizes one of the three subscription
// schedules: a fixed base interval plus jitter (both nanoseconds), and
// — for the order-book subscription only — a depth limit (0 = full).
type SubscriptionConfig struct {
	IntervalNs int64 `mapstructure:"interval_ns"`
	JitterNs   int64 `mapstructure:"jitter_ns"`
	Depth      int   `mapstructure:"depth"`
}

// LatencyConfig parameterizes the two latency generators: exchange to
// trader (reply/subscription delivery) and trader to exchange (request
// arrival).
type LatencyConfig struct {
	ExchangeToTraderBaseNs   int64 `mapstructure:"exchange_to_trader_base_ns"`
	ExchangeToTraderJitterNs int64 `mapstructure:"exchange_to_trader_jitter_ns"`
	TraderToExchangeBaseNs   int64 `mapstructure:"trader_to_exchange_base_ns"`
	TraderToExchangeJitterNs int64 `mapstructure:"trader_to_exchange_jitter_ns"`
}

// Load reads a YAML config file into a Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the fields Build requires to be present.
func (c *Config) Validate() error {
	if len(c.History.OBHistoryPaths) == 0 {
		return fmt.Errorf("config: history.ob_history_paths must not be empty")
	}
	if c.History.DatetimeFormat == "" {
		return fmt.Errorf("config: history.datetime_format is required")
	}
	return nil
}
