package ops

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yanun0323/errors"

	"simtrade/internal/feed"
	"simtrade/internal/risk"
	"simtrade/pkg/exception"
)

const envPrefix = "SIMTRADE"

// Feed kinds.
const (
	FeedCSV       = "csv"
	FeedSynthetic = "synthetic"
)

// FileConfig mirrors the config file layout.
type FileConfig struct {
	Instruments []string        `mapstructure:"instruments"`
	BarInterval time.Duration   `mapstructure:"bar_interval"`
	RunFor      time.Duration   `mapstructure:"run_for"`
	Risk        risk.Config     `mapstructure:"risk"`
	Feed        FeedConfig      `mapstructure:"feed"`
	Backtest    BacktestConfig  `mapstructure:"backtest"`
	Report      ReportConfig    `mapstructure:"report"`
	Strategy    StrategyConfig  `mapstructure:"strategy"`
	Store       StoreConfig     `mapstructure:"store"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// FeedConfig selects and paces the market data source.
type FeedConfig struct {
	// Kind is csv or synthetic. Empty picks csv when a backtest file is set.
	Kind     string        `mapstructure:"kind"`
	Interval time.Duration `mapstructure:"interval"`
	Rounds   int           `mapstructure:"rounds"`
	Seed     int64         `mapstructure:"seed"`
	// Chaos perturbs the tick stream; zero values leave it untouched.
	Chaos feed.ChaosConfig `mapstructure:"chaos"`
}

// BacktestConfig points at the replay file and the matching parameters.
type BacktestConfig struct {
	File  string        `mapstructure:"file"`
	Speed time.Duration `mapstructure:"speed"`
	Meta  string        `mapstructure:"meta"`
	Rules string        `mapstructure:"rules"`
}

// ReportConfig controls the CSV reports and the final snapshot.
type ReportConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	Snapshot string `mapstructure:"snapshot"`
}

// StrategyConfig holds the dual moving average parameters.
type StrategyConfig struct {
	Fast      int     `mapstructure:"fast"`
	Slow      int     `mapstructure:"slow"`
	Threshold float64 `mapstructure:"threshold"`
}

// StoreConfig enables persistence of order events and PnL snapshots.
type StoreConfig struct {
	// Driver is postgres or sqlite. Empty disables the store.
	Driver    string        `mapstructure:"driver"`
	DSN       string        `mapstructure:"dsn"`
	QueueSize int           `mapstructure:"queue_size"`
	Snapshot  time.Duration `mapstructure:"snapshot_interval"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
	AppName       string `mapstructure:"app_name"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	FileConfig
	// Path is the file the config was read from, empty for defaults only.
	Path string
}

func setDefaults(v *viper.Viper) {
	def := risk.DefaultConfig()
	v.SetDefault("instruments", []string{"IF2411", "rb2410"})
	v.SetDefault("bar_interval", time.Second)
	v.SetDefault("run_for", 20*time.Second)
	v.SetDefault("risk.max_pos_per_instrument", def.MaxPosPerInstrument)
	v.SetDefault("risk.max_orders_per_bar", def.MaxOrdersPerBar)
	v.SetDefault("risk.min_order_interval", def.MinOrderInterval)
	v.SetDefault("feed.kind", "")
	v.SetDefault("feed.interval", 100*time.Millisecond)
	v.SetDefault("feed.rounds", 200)
	v.SetDefault("feed.seed", 1)
	v.SetDefault("feed.chaos.seed", 1)
	v.SetDefault("feed.chaos.drop_rate", 0.0)
	v.SetDefault("feed.chaos.duplicate_rate", 0.0)
	v.SetDefault("feed.chaos.reorder_window", 0)
	v.SetDefault("backtest.file", "")
	v.SetDefault("backtest.speed", 5*time.Millisecond)
	v.SetDefault("backtest.meta", "")
	v.SetDefault("backtest.rules", "")
	v.SetDefault("report.enabled", true)
	v.SetDefault("report.dir", "data")
	v.SetDefault("report.snapshot", "")
	v.SetDefault("strategy.fast", 3)
	v.SetDefault("strategy.slow", 8)
	v.SetDefault("strategy.threshold", 0.5)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.queue_size", 4096)
	v.SetDefault("store.snapshot_interval", 5*time.Second)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.server_address", "http://localhost:4040")
	v.SetDefault("profiling.app_name", "simtrade.backtest")
}

// Load reads a config file (format from its extension) over the defaults.
// SIMTRADE_ prefixed environment variables override file values, e.g.
// SIMTRADE_RISK_MAX_ORDERS_PER_BAR. An empty path loads defaults and env only.
func Load(path string) (Loaded, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, errors.Wrapf(exception.ErrConfigRead, "%s: %v", path, err)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfigDecode, "%s: %v", path, err)
	}
	loaded := Loaded{FileConfig: cfg.withDefaults(), Path: path}
	if err := loaded.Validate(); err != nil {
		return Loaded{}, err
	}
	return loaded, nil
}

func (c FileConfig) withDefaults() FileConfig {
	instruments := make([]string, 0, len(c.Instruments))
	for _, instr := range c.Instruments {
		if instr = strings.TrimSpace(instr); instr != "" {
			instruments = append(instruments, instr)
		}
	}
	c.Instruments = instruments
	if c.Feed.Kind == "" {
		c.Feed.Kind = FeedSynthetic
		if c.Backtest.File != "" {
			c.Feed.Kind = FeedCSV
		}
	}
	if c.Strategy.Fast < 1 {
		c.Strategy.Fast = 1
	}
	if c.Strategy.Slow < c.Strategy.Fast {
		c.Strategy.Slow = c.Strategy.Fast + 1
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "data"
	}
	if c.Store.QueueSize <= 0 {
		c.Store.QueueSize = 1
	}
	return c
}

// Validate checks that the config is usable.
func (c Loaded) Validate() error {
	if len(c.Instruments) == 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "instruments is empty")
	}
	if c.BarInterval <= 0 {
		return errors.Wrapf(exception.ErrConfigInvalid, "bar interval %s", c.BarInterval)
	}
	if c.RunFor < 0 {
		return errors.Wrapf(exception.ErrConfigInvalid, "run for %s", c.RunFor)
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	switch c.Feed.Kind {
	case FeedCSV:
		if c.Backtest.File == "" {
			return errors.Wrap(exception.ErrConfigInvalid, "csv feed without backtest file")
		}
	case FeedSynthetic:
	default:
		return errors.Wrapf(exception.ErrConfigInvalid, "feed kind %q", c.Feed.Kind)
	}
	if err := c.Feed.Chaos.Validate(); err != nil {
		return errors.Wrap(exception.ErrConfigInvalid, err.Error())
	}
	switch c.Store.Driver {
	case "", "postgres", "sqlite":
	default:
		return errors.Wrapf(exception.ErrConfigInvalid, "store driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "" && c.Store.DSN == "" {
		return errors.Wrap(exception.ErrConfigInvalid, "store dsn is empty")
	}
	return nil
}
