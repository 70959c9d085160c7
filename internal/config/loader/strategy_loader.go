// Package loader reads the per-symbol strategy file and keeps an immutable
// snapshot that runs copy at their start. The file is watched so edits take
// effect on the next run without a restart; a run in flight never sees the
// change.
package loader

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"haru/internal/logger"
	"haru/internal/strategy"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// fileConfig is the on-disk shape: a map of symbol -> strategy settings.
type fileConfig struct {
	Strategies map[string]strategy.Config `mapstructure:"strategies"`
}

// Snapshot is a read-only view of the configured strategies.
type Snapshot struct {
	Version    int64
	LoadedAt   time.Time
	Strategies map[string]strategy.Config
}

// StrategyLoader loads strategy definitions from YAML and hot-reloads on
// file change.
type StrategyLoader struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStrategyLoader reads the file once (failing hard on any problem) and
// then starts watching it. Reload failures after startup keep the previous
// snapshot.
func NewStrategyLoader(path string) (*StrategyLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy loader requires a path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading strategies file failed: %w", err)
	}
	l := &StrategyLoader{path: path, v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Errorf("strategies reload failed (%s): %v", evt.Name, err)
			return
		}
		snap := l.Snapshot()
		logger.Infof("strategies reloaded: %d symbols (version %d)", len(snap.Strategies), snap.Version)
	})
	v.WatchConfig()
	return l, nil
}

// Snapshot returns the current strategies (deep copy, safe to hold per run).
func (l *StrategyLoader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := Snapshot{
		Version:    l.snapshot.Version,
		LoadedAt:   l.snapshot.LoadedAt,
		Strategies: make(map[string]strategy.Config, len(l.snapshot.Strategies)),
	}
	for sym, cfg := range l.snapshot.Strategies {
		out.Strategies[sym] = cfg
	}
	return out
}

func (l *StrategyLoader) reload() error {
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading strategies file failed: %w", err)
	}
	var fc fileConfig
	if err := l.v.Unmarshal(&fc); err != nil {
		return fmt.Errorf("parsing strategies file failed: %w", err)
	}
	if len(fc.Strategies) == 0 {
		return fmt.Errorf("strategies file defines no symbols")
	}
	normalized := make(map[string]strategy.Config, len(fc.Strategies))
	for rawSym, cfg := range fc.Strategies {
		sym := strings.ToUpper(strings.TrimSpace(rawSym))
		if sym == "" {
			return fmt.Errorf("strategies file contains an empty symbol key")
		}
		cfg.Symbol = sym
		normalizeStrategy(&cfg)
		if err := validateStrategy(cfg); err != nil {
			return fmt.Errorf("strategy %s: %w", sym, err)
		}
		normalized[sym] = cfg
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:    l.snapshot.Version + 1,
		LoadedAt:   time.Now(),
		Strategies: normalized,
	}
	l.mu.Unlock()
	return nil
}

func normalizeStrategy(cfg *strategy.Config) {
	cfg.Exchange = strings.ToUpper(strings.TrimSpace(cfg.Exchange))
	if cfg.Exchange == "" {
		cfg.Exchange = "NYS"
	}
	cfg.Kind = strategy.ParseKind(string(cfg.Kind))
	if cfg.LongTrendWindow <= 0 {
		cfg.LongTrendWindow = 60
	}
	if cfg.ScoutEnabled && cfg.ScoutAllocationFraction <= 0 {
		cfg.ScoutAllocationFraction = 0.3
	}
}

func validateStrategy(cfg strategy.Config) error {
	if cfg.Kind == "" {
		return fmt.Errorf("kind must be pullback or breakout")
	}
	if cfg.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be > 0")
	}
	if cfg.StopLossPct >= 0 {
		return fmt.Errorf("stop_loss_pct must be < 0")
	}
	if cfg.TrailingActivatePct <= 0 || cfg.TrailingDrawdownPct <= 0 {
		return fmt.Errorf("trailing_activate_pct and trailing_drawdown_pct must be > 0")
	}
	if cfg.CooldownHours < 0 {
		return fmt.Errorf("cooldown_hours must be >= 0")
	}
	if cfg.ScoutEnabled {
		if cfg.Kind != strategy.KindBreakout {
			return fmt.Errorf("scout entries only apply to breakout strategies")
		}
		// RSI reads 50 when there is too little history; a floor at or
		// above that would scout-buy on no data.
		if cfg.ScoutRSIFloor <= 0 || cfg.ScoutRSIFloor >= 50 {
			return fmt.Errorf("scout_rsi_floor must be in (0,50)")
		}
		if cfg.ScoutAllocationFraction <= 0 || cfg.ScoutAllocationFraction > 1 {
			return fmt.Errorf("scout_allocation_fraction must be in (0,1]")
		}
	}
	return nil
}
