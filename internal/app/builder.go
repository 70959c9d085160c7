package app

import (
	"context"
	"fmt"
	"time"

	"haru/internal/config"
	cfgloader "haru/internal/config/loader"
	"haru/internal/gateway/kis"
	"haru/internal/gateway/notifier"
	"haru/internal/ledger"
	"haru/internal/logger"
	"haru/internal/runner"
	"haru/internal/store"
	"haru/internal/store/gormstore"
	adminhttp "haru/internal/transport/http/admin"
)

// AppBuilder assembles the application graph. The *Fn fields exist so tests
// can substitute individual stages.
type AppBuilder struct {
	cfg *config.Config

	storeFn    func(config.StorageConfig) (store.Store, error)
	clientFn   func(config.KISConfig, config.TradingConfig) (*kis.Client, error)
	notifierFn func(config.NotifyConfig) notifier.TextNotifier
	loaderFn   func(string) (*cfgloader.StrategyLoader, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		storeFn:    buildStore,
		clientFn:   kis.NewClient,
		notifierFn: buildNotifier,
		loaderFn:   cfgloader.NewStrategyLoader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithStore replaces the persistence layer (tests use the in-memory store).
func WithStore(s store.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(config.StorageConfig) (store.Store, error) { return s, nil }
	}
}

func buildStore(cfg config.StorageConfig) (store.Store, error) {
	return gormstore.New(cfg.LedgerPath)
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Slack.Enabled {
		return notifier.Noop{}
	}
	return notifier.NewSlack(cfg.Slack.WebhookURL, time.Duration(cfg.Slack.TimeoutSeconds)*time.Second)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	strategies, err := b.loaderFn(cfg.Strategies.Path)
	if err != nil {
		return nil, fmt.Errorf("loading strategies failed: %w", err)
	}
	snap := strategies.Snapshot()
	logger.Infof("loaded %d strategies from %s", len(snap.Strategies), cfg.Strategies.Path)

	st, err := b.storeFn(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening ledger store failed: %w", err)
	}

	client, err := b.clientFn(cfg.KIS, cfg.Trading)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building kis client failed: %w", err)
	}
	if !cfg.Trading.LiveOrders {
		logger.Warnf("live_orders=false: all orders will be simulated")
	}

	notify := b.notifierFn(cfg.Notify)

	run := runner.New(
		client, client, client, strategies,
		ledger.NewTrailingLedger(st),
		ledger.NewCooldownLedger(st),
		ledger.NewTradeLog(st),
		notify,
	)

	router := &adminhttp.Router{
		Runner:     run,
		Strategies: strategies,
		Market:     client,
		Trailing:   ledger.NewTrailingLedger(st),
		Cooldowns:  ledger.NewCooldownLedger(st),
		Trades:     ledger.NewTradeLog(st),
	}
	httpSrv, err := adminhttp.NewServer(cfg.App.HTTPAddr, router)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building http server failed: %w", err)
	}

	return &App{
		cfg:    cfg,
		store:  st,
		runner: run,
		http:   httpSrv,
	}, nil
}
