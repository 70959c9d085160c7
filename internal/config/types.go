package config

// Config is the main configuration carrier for haru.
type Config struct {
	App        AppConfig        `toml:"app"`
	KIS        KISConfig        `toml:"kis"`
	Trading    TradingConfig    `toml:"trading"`
	Notify     NotifyConfig     `toml:"notify"`
	Storage    StorageConfig    `toml:"storage"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Strategies StrategiesConfig `toml:"strategies"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// KISConfig describes access to the KIS Open API. Credentials are normally
// left out of the YAML file and supplied through the environment
// (KIS_APP_KEY, KIS_APP_SECRET, KIS_ACCOUNT_NUMBER, KIS_ACCOUNT_PRODUCT_CODE).
type KISConfig struct {
	BaseURL            string `toml:"base_url"`
	AppKey             string `toml:"app_key"`
	AppSecret          string `toml:"app_secret"`
	AccountNumber      string `toml:"account_number"`
	AccountProductCode string `toml:"account_product_code"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	// RateLimitPerSec caps outgoing requests; KIS rejects bursts above
	// roughly 20/s per app key.
	RateLimitPerSec int `toml:"rate_limit_per_sec"`
}

// TradingConfig controls whether orders actually reach the venue.
type TradingConfig struct {
	// LiveOrders false keeps every order simulated (logged, trade-logged,
	// never submitted), mirroring a paper-trading switch.
	LiveOrders bool `toml:"live_orders"`
}

type NotifyConfig struct {
	Slack SlackConfig `toml:"slack"`
}

// SlackConfig points at an incoming-webhook URL. The URL may also come from
// the SLACK_WEBHOOK_URL environment variable.
type SlackConfig struct {
	Enabled        bool   `toml:"enabled"`
	WebhookURL     string `toml:"webhook_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StorageConfig struct {
	// LedgerPath is the SQLite file holding trailing/cooldown state and the
	// trade log.
	LedgerPath string `toml:"ledger_path"`
}

// ScheduleConfig selects between a single externally-triggered run and a
// long-lived interval loop.
type ScheduleConfig struct {
	RunOnce        bool   `toml:"run_once"`
	Interval       string `toml:"interval"`
	OffsetSeconds  int    `toml:"offset_seconds"`
	RunImmediately bool   `toml:"run_immediately"`
}

type StrategiesConfig struct {
	// Path to the per-symbol strategy YAML, watched for changes between runs.
	Path string `toml:"path"`
}
