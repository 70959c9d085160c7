package config

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":8780"
	defaultKISBaseURL      = "https://openapi.koreainvestment.com:9443"
	defaultKISProductCode  = "01"
	defaultKISTimeout      = 10
	defaultKISRateLimit    = 15
	defaultSlackTimeout    = 10
	defaultLedgerPath      = "data/ledger.db"
	defaultScheduleEvery   = "24h"
	defaultStrategiesPath  = "configs/strategies.yaml"
	defaultScheduleOffsetS = 0
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if c.KIS.BaseURL == "" {
		c.KIS.BaseURL = defaultKISBaseURL
	}
	if c.KIS.AccountProductCode == "" {
		c.KIS.AccountProductCode = defaultKISProductCode
	}
	if c.KIS.TimeoutSeconds <= 0 {
		c.KIS.TimeoutSeconds = defaultKISTimeout
	}
	if c.KIS.RateLimitPerSec <= 0 {
		c.KIS.RateLimitPerSec = defaultKISRateLimit
	}
	if c.Notify.Slack.TimeoutSeconds <= 0 {
		c.Notify.Slack.TimeoutSeconds = defaultSlackTimeout
	}
	if c.Storage.LedgerPath == "" {
		c.Storage.LedgerPath = defaultLedgerPath
	}
	if c.Schedule.Interval == "" {
		c.Schedule.Interval = defaultScheduleEvery
	}
	if c.Schedule.OffsetSeconds < 0 {
		c.Schedule.OffsetSeconds = defaultScheduleOffsetS
	}
	if c.Strategies.Path == "" {
		c.Strategies.Path = defaultStrategiesPath
	}
}
