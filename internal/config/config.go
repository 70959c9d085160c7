package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads, decodes and validates the main configuration file.
// Credentials missing from the file are filled from the environment before
// validation so that a .env file (or CI secrets) can carry them.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides pulls secrets from the environment when the file left
// them blank. Environment always loses to an explicit file value.
func (c *Config) applyEnvOverrides() {
	envDefault(&c.KIS.AppKey, "KIS_APP_KEY")
	envDefault(&c.KIS.AppSecret, "KIS_APP_SECRET")
	envDefault(&c.KIS.AccountNumber, "KIS_ACCOUNT_NUMBER")
	envDefault(&c.KIS.AccountProductCode, "KIS_ACCOUNT_PRODUCT_CODE")
	envDefault(&c.Notify.Slack.WebhookURL, "SLACK_WEBHOOK_URL")
}

func envDefault(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}
