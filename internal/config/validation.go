package config

import (
	"fmt"
	"strings"
	"time"
)

// ConfigurationError is fatal: the run must abort before any order is
// placed. It satisfies errors.As so callers can tell it apart from
// transient gateway failures.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrf(format string, v ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, v...)}
}

func validate(c *Config) error {
	if err := c.KIS.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (k *KISConfig) validate() error {
	var missing []string
	if strings.TrimSpace(k.AppKey) == "" {
		missing = append(missing, "KIS_APP_KEY")
	}
	if strings.TrimSpace(k.AppSecret) == "" {
		missing = append(missing, "KIS_APP_SECRET")
	}
	if strings.TrimSpace(k.AccountNumber) == "" {
		missing = append(missing, "KIS_ACCOUNT_NUMBER")
	}
	if len(missing) > 0 {
		return configErrf("missing KIS credentials: %s", strings.Join(missing, ", "))
	}
	if strings.TrimSpace(k.BaseURL) == "" {
		return configErrf("kis.base_url cannot be empty")
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if s.RunOnce {
		return nil
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return configErrf("schedule.interval %q is not a duration: %v", s.Interval, err)
	}
	if d < time.Minute {
		return configErrf("schedule.interval %s below 1m", s.Interval)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Slack.Enabled && strings.TrimSpace(n.Slack.WebhookURL) == "" {
		return configErrf("notify.slack enabled but webhook_url (or SLACK_WEBHOOK_URL) is empty")
	}
	return nil
}
