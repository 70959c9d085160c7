// Package notifier pushes run summaries and trade alerts to Slack.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TextNotifier is what the runner depends on; the Slack webhook is the
// production implementation and tests substitute their own.
type TextNotifier interface {
	SendText(text string) error
	SendStructured(msg StructuredMessage) error
}

// Slack posts messages to an incoming-webhook URL.
type Slack struct {
	WebhookURL string
	Client     *http.Client
}

func NewSlack(webhookURL string, timeout time.Duration) *Slack {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Slack{WebhookURL: webhookURL, Client: &http.Client{Timeout: timeout}}
}

// SendText posts a text message, retrying up to 3 times.
func (s *Slack) SendText(text string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook url not configured")
	}
	payload := map[string]any{"text": text}
	body, _ := json.Marshal(payload)

	var lastErr error
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("POST", s.WebhookURL, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.Client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("slack status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}

// SendStructured renders a structured message and sends it as text.
func (s *Slack) SendStructured(msg StructuredMessage) error {
	return s.SendText(msg.RenderText())
}

// Noop discards every message. Used when notifications are disabled.
type Noop struct{}

func (Noop) SendText(string) error                  { return nil }
func (Noop) SendStructured(StructuredMessage) error { return nil }
