package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// tokenSource caches the OAuth access token. KIS tokens are valid for 24h
// and the token endpoint is itself rate limited, so one token per process
// is reused until shortly before expiry.
type tokenSource struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

const tokenExpirySlack = 5 * time.Minute

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()
	if c.tokens.token != "" && time.Now().Before(c.tokens.expiresAt.Add(-tokenExpirySlack)) {
		return c.tokens.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	})
	if err != nil {
		return "", &AuthError{Err: err}
	}
	endpoint, err := c.resolveEndpoint("/oauth2/tokenP")
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &AuthError{Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()
	raw, err := readBody(resp)
	if err != nil {
		return "", &AuthError{Err: err}
	}

	token := gjson.GetBytes(raw, "access_token").String()
	if token == "" {
		return "", &AuthError{Err: fmt.Errorf("token missing in response: %s", truncate(raw, 200))}
	}
	expiresIn := gjson.GetBytes(raw, "expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = 86400
	}
	c.tokens.token = token
	c.tokens.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return token, nil
}
