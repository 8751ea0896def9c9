// Package guardrails provides the default collaborator implementations the
// streaming guardrail engine calls out to: an HTTP webhook moderation
// client and a regex/PII anonymizer. Both satisfy streamguard's
// WebhookGuard and RegexGuard interfaces; RegexAnonymizer returns
// streamguard.RegexRejection directly on a REJECT match so runGuards'
// errors.As check recognizes it without any adapter shim.
package guardrails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
)

// webhookRequest is the body sent to a response-direction moderation
// webhook, mirroring construct_response_webhook_request_body's shape.
type webhookRequest struct {
	Contents []string `json:"contents"`
}

// webhookResponse is the expected reply shape; Modified false means the
// webhook left every choice's content unchanged.
type webhookResponse struct {
	Modified bool     `json:"modified"`
	Contents []string `json:"contents,omitempty"`
}

// HTTPWebhookClient calls a moderation webhook over HTTP, rate-limited per
// host and optionally authenticated via OAuth2 client-credentials.
type HTTPWebhookClient struct {
	client   *http.Client
	limiters map[string]*rate.Limiter
	tokens   map[string]oauth2.TokenSource

	// RatePerSecond and Burst configure the per-host token bucket; a
	// limiter is created lazily the first time a host is called.
	RatePerSecond float64
	Burst         int
}

// NewHTTPWebhookClient builds a client with sane defaults: a 5s timeout and
// a 20 req/s, burst-40 per-host rate limit — loose enough not to throttle
// a single busy stream, tight enough to protect a moderation backend from
// a runaway fleet of sidecars.
func NewHTTPWebhookClient() *HTTPWebhookClient {
	return &HTTPWebhookClient{
		client:        &http.Client{Timeout: 5 * time.Second},
		limiters:      make(map[string]*rate.Limiter),
		tokens:        make(map[string]oauth2.TokenSource),
		RatePerSecond: 20,
		Burst:         40,
	}
}

func (c *HTTPWebhookClient) limiterFor(host string) *rate.Limiter {
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(c.RatePerSecond), c.Burst)
	c.limiters[host] = l
	return l
}

// Call implements streamguard.WebhookGuard. Transport failures, non-2xx
// responses, and malformed reply bodies are all returned as errors; the
// caller is expected to treat any error as a no-op rather than a
// rejection — only an explicit regex REJECT terminates a stream.
func (c *HTTPWebhookClient) Call(ctx context.Context, cfg policy.WebhookConfig, headers http.Header, contents []string) (bool, []string, error) {
	limiter := c.limiterFor(cfg.Host)
	if err := limiter.Wait(ctx); err != nil {
		return false, nil, fmt.Errorf("guardrails: rate limiter wait: %w", err)
	}

	body, err := json.Marshal(webhookRequest{Contents: contents})
	if err != nil {
		return false, nil, fmt.Errorf("guardrails: encoding webhook request: %w", err)
	}

	url := fmt.Sprintf("https://%s:%d/guard", cfg.Host, cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, nil, fmt.Errorf("guardrails: building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, h := range cfg.ForwardHeaders {
		if v := headers.Get(h.Name); v != "" {
			req.Header.Set(h.Name, v)
		}
	}
	if tp := headers.Get("traceparent"); tp != "" {
		req.Header.Set("traceparent", tp)
	}
	if ts, ok := c.tokens[cfg.Host]; ok {
		tok, err := ts.Token()
		if err != nil {
			return false, nil, fmt.Errorf("guardrails: fetching moderation OAuth token: %w", err)
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("guardrails: webhook transport failure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil, fmt.Errorf("guardrails: webhook returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, fmt.Errorf("guardrails: reading webhook response: %w", err)
	}
	var out webhookResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, nil, fmt.Errorf("guardrails: decoding webhook response: %w", err)
	}
	if !out.Modified {
		return false, nil, nil
	}
	return true, out.Contents, nil
}

// WithModeration configures OAuth2 client-credentials auth for webhook
// calls to host, using mod.AuthToken as the token URL — grounded on this
// module's own oauth client-credentials usage for provider API auth,
// generalized to authenticate outbound moderation calls instead.
func (c *HTTPWebhookClient) WithModeration(host string, mod *policy.ModerationConfig, clientID, clientSecret string) {
	if mod == nil || mod.AuthToken == "" {
		return
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     mod.AuthToken,
	}
	c.tokens[host] = cfg.TokenSource(context.Background())
}
