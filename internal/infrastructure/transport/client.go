package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the vendor SMS gateway settings.
type Config struct {
	BaseURL  string
	APIKey   string
	APIToken string
	Timeout  time.Duration

	// RequestsPerSecond smooths our burst behavior toward the vendor,
	// independent of campaign-level admission control.
	RequestsPerSecond int
}

// Receipt is the vendor's acknowledgment of an accepted message.
type Receipt struct {
	ProviderMessageID string `json:"message_id"`
	Segments          int    `json:"segments,omitempty"`
}

// VendorError is a non-2xx vendor response. Retryable failures (429,
// 5xx) are consumed by the retry loop; everything else surfaces to the
// caller as a permanent per-destination failure.
type VendorError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("vendor returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is the HTTP client for the vendor SMS gateway.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	policy  RetryPolicy
	logger  *zap.Logger
}

// NewClient creates a vendor gateway client.
func NewClient(config Config, policy RetryPolicy, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 25
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.RequestsPerSecond),
		policy:  policy,
		logger:  logger,
	}
}

type sendPayload struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url,omitempty"`
}

// Send submits one message to the vendor gateway. Rate-limit and
// transient server failures are retried per the policy, honoring the
// vendor's Retry-After hint; other failures return immediately.
func (c *Client) Send(ctx context.Context, from, to, body, mediaURL string) (Receipt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Receipt{}, err
	}

	payload, err := json.Marshal(sendPayload{From: from, To: to, Body: body, MediaURL: mediaURL})
	if err != nil {
		return Receipt{}, fmt.Errorf("encoding send payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		receipt, err := c.attempt(ctx, payload)
		if err == nil {
			return receipt, nil
		}
		lastErr = err

		vendorErr, isVendor := err.(*VendorError)
		if isVendor && !c.policy.RetryableStatus(vendorErr.StatusCode) {
			return Receipt{}, err
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		var retryAfter time.Duration
		if isVendor {
			retryAfter = vendorErr.RetryAfter
		}
		delay := c.policy.Delay(attempt, retryAfter)

		c.logger.Warn("vendor send failed, retrying",
			zap.String("to", to),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := sleep(ctx, delay); err != nil {
			return Receipt{}, err
		}
	}

	return Receipt{}, lastErr
}

func (c *Client) attempt(ctx context.Context, payload []byte) (Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.config.APIKey, c.config.APIToken)

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures are transient from our side.
		return Receipt{}, &VendorError{StatusCode: http.StatusServiceUnavailable, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Receipt{}, &VendorError{StatusCode: http.StatusServiceUnavailable, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, &VendorError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return Receipt{}, fmt.Errorf("decoding vendor response: %w", err)
	}
	if receipt.ProviderMessageID == "" {
		return Receipt{}, fmt.Errorf("vendor response missing message id")
	}
	return receipt, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
