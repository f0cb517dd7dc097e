package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"

	"github.com/jpillora/backoff"
)

// Publisher posts events as JSON to a downstream webhook, retrying transient
// failures with exponential backoff. An empty URL disables delivery.
type Publisher struct {
	url        string
	client     *http.Client
	maxRetries int
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     ports.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Config holds configuration for the webhook publisher.
type Config struct {
	URL        string
	MaxRetries int           // retries after the first attempt
	MinBackoff time.Duration // first retry delay, doubled on each attempt
	MaxBackoff time.Duration
	Timeout    time.Duration // per-request timeout
	Logger     ports.Logger
}

// NewPublisher creates a webhook publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for webhook publisher")
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.URL == "" {
		cfg.Logger.Warn(context.Background(), "Webhook URL is empty, events will only be logged")
	}
	return &Publisher{
		url:        cfg.URL,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		minBackoff: cfg.MinBackoff,
		maxBackoff: cfg.MaxBackoff,
		logger:     cfg.Logger,
	}, nil
}

// Publish validates and delivers an event.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := domain.MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	if p.url == "" {
		p.logger.Info(ctx, "Webhook disabled, event not sent", map[string]interface{}{"event": event.Kind()})
		return nil
	}

	b := &backoff.Backoff{Min: p.minBackoff, Max: p.maxBackoff, Factor: 2}
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		retryable, err := p.send(ctx, body)
		if err == nil {
			p.logger.Debug(ctx, "Event delivered", map[string]interface{}{"event": event.Kind(), "attempt": attempt + 1})
			return nil
		}
		lastErr = err
		if !retryable || attempt == p.maxRetries {
			break
		}

		wait := b.Duration()
		p.logger.Warn(ctx, "Webhook delivery failed, retrying", map[string]interface{}{
			"event":   event.Kind(),
			"attempt": attempt + 1,
			"retryIn": wait.String(),
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ports.ErrDeliveryFailed, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%w: %s event: %w", ports.ErrDeliveryFailed, event.Kind(), lastErr)
}

// send performs one POST. It reports whether a failure is worth retrying.
func (p *Publisher) send(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return retryable, fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
}
