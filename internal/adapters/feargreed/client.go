package feargreed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

// DefaultBaseURL is the alternative.me API root.
const DefaultBaseURL = "https://api.alternative.me"

// dataPoint models a single reading from alternative.me
type dataPoint struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
}

// response is the full API payload
type response struct {
	Name     string      `json:"name"`
	Data     []dataPoint `json:"data"`
	Metadata struct {
		Error *string `json:"error,omitempty"`
	} `json:"metadata"`
}

// Client reads the crypto Fear & Greed index.
type Client struct {
	httpClient *http.Client
	apiURL     string
	logger     ports.Logger
}

var _ ports.SentimentProvider = (*Client)(nil)

// NewClient creates a Fear & Greed client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, logger ports.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger is required for fear & greed client")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     strings.TrimRight(baseURL, "/") + "/fng/?limit=1&format=json",
		logger:     logger,
	}, nil
}

// GetSentiment fetches the latest index reading.
func (c *Client) GetSentiment(ctx context.Context) (*domain.Sentiment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("F&G: create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("F&G: request failed: %w: %w", ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("F&G: status %d, body: %s: %w", resp.StatusCode, string(body), ports.ErrExchangeUnavailable)
	}

	var raw response
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("F&G: decoding failed: %w", err)
	}
	if raw.Metadata.Error != nil {
		return nil, fmt.Errorf("F&G API error: %s", *raw.Metadata.Error)
	}
	if len(raw.Data) == 0 {
		return nil, fmt.Errorf("F&G: no data returned: %w", ports.ErrNotFound)
	}

	dp := raw.Data[0]
	value, err := strconv.Atoi(dp.Value)
	if err != nil {
		return nil, fmt.Errorf("F&G: invalid value '%s': %w", dp.Value, err)
	}
	c.logger.Debug(ctx, "Fear & Greed index fetched", map[string]interface{}{
		"value": value, "classification": dp.ValueClassification,
	})
	return &domain.Sentiment{Value: value, Classification: dp.ValueClassification}, nil
}
