package rss

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cryptoSignalAgent/internal/ports"
)

// Feed is one headline source and how many titles it contributes.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Take int    `yaml:"take"`
}

// DefaultFeeds are the news sources used when none are configured.
func DefaultFeeds() []Feed {
	return []Feed{
		{Name: "coindesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/", Take: 3},
		{Name: "theblock", URL: "https://www.theblock.co/rss.xml", Take: 2},
		{Name: "ft", URL: "https://www.ft.com/technology/cryptocurrencies?format=rss", Take: 2},
	}
}

// document covers RSS 2.0 (<rss><channel><item>) and Atom (<feed><entry>).
type document struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
		} `xml:"item"`
	} `xml:"channel"`
	Entries []struct {
		Title string `xml:"title"`
	} `xml:"entry"`
}

func (d *document) titles() []string {
	var out []string
	for _, it := range d.Channel.Items {
		if t := strings.TrimSpace(it.Title); t != "" {
			out = append(out, t)
		}
	}
	for _, e := range d.Entries {
		if t := strings.TrimSpace(e.Title); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Reader collects headlines from a fixed list of feeds.
type Reader struct {
	feeds      []Feed
	httpClient *http.Client
	logger     ports.Logger
}

var _ ports.HeadlineProvider = (*Reader)(nil)

// NewReader creates a headline reader. Empty feeds fall back to DefaultFeeds.
func NewReader(feeds []Feed, timeout time.Duration, logger ports.Logger) (*Reader, error) {
	if logger == nil {
		return nil, errors.New("logger is required for rss reader")
	}
	if len(feeds) == 0 {
		feeds = DefaultFeeds()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reader{
		feeds:      feeds,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Headlines returns at most limit titles, taking each feed's share in order.
// A failing feed is logged and skipped; an error is returned only when every
// feed failed.
func (r *Reader) Headlines(ctx context.Context, limit int) ([]string, error) {
	var (
		out      []string
		failures int
		lastErr  error
	)
	for _, f := range r.feeds {
		if limit > 0 && len(out) >= limit {
			break
		}
		titles, err := r.fetch(ctx, f.URL)
		if err != nil {
			failures++
			lastErr = err
			r.logger.Warn(ctx, "Headline feed unavailable", map[string]interface{}{
				"feed": f.Name, "error": err.Error(),
			})
			continue
		}
		if f.Take > 0 && len(titles) > f.Take {
			titles = titles[:f.Take]
		}
		out = append(out, titles...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if failures > 0 && failures == len(r.feeds) {
		return nil, fmt.Errorf("all %d headline feeds failed: %w", failures, lastErr)
	}
	return out, nil
}

func (r *Reader) fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9")
	req.Header.Set("User-Agent", "cryptoSignalAgent/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var doc document
	dec := xml.NewDecoder(io.LimitReader(resp.Body, 4<<20))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed failed: %w", err)
	}
	return doc.titles(), nil
}
