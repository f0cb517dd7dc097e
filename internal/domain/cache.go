package domain

import (
	"encoding/json"
	"time"
)

// CacheEntry is a memoized market data payload.
type CacheEntry struct {
	Key      string          `json:"key"`
	StoredAt time.Time       `json:"ts"`
	Payload  json.RawMessage `json:"data"`
}

// Sentiment is a market sentiment index reading.
type Sentiment struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
}
