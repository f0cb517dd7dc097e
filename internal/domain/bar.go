package domain

import "time"

// Bar represents a single OHLCV sample for a symbol.
type Bar struct {
	Time   time.Time `json:"t"` // Open time of the interval
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// Ticker24h is a rolling 24h snapshot for a symbol.
type Ticker24h struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"lastPrice"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	ChangePct float64 `json:"changePct"`
}

// Closes extracts the close prices of bars, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volumes of bars, oldest first.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
