package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventKind discriminates outbound event payloads.
type EventKind string

const (
	EventNewSignal EventKind = "new_signal"
	EventClose     EventKind = "close"
	EventReport    EventKind = "report"
)

// Event is an outbound notification payload.
type Event interface {
	Kind() EventKind
	Validate() error
}

// EntryEvent announces a newly opened trade.
type EntryEvent struct {
	Event      EventKind `json:"event"`
	Direction  string    `json:"direction"`
	Symbol     string    `json:"symbol"`
	Pair       string    `json:"pair"`
	EntryPrice float64   `json:"entryPrice"`
	StopLoss   float64   `json:"stopLoss"`
	TakeProfit float64   `json:"takeProfit"`
	RiskPct    float64   `json:"riskPct"`
	Timeframe  string    `json:"timeframe"`
	Timestamp  time.Time `json:"timestamp"`
	Note       string    `json:"note"`
}

// NewEntryEvent builds the entry notification for a trade.
func NewEntryEvent(t *Trade, timeframe, note string) *EntryEvent {
	return &EntryEvent{
		Event:      EventNewSignal,
		Direction:  t.Direction.Label(),
		Symbol:     t.Symbol,
		Pair:       SymbolToPair(t.Symbol),
		EntryPrice: t.EntryPrice,
		StopLoss:   t.StopLoss,
		TakeProfit: t.TakeProfit,
		RiskPct:    t.RiskPct,
		Timeframe:  timeframe,
		Timestamp:  t.OpenedAt,
		Note:       note,
	}
}

func (e *EntryEvent) Kind() EventKind { return EventNewSignal }

func (e *EntryEvent) Validate() error {
	if e.Event != EventNewSignal {
		return fmt.Errorf("entry event has kind %q", e.Event)
	}
	if e.Symbol == "" {
		return errors.New("entry event without symbol")
	}
	if e.Direction != Long.Label() && e.Direction != Short.Label() {
		return fmt.Errorf("entry event has unknown direction %q", e.Direction)
	}
	if e.EntryPrice <= 0 || e.StopLoss <= 0 || e.TakeProfit <= 0 {
		return errors.New("entry event prices must be positive")
	}
	if e.Timestamp.IsZero() {
		return errors.New("entry event without timestamp")
	}
	return nil
}

// CloseEvent announces that a trade hit its stop or its target.
type CloseEvent struct {
	Event      EventKind   `json:"event"`
	Symbol     string      `json:"symbol"`
	Pair       string      `json:"pair"`
	Direction  string      `json:"direction"`
	Result     CloseResult `json:"result"`
	ClosePrice float64     `json:"closePrice"`
	EntryPrice float64     `json:"entryPrice"`
	StopLoss   float64     `json:"stopLoss"`
	TakeProfit float64     `json:"takeProfit"`
	Timestamp  time.Time   `json:"timestamp"`
	Note       string      `json:"note"`
}

// NewCloseEvent builds the close notification for a closed trade.
func NewCloseEvent(t *Trade) *CloseEvent {
	rec := RecordFor(t)
	note := "Take profit reached."
	if rec.Result == ResultStopLoss {
		note = "Stop loss reached."
	}
	return &CloseEvent{
		Event:      EventClose,
		Symbol:     t.Symbol,
		Pair:       SymbolToPair(t.Symbol),
		Direction:  t.Direction.Label(),
		Result:     rec.Result,
		ClosePrice: t.ClosePrice,
		EntryPrice: t.EntryPrice,
		StopLoss:   t.StopLoss,
		TakeProfit: t.TakeProfit,
		Timestamp:  t.ClosedAt,
		Note:       note,
	}
}

func (e *CloseEvent) Kind() EventKind { return EventClose }

func (e *CloseEvent) Validate() error {
	if e.Event != EventClose {
		return fmt.Errorf("close event has kind %q", e.Event)
	}
	if e.Symbol == "" {
		return errors.New("close event without symbol")
	}
	if e.Result != ResultTakeProfit && e.Result != ResultStopLoss {
		return fmt.Errorf("close event has unknown result %q", e.Result)
	}
	if e.ClosePrice <= 0 {
		return errors.New("close event price must be positive")
	}
	if e.Timestamp.IsZero() {
		return errors.New("close event without timestamp")
	}
	return nil
}

// ReportEvent is the periodic market summary.
type ReportEvent struct {
	Event      EventKind `json:"event"`
	ReportKind string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Prices     []string  `json:"prices"`
	Sentiment  string    `json:"sentiment"`
	Headlines  []string  `json:"headlines"`
	WinRate    *float64  `json:"winRate,omitempty"` // nil until enough history exists
	OpenTrades int       `json:"openTrades"`
	Note       string    `json:"note"`
}

func (e *ReportEvent) Kind() EventKind { return EventReport }

func (e *ReportEvent) Validate() error {
	if e.Event != EventReport {
		return fmt.Errorf("report event has kind %q", e.Event)
	}
	if e.Timestamp.IsZero() {
		return errors.New("report event without timestamp")
	}
	return nil
}

// MarshalEvent validates an event and encodes it as JSON.
func MarshalEvent(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.New("nil event")
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s event: %w", e.Kind(), err)
	}
	return json.Marshal(e)
}
