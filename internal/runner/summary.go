package runner

import (
	"fmt"
	"time"

	"haru/internal/gateway/notifier"
	"haru/internal/strategy"
)

// SymbolResult records what one run decided for one symbol.
type SymbolResult struct {
	Symbol     string          `json:"symbol"`
	Phase      string          `json:"phase"` // "exit" or "entry"
	Action     strategy.Action `json:"action"`
	Reason     string          `json:"reason,omitempty"`
	Price      float64         `json:"price,omitempty"`
	Quantity   int64           `json:"quantity,omitempty"`
	ProfitRate *float64        `json:"profit_rate,omitempty"`
	OrderID    string          `json:"order_id,omitempty"`
	Err        string          `json:"error,omitempty"`
}

// RunSummary is the outcome of one complete run across all symbols.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Strategies int            `json:"strategies"`
	Version    int64          `json:"strategies_version"`
	Results    []SymbolResult `json:"results"`
	Fatal      string         `json:"fatal,omitempty"`
}

// Orders returns how many results placed an order.
func (s RunSummary) Orders() int {
	n := 0
	for _, r := range s.Results {
		if r.OrderID != "" {
			n++
		}
	}
	return n
}

// notification renders the summary as a push message. Quiet runs (nothing
// traded, nothing failed) produce a compact single-section body.
func (s RunSummary) notification() notifier.StructuredMessage {
	var trades, failures, skips []string
	for _, r := range s.Results {
		line := s.renderLine(r)
		switch {
		case r.Err != "":
			failures = append(failures, line)
		case r.OrderID != "":
			trades = append(trades, line)
		default:
			skips = append(skips, line)
		}
	}

	icon := "📋"
	if len(trades) > 0 {
		icon = "💹"
	}
	if len(failures) > 0 {
		icon = "⚠️"
	}

	sections := make([]notifier.MessageSection, 0, 3)
	if len(trades) > 0 {
		sections = append(sections, notifier.MessageSection{Title: "Orders", Lines: trades})
	}
	if len(failures) > 0 {
		sections = append(sections, notifier.MessageSection{Title: "Failures", Lines: failures})
	}
	if len(trades) == 0 && len(failures) == 0 {
		sections = append(sections, notifier.MessageSection{Title: "No trades", Lines: skips})
	}
	if s.Fatal != "" {
		sections = append(sections, notifier.MessageSection{Title: "Aborted", Lines: []string{s.Fatal}})
	}

	return notifier.StructuredMessage{
		Icon:      icon,
		Title:     fmt.Sprintf("Run %s: %d symbols, %d orders", shortID(s.RunID), s.Strategies, s.Orders()),
		Sections:  sections,
		Footer:    fmt.Sprintf("took %s", s.FinishedAt.Sub(s.StartedAt).Truncate(time.Millisecond)),
		Timestamp: s.FinishedAt,
	}
}

func (s RunSummary) renderLine(r SymbolResult) string {
	switch {
	case r.Err != "":
		return fmt.Sprintf("%s: %s", r.Symbol, r.Err)
	case r.OrderID != "" && r.ProfitRate != nil:
		return fmt.Sprintf("%s %s x%d @ %.2f (%.2f%%) [%s]",
			r.Symbol, r.Action, r.Quantity, r.Price, *r.ProfitRate, r.OrderID)
	case r.OrderID != "":
		return fmt.Sprintf("%s %s x%d @ %.2f [%s]", r.Symbol, r.Action, r.Quantity, r.Price, r.OrderID)
	case r.Reason != "":
		return fmt.Sprintf("%s %s: %s", r.Symbol, r.Action, r.Reason)
	default:
		return fmt.Sprintf("%s %s", r.Symbol, r.Action)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
