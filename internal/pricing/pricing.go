// Package pricing resolves unit prices for expanded composition lines,
// applies the BDI markup per category and aggregates the financial summary.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/friocalc/orcafrio/internal/catalog"
	"github.com/friocalc/orcafrio/internal/compose"
)

// Price staleness thresholds in days.
const (
	DefaultAlertDays    = 90
	DefaultCriticalDays = 180
)

// Alert severities.
const (
	SeverityAlert    = "alert"
	SeverityCritical = "critical"
)

// Alert flags a non-fatal pricing problem: a stale price or an unresolved
// catalog reference. Alerts never block pricing.
type Alert struct {
	Severity string `json:"severidade"`
	Code     string `json:"codigo"`
	Message  string `json:"mensagem"`
}

// PricedLine is an expanded line with its resolved unit price and extended
// cost. Unresolved lines price at zero.
type PricedLine struct {
	Kind        catalog.ItemKind
	Code        string
	Description string
	Unit        string
	Quantity    float64
	UnitPrice   float64
	Total       float64
	Resolved    bool
}

// CategorySummary aggregates one item kind across the whole budget.
type CategorySummary struct {
	Kind        catalog.ItemKind
	DirectCost  float64
	MarkupPct   float64
	MarkupValue float64
	Total       float64
}

// Summary is the budget-level financial roll-up. All values are unrounded;
// rounding happens once, at document presentation.
type Summary struct {
	Categories  [4]CategorySummary
	DirectCost  float64
	MarkupValue float64
	FinalPrice  float64
}

// Engine prices expanded lines against a catalog.
type Engine struct {
	cat          *catalog.Catalog
	now          time.Time
	alertDays    int
	criticalDays int
}

// Option adjusts engine behavior.
type Option func(*Engine)

// WithNow fixes the reference time used for staleness checks.
func WithNow(now time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStaleThresholds overrides the staleness thresholds in days.
func WithStaleThresholds(alertDays, criticalDays int) Option {
	return func(e *Engine) {
		e.alertDays = alertDays
		e.criticalDays = criticalDays
	}
}

// NewEngine creates a pricing engine for one catalog.
func NewEngine(cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		cat:          cat,
		now:          time.Now(),
		alertDays:    DefaultAlertDays,
		criticalDays: DefaultCriticalDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PriceLines resolves unit prices for each line and collects staleness
// alerts. Unresolved lines get zero-filled cost fields and a critical alert.
func (e *Engine) PriceLines(lines []compose.LineResult) ([]PricedLine, []Alert) {
	priced := make([]PricedLine, 0, len(lines))
	var alerts []Alert

	for _, line := range lines {
		p := PricedLine{
			Kind:        line.Kind,
			Code:        line.Code,
			Description: line.Description(),
			Unit:        line.Unit(),
			Quantity:    line.Quantity,
			Resolved:    line.Resolved,
		}
		if line.Resolved {
			p.UnitPrice = line.Item.UnitCost()
			p.Total = p.UnitPrice * p.Quantity
			if severity := e.staleness(line.Item.UpdatedAt); severity != "" {
				alerts = append(alerts, Alert{
					Severity: severity,
					Code:     line.Code,
					Message:  staleMessage(line.Item, severity, e.now),
				})
			}
		} else {
			alerts = append(alerts, Alert{
				Severity: SeverityCritical,
				Code:     line.Code,
				Message:  fmt.Sprintf("%s %s nao encontrado no catalogo, precificado em zero", line.Kind, line.Code),
			})
		}
		priced = append(priced, p)
	}

	return priced, alerts
}

// staleness classifies a price by the age of its last update. A missing date
// is always critical.
func (e *Engine) staleness(updatedAt *time.Time) string {
	if updatedAt == nil {
		return SeverityCritical
	}
	age := int(e.now.Sub(*updatedAt).Hours() / 24)
	switch {
	case age > e.criticalDays:
		return SeverityCritical
	case age > e.alertDays:
		return SeverityAlert
	default:
		return ""
	}
}

func staleMessage(item catalog.Item, severity string, now time.Time) string {
	if item.UpdatedAt == nil {
		return fmt.Sprintf("%s %s sem data de atualizacao", item.Kind, item.Code)
	}
	age := int(now.Sub(*item.UpdatedAt).Hours() / 24)
	return fmt.Sprintf("preco de %s %s desatualizado ha %d dias (%s)", item.Kind, item.Code, age, severity)
}

// Summarize rolls priced lines up into per-category direct costs, applies
// the catalog's BDI percentage per category and computes the final price.
// Accumulation stays unrounded to avoid compounding rounding error.
func (e *Engine) Summarize(lines []PricedLine) Summary {
	var s Summary
	for i, kind := range catalog.Kinds {
		s.Categories[i].Kind = kind
		s.Categories[i].MarkupPct = e.cat.Markup(kind)
	}

	for _, line := range lines {
		s.Categories[int(line.Kind)].DirectCost += line.Total
	}

	for i := range s.Categories {
		c := &s.Categories[i]
		c.MarkupValue = c.DirectCost * c.MarkupPct
		c.Total = c.DirectCost + c.MarkupValue
		s.DirectCost += c.DirectCost
		s.MarkupValue += c.MarkupValue
	}
	s.FinalPrice = s.DirectCost + s.MarkupValue
	return s
}

// DedupeAlerts drops repeated alerts while preserving first-seen order.
func DedupeAlerts(alerts []Alert) []Alert {
	seen := make(map[Alert]struct{}, len(alerts))
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Round2 rounds a currency value to two decimal places. Used only when
// building presentation documents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
