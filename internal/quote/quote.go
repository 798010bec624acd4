// Package quote runs the full scope-to-budget pipeline and builds the
// client-facing budget document.
package quote

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/friocalc/orcafrio/internal/catalog"
	"github.com/friocalc/orcafrio/internal/compose"
	"github.com/friocalc/orcafrio/internal/pricing"
)

// Scope is the pipeline input produced by the intake layer.
type Scope struct {
	Project map[string]any `json:"project,omitempty"`
	Items   []ScopeItem    `json:"itens"`
}

// ScopeItem references one composition with its variable value and
// repetition count.
type ScopeItem struct {
	Composition string  `json:"composicao"`
	Variable    float64 `json:"variavel"`
	Quantity    int     `json:"quantidade"`
	Description string  `json:"descricao,omitempty"`
}

// Document is the priced-budget output. All currency values are rounded to
// two decimals here and nowhere earlier.
type Document struct {
	ID          string          `json:"id,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Project     map[string]any  `json:"project,omitempty"`
	Items       []ItemDocument  `json:"itens"`
	Summary     SummaryDocument `json:"resumo"`
	Alerts      []pricing.Alert `json:"alertas"`
}

// ItemDocument is one priced scope item with its lines split by category.
type ItemDocument struct {
	Composition string         `json:"composicao"`
	Description string         `json:"descricao"`
	Variable    float64        `json:"variavel"`
	Quantity    int            `json:"quantidade"`
	Materials   []LineDocument `json:"materiais"`
	Labor       []LineDocument `json:"mao_de_obra"`
	Tools       []LineDocument `json:"ferramentas"`
	Equipment   []LineDocument `json:"equipamentos"`
	Subtotal    float64        `json:"subtotal"`
}

// LineDocument is one priced line as presented to the client.
type LineDocument struct {
	Code        string  `json:"codigo"`
	Description string  `json:"descricao"`
	Unit        string  `json:"unidade,omitempty"`
	Quantity    float64 `json:"quantidade"`
	UnitPrice   float64 `json:"preco_unitario"`
	Total       float64 `json:"total"`
}

// CategoryDocument is the per-category financial block of the summary.
type CategoryDocument struct {
	DirectCost  float64 `json:"custo_direto"`
	MarkupPct   float64 `json:"percentual_bdi"`
	MarkupValue float64 `json:"valor_bdi"`
	Total       float64 `json:"total"`
}

// SummaryDocument is the budget-level financial summary.
type SummaryDocument struct {
	Categories  map[string]CategoryDocument `json:"categorias"`
	DirectCost  float64                     `json:"custo_direto"`
	MarkupValue float64                     `json:"valor_bdi"`
	FinalPrice  float64                     `json:"preco_final"`
}

// Generate expands, prices and summarizes a scope against a catalog.
// Data-freshness gaps (orphan references, stale prices) never fail the run;
// they surface in the document's alert list. An unknown composition code is
// the only hard error.
func Generate(cat *catalog.Catalog, scope Scope, logger *zap.Logger, opts ...pricing.Option) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := pricing.NewEngine(cat, opts...)

	doc := &Document{
		GeneratedAt: time.Now().UTC(),
		Project:     scope.Project,
		Items:       make([]ItemDocument, 0, len(scope.Items)),
		Alerts:      []pricing.Alert{},
	}

	var allPriced []pricing.PricedLine
	var allAlerts []pricing.Alert

	for _, item := range scope.Items {
		expanded, err := compose.Expand(cat, item.Composition, item.Variable, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("expand scope item %s: %w", item.Composition, err)
		}
		for _, diag := range expanded.Diagnostics {
			logger.Warn("expansion diagnostic", zap.String("composicao", item.Composition), zap.String("detail", diag))
		}

		priced, alerts := engine.PriceLines(compose.Consolidate(expanded.Lines))
		allPriced = append(allPriced, priced...)
		allAlerts = append(allAlerts, alerts...)

		doc.Items = append(doc.Items, buildItemDocument(item, expanded, priced))
	}

	summary := engine.Summarize(allPriced)
	doc.Summary = buildSummaryDocument(summary)
	doc.Alerts = pricing.DedupeAlerts(allAlerts)

	logger.Info("budget generated",
		zap.Int("itens", len(scope.Items)),
		zap.Int("alertas", len(doc.Alerts)),
		zap.Float64("preco_final", doc.Summary.FinalPrice))

	return doc, nil
}

func buildItemDocument(item ScopeItem, expanded compose.Expanded, priced []pricing.PricedLine) ItemDocument {
	description := expanded.Description
	if item.Description != "" {
		description = item.Description
	}

	out := ItemDocument{
		Composition: item.Composition,
		Description: description,
		Variable:    item.Variable,
		Quantity:    item.Quantity,
		Materials:   []LineDocument{},
		Labor:       []LineDocument{},
		Tools:       []LineDocument{},
		Equipment:   []LineDocument{},
	}

	var subtotal float64
	for _, line := range priced {
		lineDoc := LineDocument{
			Code:        line.Code,
			Description: line.Description,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   pricing.Round2(line.UnitPrice),
			Total:       pricing.Round2(line.Total),
		}
		subtotal += line.Total

		switch line.Kind {
		case catalog.KindMaterial:
			out.Materials = append(out.Materials, lineDoc)
		case catalog.KindLabor:
			out.Labor = append(out.Labor, lineDoc)
		case catalog.KindTool:
			out.Tools = append(out.Tools, lineDoc)
		case catalog.KindEquipment:
			out.Equipment = append(out.Equipment, lineDoc)
		}
	}
	out.Subtotal = pricing.Round2(subtotal)
	return out
}

func buildSummaryDocument(s pricing.Summary) SummaryDocument {
	out := SummaryDocument{
		Categories:  make(map[string]CategoryDocument, len(s.Categories)),
		DirectCost:  pricing.Round2(s.DirectCost),
		MarkupValue: pricing.Round2(s.MarkupValue),
		FinalPrice:  pricing.Round2(s.FinalPrice),
	}
	for _, c := range s.Categories {
		out.Categories[c.Kind.Tag()] = CategoryDocument{
			DirectCost:  pricing.Round2(c.DirectCost),
			MarkupPct:   c.MarkupPct,
			MarkupValue: pricing.Round2(c.MarkupValue),
			Total:       pricing.Round2(c.Total),
		}
	}
	return out
}
