// Package check is the offline static-analysis pass over the composition
// catalog: reference integrity, quantity sanity, unit consistency, duplicate
// and near-duplicate detection, and minimum-coverage heuristics. It is the
// authoritative catalog gate; the online expander stays deliberately lenient.
package check

import (
	"fmt"
	"time"

	"github.com/friocalc/orcafrio/internal/catalog"
)

// Finding severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Finding is one validation result. Findings are append-only and ordered by
// discovery.
type Finding struct {
	Severity    string `json:"severity"`
	Rule        string `json:"rule"`
	Composition string `json:"composicao,omitempty"`
	Item        string `json:"item,omitempty"`
	Message     string `json:"message"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Validator runs the full rule set against a catalog.
type Validator struct {
	rules Rules
	now   func() time.Time
}

// Option adjusts validator behavior.
type Option func(*Validator)

// WithNow fixes the report timestamp, mainly for tests.
func WithNow(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a validator with the given rule data.
func New(rules Rules, opts ...Option) *Validator {
	v := &Validator{rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run validates the whole catalog and returns the ordered report. The pass
// is deterministic: the same catalog always yields identical findings.
func (v *Validator) Run(cat *catalog.Catalog) *Report {
	r := &Report{
		Meta: Meta{
			GeneratedAt:       v.now().UTC(),
			TotalCompositions: cat.Len(),
			RulesVersion:      v.rules.Version,
		},
		Findings: []Finding{},
	}

	for _, code := range cat.DuplicateCompositionCodes() {
		r.add(Finding{
			Severity:    SeverityError,
			Rule:        RuleDuplicateComposition,
			Composition: code,
			Message:     fmt.Sprintf("codigo de composicao %s aparece mais de uma vez no catalogo", code),
			Suggestion:  "remova ou renomeie a definicao duplicada",
		})
	}

	codes := cat.CompositionCodes()
	for _, code := range codes {
		comp, _ := cat.Composition(code)
		v.checkComposition(cat, comp, r)
	}

	v.checkPairs(cat, codes, r)

	for _, code := range codes {
		comp, _ := cat.Composition(code)
		v.checkCoverage(comp, r)
	}

	return r
}

func (v *Validator) checkComposition(cat *catalog.Catalog, comp *catalog.Composition, r *Report) {
	if len(comp.Lines) == 0 {
		r.add(Finding{
			Severity:    SeverityError,
			Rule:        RuleEmptyComposition,
			Composition: comp.Code,
			Message:     "composicao nao possui linhas",
		})
		return
	}

	hasVariableLine := false
	for i, line := range comp.Lines {
		ref := lineRef(i, line)

		if line.StructErr != "" {
			r.add(Finding{
				Severity:    SeverityError,
				Rule:        RuleInvalidLineStructure,
				Composition: comp.Code,
				Item:        ref,
				Message:     fmt.Sprintf("linha nao forma a tupla (tipo, codigo, qtd_base, qtd_variavel): %s", line.StructErr),
			})
			continue
		}
		if !line.KindValid {
			r.add(Finding{
				Severity:    SeverityError,
				Rule:        RuleInvalidItemType,
				Composition: comp.Code,
				Item:        ref,
				Message:     fmt.Sprintf("tipo de item desconhecido %q", line.KindTag),
				Suggestion:  "use MAT, MO, FERR ou EQUIP",
			})
			continue
		}

		if _, found := cat.Item(line.Kind, line.Code); !found {
			r.add(Finding{
				Severity:    SeverityError,
				Rule:        RuleOrphanItemCode,
				Composition: comp.Code,
				Item:        line.Code,
				Message:     fmt.Sprintf("codigo %s nao existe no catalogo de %s", line.Code, line.Kind),
				Suggestion:  "cadastre o item ou corrija a referencia",
			})
		}

		if line.BaseQty < 0 || line.PerUnitQty < 0 {
			r.add(Finding{
				Severity:    SeverityError,
				Rule:        RuleNegativeQuantity,
				Composition: comp.Code,
				Item:        line.Code,
				Message: fmt.Sprintf("quantidade negativa (base=%v, variavel=%v) em %s",
					line.BaseQty, line.PerUnitQty, line.Code),
			})
		} else if line.BaseQty == 0 && line.PerUnitQty == 0 {
			r.add(Finding{
				Severity:    SeverityWarning,
				Rule:        RuleZeroQuantityLine,
				Composition: comp.Code,
				Item:        line.Code,
				Message:     fmt.Sprintf("linha %s nunca produz quantidade", line.Code),
				Suggestion:  "remova a linha ou defina uma quantidade",
			})
		}

		if ceiling, ok := v.rules.Ceilings[line.Kind.Tag()]; ok {
			if line.BaseQty > ceiling.Base {
				r.add(Finding{
					Severity:    SeverityWarning,
					Rule:        RuleQuantityOutlier,
					Composition: comp.Code,
					Item:        line.Code,
					Message: fmt.Sprintf("quantidade base %v de %s excede o teto %v para %s",
						line.BaseQty, line.Code, ceiling.Base, line.Kind.Tag()),
				})
			}
			if line.PerUnitQty > ceiling.PerUnit {
				r.add(Finding{
					Severity:    SeverityWarning,
					Rule:        RuleQuantityOutlier,
					Composition: comp.Code,
					Item:        line.Code,
					Message: fmt.Sprintf("quantidade variavel %v de %s excede o teto %v para %s",
						line.PerUnitQty, line.Code, ceiling.PerUnit, line.Kind.Tag()),
				})
			}
		}

		if line.PerUnitQty > 0 {
			hasVariableLine = true
		}
	}

	unitsDeclared := comp.Variable != nil && (comp.Variable.Singular != "" || comp.Variable.Plural != "")
	if hasVariableLine && !unitsDeclared {
		r.add(Finding{
			Severity:    SeverityError,
			Rule:        RuleVariableUnitMissing,
			Composition: comp.Code,
			Message:     "composicao usa quantidade variavel mas nao declara unidade singular/plural",
			Suggestion:  "declare singular e plural no descritor de variavel",
		})
	}
	if unitsDeclared && !hasVariableLine {
		r.add(Finding{
			Severity:    SeverityWarning,
			Rule:        RuleUnusedVariableUnits,
			Composition: comp.Code,
			Message:     "unidades de variavel declaradas mas nenhuma linha usa quantidade variavel",
		})
	}
}

func (v *Validator) checkPairs(cat *catalog.Catalog, codes []string, r *Report) {
	descs := make(map[string]string, len(codes))
	sets := make(map[string]map[string]struct{}, len(codes))
	for _, code := range codes {
		comp, _ := cat.Composition(code)
		descs[code] = normalizeDescription(comp.Description)
		sets[code] = codeSet(comp)
	}

	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			a, b := codes[i], codes[j]
			pair := fmt.Sprintf("%s / %s", a, b)

			structural := Jaccard(sets[a], sets[b])

			if descs[a] != "" && descs[a] == descs[b] {
				r.add(Finding{
					Severity:    SeverityWarning,
					Rule:        RuleDuplicateDescription,
					Composition: a,
					Item:        b,
					Message:     fmt.Sprintf("composicoes %s possuem a mesma descricao normalizada", pair),
					Suggestion:  "consolide as composicoes ou diferencie as descricoes",
				})
			} else if SequenceRatio(descs[a], descs[b]) >= v.rules.Thresholds.Description &&
				structural >= v.rules.Thresholds.CodeSet {
				if v.rules.acceptedVariant(a, b) {
					r.add(Finding{
						Severity:    SeverityInfo,
						Rule:        RuleAcceptedVariant,
						Composition: a,
						Item:        b,
						Message:     fmt.Sprintf("composicoes %s sao variantes reconhecidas da mesma familia", pair),
					})
				} else {
					r.add(Finding{
						Severity:    SeverityWarning,
						Rule:        RuleSimilarDescription,
						Composition: a,
						Item:        b,
						Message:     fmt.Sprintf("composicoes %s tem descricao e itens muito semelhantes", pair),
						Suggestion:  "verifique se nao sao duplicatas acidentais",
					})
				}
			}

			if structural >= v.rules.Thresholds.Structural {
				r.add(Finding{
					Severity:    SeverityInfo,
					Rule:        RuleSimilarStructure,
					Composition: a,
					Item:        b,
					Message:     fmt.Sprintf("composicoes %s compartilham %.0f%% dos itens", pair, structural*100),
				})
			}
		}
	}
}

func (v *Validator) checkCoverage(comp *catalog.Composition, r *Report) {
	if !v.rules.installClass(comp.Code) {
		return
	}

	for _, category := range v.rules.coverageCategories() {
		tokens := v.rules.Coverage[category]
		if coversCategory(comp, tokens) {
			continue
		}
		r.add(Finding{
			Severity:    SeverityWarning,
			Rule:        RuleMissingCoverage,
			Composition: comp.Code,
			Item:        category,
			Message:     fmt.Sprintf("composicao de instalacao sem itens de %s", category),
			Suggestion:  fmt.Sprintf("esperado ao menos um item contendo %v no codigo", tokens),
		})
	}
}

func coversCategory(comp *catalog.Composition, tokens []string) bool {
	for _, line := range comp.Lines {
		if !line.Usable() {
			continue
		}
		for _, token := range tokens {
			if containsFold(line.Code, token) {
				return true
			}
		}
	}
	return false
}

func codeSet(comp *catalog.Composition) map[string]struct{} {
	set := make(map[string]struct{}, len(comp.Lines))
	for _, line := range comp.Lines {
		if !line.Usable() {
			continue
		}
		set[line.KindTag+":"+line.Code] = struct{}{}
	}
	return set
}

func lineRef(index int, line catalog.Line) string {
	if line.Code != "" {
		return line.Code
	}
	return fmt.Sprintf("linha %d", index+1)
}
