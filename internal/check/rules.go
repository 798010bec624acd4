package check

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule identifiers, stable across releases so downstream tooling can filter.
const (
	RuleDuplicateComposition = "DUPLICATE_COMPOSITION_CODE"
	RuleEmptyComposition     = "EMPTY_COMPOSITION"
	RuleInvalidLineStructure = "INVALID_LINE_STRUCTURE"
	RuleInvalidItemType      = "INVALID_ITEM_TYPE"
	RuleOrphanItemCode       = "ORPHAN_ITEM_CODE"
	RuleNegativeQuantity     = "NEGATIVE_QUANTITY"
	RuleZeroQuantityLine     = "ZERO_QUANTITY_LINE"
	RuleQuantityOutlier      = "QUANTITY_OUTLIER"
	RuleVariableUnitMissing  = "VARIABLE_UNIT_MISSING"
	RuleUnusedVariableUnits  = "UNUSED_VARIABLE_UNITS"
	RuleDuplicateDescription = "DUPLICATE_DESCRIPTION"
	RuleSimilarDescription   = "SIMILAR_DESCRIPTION"
	RuleAcceptedVariant      = "ACCEPTED_VARIANT"
	RuleSimilarStructure     = "SIMILAR_STRUCTURE"
	RuleMissingCoverage      = "MISSING_COVERAGE"
)

// Ceiling is the per-kind sanity ceiling for line quantities.
type Ceiling struct {
	Base    float64 `yaml:"base"`
	PerUnit float64 `yaml:"per_unit"`
}

// Thresholds are the similarity cutoffs of the duplicate heuristics.
type Thresholds struct {
	Description float64 `yaml:"description"`
	CodeSet     float64 `yaml:"code_set"`
	Structural  float64 `yaml:"structural"`
}

// Staleness is the price-age alerting window in days, consumed by the
// pricing engine.
type Staleness struct {
	AlertDays    int `yaml:"alert_days"`
	CriticalDays int `yaml:"critical_days"`
}

// Rules is the validator's tunable data. The accepted-variant heuristic
// encodes catalog naming conventions, so everything here is configuration
// rather than code: ship the defaults, override via the YAML rules file when
// the catalog's conventions evolve.
type Rules struct {
	Version          string              `yaml:"version"`
	Ceilings         map[string]Ceiling  `yaml:"ceilings"`
	Thresholds       Thresholds          `yaml:"thresholds"`
	Staleness        Staleness           `yaml:"staleness"`
	InstallMarkers   []string            `yaml:"install_markers"`
	DeinstallMarkers []string            `yaml:"deinstall_markers"`
	FamilyAliases    map[string]string   `yaml:"family_aliases"`
	TopologyTokens   []string            `yaml:"topology_tokens"`
	Coverage         map[string][]string `yaml:"coverage"`
}

// Default returns the rule data matching the current catalog conventions.
func Default() Rules {
	return Rules{
		Version: "1.2.0",
		Ceilings: map[string]Ceiling{
			"MAT":   {Base: 500, PerUnit: 50},
			"MO":    {Base: 24, PerUnit: 8},
			"FERR":  {Base: 16, PerUnit: 4},
			"EQUIP": {Base: 10, PerUnit: 2},
		},
		Thresholds: Thresholds{
			Description: 0.95,
			CodeSet:     0.80,
			Structural:  0.90,
		},
		Staleness: Staleness{
			AlertDays:    90,
			CriticalDays: 180,
		},
		InstallMarkers:   []string{"INST"},
		DeinstallMarkers: []string{"DESINST", "RETIRADA"},
		FamilyAliases: map[string]string{
			// Two historical naming families for the same services.
			"COMP_INSTALACAO_": "COMP_INST_",
			"COMP_IMPL_":       "COMP_INST_",
		},
		TopologyTokens: []string{"HI_WALL", "HIWALL", "PISO_TETO", "CASSETE", "DUTADO", "JANELA", "MULTI"},
		Coverage: map[string][]string{
			"eletrica":   {"CABO", "FIO", "DISJ"},
			"dreno":      {"DRENO", "MANGUEIRA"},
			"acabamento": {"FITA", "ACAB", "CANALETA", "ESPUMA"},
		},
	}
}

// LoadRules reads a YAML rules file over the defaults. A missing path keeps
// the defaults untouched.
func LoadRules(path string) (Rules, error) {
	rules := Default()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return rules, fmt.Errorf("read rules file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}

var capacityPattern = regexp.MustCompile(`[_-](\d+)K$`)

// familySignature normalizes a composition code to its capacity-independent
// family: trailing capacity token stripped, topology tokens removed, known
// alias prefixes folded. Returns the signature plus the stripped capacity
// and topology tokens.
func (r Rules) familySignature(code string) (sig, capacity, topology string) {
	sig = strings.ToUpper(strings.TrimSpace(code))

	if m := capacityPattern.FindStringSubmatch(sig); m != nil {
		capacity = m[1]
		sig = sig[:len(sig)-len(m[0])]
	}

	for _, token := range r.TopologyTokens {
		for _, sep := range []string{"_", "-"} {
			marked := sep + token
			if strings.Contains(sig, marked) {
				topology = token
				sig = strings.Replace(sig, marked, "", 1)
			}
		}
	}

	aliases := make([]string, 0, len(r.FamilyAliases))
	for prefix := range r.FamilyAliases {
		aliases = append(aliases, prefix)
	}
	sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	for _, prefix := range aliases {
		if strings.HasPrefix(sig, prefix) {
			sig = r.FamilyAliases[prefix] + sig[len(prefix):]
			break
		}
	}

	return sig, capacity, topology
}

// acceptedVariant reports whether two codes are a recognized legitimate pair:
// same family with different capacities, or same capacity with a recognized
// topology distinction.
func (r Rules) acceptedVariant(codeA, codeB string) bool {
	sigA, capA, topoA := r.familySignature(codeA)
	sigB, capB, topoB := r.familySignature(codeB)
	if sigA != sigB {
		return false
	}
	if capA != capB {
		return true
	}
	return topoA != topoB && (topoA != "" || topoB != "")
}

// installClass reports whether a code names an installation composition,
// excluding the de-installation family.
func (r Rules) installClass(code string) bool {
	upper := strings.ToUpper(code)
	for _, marker := range r.DeinstallMarkers {
		if strings.Contains(upper, marker) {
			return false
		}
	}
	for _, marker := range r.InstallMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// coverageCategories returns the coverage category names in stable order.
func (r Rules) coverageCategories() []string {
	names := make([]string, 0, len(r.Coverage))
	for name := range r.Coverage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
