package check

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friocalc/orcafrio/internal/catalog"
)

func line(tag, code string, base, perUnit float64) catalog.Line {
	kind, valid := catalog.ParseKind(tag)
	return catalog.Line{Kind: kind, KindTag: tag, KindValid: valid, Code: code, BaseQty: base, PerUnitQty: perUnit}
}

func fixedValidator() *Validator {
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return New(Default(), WithNow(func() time.Time { return fixed }))
}

func findByRule(r *Report, rule string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func TestRun_OrphanItemCode(t *testing.T) {
	cat := catalog.New(
		[]catalog.Item{{Kind: catalog.KindMaterial, Code: "EXISTE"}},
		[]catalog.Composition{{
			Code:        "COMP_TESTE",
			Description: "Teste de referencia",
			Lines: []catalog.Line{
				line("MAT", "EXISTE", 1, 0),
				line("MAT", "NAO-EXISTE", 1, 0),
			},
		}},
		nil,
	)

	report := fixedValidator().Run(cat)

	orphans := findByRule(report, RuleOrphanItemCode)
	require.Len(t, orphans, 1)
	assert.Equal(t, SeverityError, orphans[0].Severity)
	assert.Equal(t, "COMP_TESTE", orphans[0].Composition)
	assert.Equal(t, "NAO-EXISTE", orphans[0].Item)
	assert.Contains(t, orphans[0].Message, "NAO-EXISTE")
}

func TestRun_StructuralRules(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		{Code: "COMP_VAZIA", Description: "Sem linhas"},
		{
			Code:        "COMP_RUIM",
			Description: "Linhas quebradas",
			Lines: []catalog.Line{
				{StructErr: "expected 4 elements, got 2"},
				{KindTag: "XYZ", Code: "QUALQUER", KindValid: false},
				line("MAT", "NEGATIVA", -1, 0),
				line("MAT", "ZERADA", 0, 0),
			},
		},
	}, nil)

	report := fixedValidator().Run(cat)

	require.Len(t, findByRule(report, RuleEmptyComposition), 1)
	require.Len(t, findByRule(report, RuleInvalidLineStructure), 1)
	require.Len(t, findByRule(report, RuleInvalidItemType), 1)
	require.Len(t, findByRule(report, RuleNegativeQuantity), 1)
	require.Len(t, findByRule(report, RuleZeroQuantityLine), 1)
	assert.True(t, report.HasErrors())
}

func TestRun_DuplicateCompositionCode(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		{Code: "COMP_DUP", Description: "a", Lines: []catalog.Line{line("MAT", "X", 1, 0)}},
		{Code: "COMP_DUP", Description: "b", Lines: []catalog.Line{line("MAT", "X", 1, 0)}},
	}, nil)

	report := fixedValidator().Run(cat)

	dups := findByRule(report, RuleDuplicateComposition)
	require.Len(t, dups, 1)
	assert.Equal(t, "COMP_DUP", dups[0].Composition)
}

func TestRun_QuantityOutliers(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{{
		Code:        "COMP_EXAGERO",
		Description: "Quantidades absurdas",
		Variable:    &catalog.VariableSpec{Singular: "metro", Plural: "metros"},
		Lines: []catalog.Line{
			line("MAT", "MUITO-MATERIAL", 501, 0),
			line("MO", "MUITA-HORA", 25, 9),
		},
	}}, nil)

	report := fixedValidator().Run(cat)

	outliers := findByRule(report, RuleQuantityOutlier)
	// Material base over 500, labor base over 24 and labor per-unit over 8.
	require.Len(t, outliers, 3)
}

func TestRun_VariableUnitRules(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		{
			Code:        "COMP_SEM_UNIDADE",
			Description: "Usa variavel sem declarar unidade",
			Lines:       []catalog.Line{line("MAT", "TUBO", 0, 1.1)},
		},
		{
			Code:        "COMP_UNIDADE_PARADA",
			Description: "Declara unidade sem usar variavel",
			Variable:    &catalog.VariableSpec{Singular: "metro", Plural: "metros"},
			Lines:       []catalog.Line{line("MAT", "TUBO", 2, 0)},
		},
	}, nil)

	report := fixedValidator().Run(cat)

	missing := findByRule(report, RuleVariableUnitMissing)
	require.Len(t, missing, 1)
	assert.Equal(t, "COMP_SEM_UNIDADE", missing[0].Composition)
	assert.Equal(t, SeverityError, missing[0].Severity)

	unused := findByRule(report, RuleUnusedVariableUnits)
	require.Len(t, unused, 1)
	assert.Equal(t, "COMP_UNIDADE_PARADA", unused[0].Composition)
	assert.Equal(t, SeverityWarning, unused[0].Severity)
}

func TestRun_DuplicateDescription(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		{Code: "COMP_LIMPEZA_A", Description: "Limpeza  de evaporadora ", Lines: []catalog.Line{line("MAT", "X", 1, 0)}},
		{Code: "COMP_HIGIEN_B", Description: "limpeza de EVAPORADORA", Lines: []catalog.Line{line("MAT", "Y", 1, 0)}},
	}, nil)

	report := fixedValidator().Run(cat)

	dups := findByRule(report, RuleDuplicateDescription)
	require.Len(t, dups, 1)
	assert.Equal(t, "COMP_LIMPEZA_A", dups[0].Composition)
	assert.Equal(t, "COMP_HIGIEN_B", dups[0].Item)
}

func capacityVariant(code, btu string) catalog.Composition {
	return catalog.Composition{
		Code:        code,
		Description: "Instalacao de ar condicionado split hi-wall " + btu + " BTU com linha frigorigena",
		Variable:    &catalog.VariableSpec{Singular: "metro", Plural: "metros"},
		Lines: []catalog.Line{
			line("MAT", "TUB-COBRE-14", 0, 1.1),
			line("MAT", "CABO-PP-3X25", 0, 1),
			line("MAT", "DRENO-CRISTAL", 0, 1),
			line("MAT", "FITA-PVC", 1, 0.5),
			line("MO", "MO-INSTALADOR", 2, 0.25),
		},
	}
}

func TestRun_AcceptedCapacityVariantIsDowngraded(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		capacityVariant("COMP_INST_9K", "9000"),
		capacityVariant("COMP_INST_12K", "12000"),
	}, nil)

	report := fixedValidator().Run(cat)

	assert.Empty(t, findByRule(report, RuleSimilarDescription))
	variants := findByRule(report, RuleAcceptedVariant)
	require.Len(t, variants, 1)
	assert.Equal(t, SeverityInfo, variants[0].Severity)
	assert.Equal(t, "COMP_INST_9K", variants[0].Composition)
	assert.Equal(t, "COMP_INST_12K", variants[0].Item)
}

func TestRun_SimilarDescriptionOutsideFamilyStaysWarning(t *testing.T) {
	a := capacityVariant("COMP_INST_9K", "9000")
	b := capacityVariant("COMP_MANUT_PREV", "9000")
	b.Description = a.Description + "!"

	cat := catalog.New(nil, []catalog.Composition{a, b}, nil)
	report := fixedValidator().Run(cat)

	similar := findByRule(report, RuleSimilarDescription)
	require.Len(t, similar, 1)
	assert.Equal(t, SeverityWarning, similar[0].Severity)
	assert.Empty(t, findByRule(report, RuleAcceptedVariant))
}

func TestRun_StructuralSimilarityInfo(t *testing.T) {
	a := capacityVariant("COMP_INST_9K", "9000")
	b := capacityVariant("COMP_INST_12K", "12000")

	cat := catalog.New(nil, []catalog.Composition{a, b}, nil)
	report := fixedValidator().Run(cat)

	// Identical item sets: Jaccard 1.0.
	require.Len(t, findByRule(report, RuleSimilarStructure), 1)
}

func TestRun_MissingCoverage(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		{
			Code:        "COMP_INST_18K",
			Description: "Instalacao sem dreno nem acabamento",
			Variable:    &catalog.VariableSpec{Singular: "metro", Plural: "metros"},
			Lines: []catalog.Line{
				line("MAT", "CABO-PP-3X25", 0, 1),
				line("MO", "MO-INSTALADOR", 2, 0.25),
			},
		},
		{
			// De-installation compositions are exempt.
			Code:        "COMP_DESINST_18K",
			Description: "Retirada de equipamento",
			Lines:       []catalog.Line{line("MO", "MO-INSTALADOR", 2, 0)},
		},
	}, nil)

	report := fixedValidator().Run(cat)

	missing := findByRule(report, RuleMissingCoverage)
	require.Len(t, missing, 2)
	for _, f := range missing {
		assert.Equal(t, "COMP_INST_18K", f.Composition)
	}
	categories := []string{missing[0].Item, missing[1].Item}
	assert.ElementsMatch(t, []string{"dreno", "acabamento"}, categories)
}

func TestRun_IsIdempotent(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		capacityVariant("COMP_INST_9K", "9000"),
		capacityVariant("COMP_INST_12K", "12000"),
		{Code: "COMP_VAZIA", Description: "Sem linhas"},
	}, nil)

	v := fixedValidator()
	first := v.Run(cat)
	second := v.Run(cat)

	firstJSON, err := first.JSON()
	require.NoError(t, err)
	secondJSON, err := second.JSON()
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestRun_SummaryCounts(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		{Code: "COMP_VAZIA", Description: "Sem linhas"},
		{
			Code:        "COMP_OK",
			Description: "Higienizacao completa",
			Lines:       []catalog.Line{line("MAT", "ORFAO", 0, 0)},
		},
	}, nil)

	report := fixedValidator().Run(cat)

	errors, warnings, infos := 0, 0, 0
	for _, f := range report.Findings {
		switch f.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			infos++
		}
	}
	assert.Equal(t, errors, report.Summary.Errors)
	assert.Equal(t, warnings, report.Summary.Warnings)
	assert.Equal(t, infos, report.Summary.Infos)
	assert.Equal(t, 2, report.Meta.TotalCompositions)
}

func TestReport_Markdown(t *testing.T) {
	cat := catalog.New(nil, []catalog.Composition{
		{Code: "COMP_VAZIA", Description: "Sem linhas"},
	}, nil)

	report := fixedValidator().Run(cat)
	md := report.Markdown()

	assert.Contains(t, md, "# Relatorio de validacao do catalogo")
	assert.Contains(t, md, "## Erros")
	assert.Contains(t, md, RuleEmptyComposition)
}

func TestReport_JSONShape(t *testing.T) {
	report := fixedValidator().Run(catalog.New(nil, nil, nil))

	data, err := report.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "meta")
	require.Contains(t, decoded, "summary")
	require.Contains(t, decoded, "findings")
}
