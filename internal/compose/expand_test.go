package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friocalc/orcafrio/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	items := []catalog.Item{
		{Kind: catalog.KindMaterial, Code: "TUB-COBRE-14", Description: "Tubo de cobre 1/4", Unit: "m", UnitPrice: 28.5},
		{Kind: catalog.KindMaterial, Code: "CABO-PP-3X25", Description: "Cabo PP 3x2,5mm", Unit: "m", UnitPrice: 9.8},
		{Kind: catalog.KindLabor, Code: "MO-INSTALADOR", Description: "Instalador", Unit: "h", HourlyCost: 65},
	}
	comps := []catalog.Composition{
		{
			Code:        "COMP_LINHA_FRIG",
			Description: "Linha frigorigena",
			Variable: &catalog.VariableSpec{
				Prefix:   "Linha frigorigena com ",
				Suffix:   " de tubulacao",
				Singular: "metro",
				Plural:   "metros",
			},
			Lines: []catalog.Line{
				{Kind: catalog.KindMaterial, KindTag: "MAT", KindValid: true, Code: "TUB-COBRE-14", BaseQty: 0, PerUnitQty: 1.1},
				{Kind: catalog.KindMaterial, KindTag: "MAT", KindValid: true, Code: "CABO-PP-3X25", BaseQty: 0, PerUnitQty: 1},
				{Kind: catalog.KindLabor, KindTag: "MO", KindValid: true, Code: "MO-INSTALADOR", BaseQty: 2, PerUnitQty: 0.25},
			},
		},
		{
			Code:        "COMP_CARGA_GAS",
			Description: "Carga de gas refrigerante",
			Lines: []catalog.Line{
				{Kind: catalog.KindMaterial, KindTag: "MAT", KindValid: true, Code: "GAS-R410A", BaseQty: 1, PerUnitQty: 0},
			},
		},
	}
	return catalog.New(items, comps, nil)
}

func TestExpand_QuantityFormula(t *testing.T) {
	cat := testCatalog()

	exp, err := Expand(cat, "COMP_LINHA_FRIG", 5, 2)
	require.NoError(t, err)
	require.Len(t, exp.Lines, 3)

	// (0 + 1.1*5) * 2
	assert.InDelta(t, 11.0, exp.Lines[0].Quantity, 1e-9)
	// (0 + 1*5) * 2
	assert.InDelta(t, 10.0, exp.Lines[1].Quantity, 1e-9)
	// (2 + 0.25*5) * 2
	assert.InDelta(t, 6.5, exp.Lines[2].Quantity, 1e-9)
}

func TestExpand_DropsNonPositiveLines(t *testing.T) {
	cat := testCatalog()

	exp, err := Expand(cat, "COMP_LINHA_FRIG", 0, 1)
	require.NoError(t, err)

	// The two per-meter material lines collapse to zero and are dropped;
	// only the labor line with base quantity survives.
	require.Len(t, exp.Lines, 1)
	assert.Equal(t, "MO-INSTALADOR", exp.Lines[0].Code)
	assert.InDelta(t, 2.0, exp.Lines[0].Quantity, 1e-9)
}

func TestExpand_UnknownCompositionIsNotFound(t *testing.T) {
	cat := testCatalog()

	_, err := Expand(cat, "COMP_INEXISTENTE", 1, 1)
	require.ErrorIs(t, err, ErrCompositionNotFound)
}

func TestExpand_OrphanReferenceDegradesGracefully(t *testing.T) {
	cat := testCatalog()

	exp, err := Expand(cat, "COMP_CARGA_GAS", 0, 1)
	require.NoError(t, err)
	require.Len(t, exp.Lines, 1)

	line := exp.Lines[0]
	assert.False(t, line.Resolved)
	assert.Equal(t, "[NOT_FOUND] GAS-R410A", line.Description())
	assert.Empty(t, line.Unit())
	require.Len(t, exp.Diagnostics, 1)
	assert.Contains(t, exp.Diagnostics[0], "GAS-R410A")
}

func TestRenderDescription_SingularAndPlural(t *testing.T) {
	comp := &catalog.Composition{
		Description: "ignorada",
		Variable: &catalog.VariableSpec{
			Prefix:   "Linha frigorigena com ",
			Suffix:   " de tubulacao",
			Singular: "metro",
			Plural:   "metros",
		},
	}

	assert.Equal(t, "Linha frigorigena com 1 metro de tubulacao", RenderDescription(comp, 1))
	assert.Equal(t, "Linha frigorigena com 5 metros de tubulacao", RenderDescription(comp, 5))
	// Exact equality test: 0 and fractional values are plural.
	assert.Equal(t, "Linha frigorigena com 0 metros de tubulacao", RenderDescription(comp, 0))
	assert.Equal(t, "Linha frigorigena com 2.5 metros de tubulacao", RenderDescription(comp, 2.5))
}

func TestRenderDescription_StaticWithoutVariable(t *testing.T) {
	comp := &catalog.Composition{Description: "Carga de gas refrigerante"}
	assert.Equal(t, "Carga de gas refrigerante", RenderDescription(comp, 7))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "3", FormatQuantity(3))
	assert.Equal(t, "3.5", FormatQuantity(3.5))
	assert.Equal(t, "0", FormatQuantity(0))
	assert.Equal(t, "1.1", FormatQuantity(1.1))
}
