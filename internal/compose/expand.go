// Package compose expands sparse scope descriptions into concrete quantities
// of materials, labor, tools and equipment.
package compose

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/friocalc/orcafrio/internal/catalog"
)

// ErrCompositionNotFound is returned when the scope references a composition
// code absent from the catalog.
var ErrCompositionNotFound = errors.New("composition not found")

// LineResult is one expanded composition line. Unresolved lines reference a
// code missing from its catalog; they carry zero cost and survive so a quote
// can still be produced.
type LineResult struct {
	Kind     catalog.ItemKind
	Code     string
	Quantity float64
	Resolved bool
	Item     catalog.Item
}

// Description returns the catalog description, or the not-found placeholder
// used in rendered documents.
func (r LineResult) Description() string {
	if !r.Resolved {
		return "[NOT_FOUND] " + r.Code
	}
	return r.Item.Description
}

// Unit returns the unit of measure, empty for unresolved lines.
func (r LineResult) Unit() string {
	if !r.Resolved {
		return ""
	}
	return r.Item.Unit
}

// Expanded is the result of expanding one scope item.
type Expanded struct {
	Code        string
	Description string
	Variable    float64
	Repetitions int
	Lines       []LineResult
	Diagnostics []string
}

// Expand resolves a composition into concrete line quantities. Per line the
// quantity is (base + perUnit*variable) * repetitions; lines that come out
// non-positive are dropped. References to codes missing from their catalog
// degrade to unresolved lines plus a diagnostic instead of failing the run.
func Expand(cat *catalog.Catalog, code string, variable float64, repetitions int) (Expanded, error) {
	comp, ok := cat.Composition(code)
	if !ok {
		return Expanded{}, fmt.Errorf("%w: %s", ErrCompositionNotFound, code)
	}

	exp := Expanded{
		Code:        code,
		Description: RenderDescription(comp, variable),
		Variable:    variable,
		Repetitions: repetitions,
	}

	for _, line := range comp.Lines {
		if !line.Usable() {
			continue
		}
		total := (line.BaseQty + line.PerUnitQty*variable) * float64(repetitions)
		if total <= 0 {
			continue
		}

		result := LineResult{Kind: line.Kind, Code: line.Code, Quantity: total}
		if item, found := cat.Item(line.Kind, line.Code); found {
			result.Resolved = true
			result.Item = item
		} else {
			exp.Diagnostics = append(exp.Diagnostics, fmt.Sprintf(
				"composicao %s referencia %s %s inexistente no catalogo", code, line.Kind, line.Code))
		}
		exp.Lines = append(exp.Lines, result)
	}

	return exp, nil
}

// RenderDescription builds the human-readable description for a composition
// at a given variable value. Without a variable descriptor the static
// description is used verbatim.
func RenderDescription(comp *catalog.Composition, variable float64) string {
	v := comp.Variable
	if v == nil {
		return comp.Description
	}

	unit := v.Plural
	if variable == 1 {
		unit = v.Singular
	}
	return v.Prefix + FormatQuantity(variable) + " " + unit + v.Suffix
}

// FormatQuantity renders a quantity as an integer when it has no fractional
// part and with one decimal place otherwise.
func FormatQuantity(value float64) string {
	if value == math.Trunc(value) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', 1, 64)
}
