// Package catalog holds the typed item catalogs, the composition catalog and
// the BDI table, loaded once per run and immutable afterwards.
package catalog

import (
	"sort"
	"time"
)

// ItemKind identifies which catalog an item belongs to.
type ItemKind int

const (
	KindMaterial ItemKind = iota
	KindLabor
	KindTool
	KindEquipment
)

// Kinds lists every item kind in presentation order.
var Kinds = [4]ItemKind{KindMaterial, KindLabor, KindTool, KindEquipment}

const (
	tagMaterial  = "MAT"
	tagLabor     = "MO"
	tagTool      = "FERR"
	tagEquipment = "EQUIP"
)

// ParseKind maps a catalog tag to its ItemKind.
func ParseKind(tag string) (ItemKind, bool) {
	switch tag {
	case tagMaterial:
		return KindMaterial, true
	case tagLabor:
		return KindLabor, true
	case tagTool:
		return KindTool, true
	case tagEquipment:
		return KindEquipment, true
	default:
		return 0, false
	}
}

// Tag returns the wire tag used by composition lines and the BDI table.
func (k ItemKind) Tag() string {
	switch k {
	case KindMaterial:
		return tagMaterial
	case KindLabor:
		return tagLabor
	case KindTool:
		return tagTool
	case KindEquipment:
		return tagEquipment
	}
	return "?"
}

func (k ItemKind) String() string {
	switch k {
	case KindMaterial:
		return "material"
	case KindLabor:
		return "mao_de_obra"
	case KindTool:
		return "ferramenta"
	case KindEquipment:
		return "equipamento"
	}
	return "desconhecido"
}

// Item is a normalized catalog entry. Kind-specific fields are zero for the
// other kinds; UnitCost selects the right one.
type Item struct {
	Kind        ItemKind
	Code        string
	Description string
	Unit        string

	UnitPrice       float64 // material
	HourlyCost      float64 // labor
	AcquisitionCost float64 // tool
	UsefulLifeHours float64 // tool
	CommercialPrice float64 // equipment
	Capacity        string  // equipment

	UpdatedAt    *time.Time
	ValidityDays int
}

// UnitCost returns the price field used when pricing this item.
func (it Item) UnitCost() float64 {
	switch it.Kind {
	case KindMaterial:
		return it.UnitPrice
	case KindLabor:
		return it.HourlyCost
	case KindTool:
		if it.UsefulLifeHours <= 0 {
			return 0
		}
		return it.AcquisitionCost / it.UsefulLifeHours
	case KindEquipment:
		return it.CommercialPrice
	}
	return 0
}

// VariableSpec renders a quantity-dependent composition description.
type VariableSpec struct {
	Prefix   string
	Suffix   string
	Singular string
	Plural   string
}

// Line is one entry of a composition. Lines that did not unpack into the
// (tipo, codigo, base, variavel) tuple keep the parse problem in StructErr;
// lines with an unknown kind tag keep KindValid false. Both stay in the
// catalog so the validator can report them while the expander skips them.
type Line struct {
	Kind       ItemKind
	KindTag    string
	KindValid  bool
	Code       string
	BaseQty    float64
	PerUnitQty float64
	StructErr  string
}

// Usable reports whether the expander can act on this line.
func (l Line) Usable() bool {
	return l.StructErr == "" && l.KindValid
}

// Composition is a reusable bundle of catalog items representing one unit of
// sellable service.
type Composition struct {
	Code        string
	Description string
	Variable    *VariableSpec
	Lines       []Line
}

// Catalog is the full, immutable data set a pipeline run works against.
type Catalog struct {
	items        map[ItemKind]map[string]Item
	compositions map[string]*Composition
	order        []string
	duplicates   []string
	markup       map[string]float64
}

// New builds an in-memory catalog. Duplicate composition codes keep the first
// definition and are remembered for the validator.
func New(items []Item, compositions []Composition, markup map[string]float64) *Catalog {
	c := &Catalog{
		items:        make(map[ItemKind]map[string]Item),
		compositions: make(map[string]*Composition),
		markup:       make(map[string]float64, len(markup)),
	}
	for _, k := range Kinds {
		c.items[k] = make(map[string]Item)
	}
	for _, it := range items {
		c.items[it.Kind][it.Code] = it
	}
	for i := range compositions {
		comp := compositions[i]
		if _, seen := c.compositions[comp.Code]; seen {
			c.duplicates = append(c.duplicates, comp.Code)
			continue
		}
		c.compositions[comp.Code] = &comp
		c.order = append(c.order, comp.Code)
	}
	for tag, pct := range markup {
		c.markup[tag] = pct
	}
	return c
}

// Item looks up a catalog entry by kind and code.
func (c *Catalog) Item(kind ItemKind, code string) (Item, bool) {
	it, ok := c.items[kind][code]
	return it, ok
}

// Composition looks up a composition by code.
func (c *Catalog) Composition(code string) (*Composition, bool) {
	comp, ok := c.compositions[code]
	return comp, ok
}

// CompositionCodes returns composition codes in catalog order.
func (c *Catalog) CompositionCodes() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// DuplicateCompositionCodes returns codes that appeared more than once, in
// the order the duplicates were found.
func (c *Catalog) DuplicateCompositionCodes() []string {
	out := make([]string, len(c.duplicates))
	copy(out, c.duplicates)
	return out
}

// Markup returns the BDI fraction for a kind, defaulting to 0.
func (c *Catalog) Markup(kind ItemKind) float64 {
	return c.markup[kind.Tag()]
}

// ItemCodes returns the sorted codes of one catalog, mainly for reports.
func (c *Catalog) ItemCodes(kind ItemKind) []string {
	codes := make([]string, 0, len(c.items[kind]))
	for code := range c.items[kind] {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of compositions.
func (c *Catalog) Len() int {
	return len(c.order)
}
