package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Catalog file names inside the catalog directory.
const (
	FileMaterials    = "materiais.json"
	FileLabor        = "mao_de_obra.json"
	FileTools        = "ferramentas.json"
	FileEquipment    = "equipamentos.json"
	FileCompositions = "composicoes.json"
	FileMarkup       = "bdi.json"
)

const dateLayout = "2006-01-02"

type itemRecord struct {
	Description     string  `json:"descricao"`
	Unit            string  `json:"unidade"`
	UnitPrice       float64 `json:"preco_unitario"`
	HourlyCost      float64 `json:"custo_hora"`
	AcquisitionCost float64 `json:"valor_aquisicao"`
	UsefulLifeHours float64 `json:"vida_util_horas"`
	CommercialPrice float64 `json:"preco_comercial"`
	Capacity        string  `json:"capacidade"`
	UpdatedAt       string  `json:"data_atualizacao"`
	ValidityDays    int     `json:"validade_dias"`
}

type compositionRecord struct {
	Code        string            `json:"codigo"`
	Description string            `json:"descricao"`
	Variable    *variableRecord   `json:"variavel"`
	Items       []json.RawMessage `json:"itens"`
}

type variableRecord struct {
	Prefix   string `json:"prefixo"`
	Suffix   string `json:"sufixo"`
	Singular string `json:"singular"`
	Plural   string `json:"plural"`
}

type markupRecord struct {
	Percent float64 `json:"percentual"`
}

// Load reads the five catalogs and the BDI table from dir. Missing files
// degrade to empty maps with a logged warning; only unreadable or malformed
// JSON is a hard error.
func Load(dir string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var items []Item
	kindFiles := []struct {
		kind ItemKind
		name string
	}{
		{KindMaterial, FileMaterials},
		{KindLabor, FileLabor},
		{KindTool, FileTools},
		{KindEquipment, FileEquipment},
	}
	for _, kf := range kindFiles {
		loaded, err := loadItemFile(filepath.Join(dir, kf.name), kf.kind, logger)
		if err != nil {
			return nil, err
		}
		items = append(items, loaded...)
	}

	compositions, err := loadCompositionFile(filepath.Join(dir, FileCompositions), logger)
	if err != nil {
		return nil, err
	}

	markup, err := loadMarkupFile(filepath.Join(dir, FileMarkup), logger)
	if err != nil {
		return nil, err
	}

	logger.Info("catalogs loaded",
		zap.String("dir", dir),
		zap.Int("items", len(items)),
		zap.Int("compositions", len(compositions)))

	return New(items, compositions, markup), nil
}

func readOptional(path string, logger *zap.Logger) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("catalog file missing, using empty catalog", zap.String("path", path))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read catalog file %s: %w", path, err)
	}
	return data, true, nil
}

func loadItemFile(path string, kind ItemKind, logger *zap.Logger) ([]Item, error) {
	data, ok, err := readOptional(path, logger)
	if err != nil || !ok {
		return nil, err
	}

	records := make(map[string]itemRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	codes := make([]string, 0, len(records))
	for code := range records {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	items := make([]Item, 0, len(records))
	for _, code := range codes {
		rec := records[code]
		it := Item{
			Kind:            kind,
			Code:            code,
			Description:     rec.Description,
			Unit:            rec.Unit,
			UnitPrice:       rec.UnitPrice,
			HourlyCost:      rec.HourlyCost,
			AcquisitionCost: rec.AcquisitionCost,
			UsefulLifeHours: rec.UsefulLifeHours,
			CommercialPrice: rec.CommercialPrice,
			Capacity:        rec.Capacity,
			ValidityDays:    rec.ValidityDays,
		}
		if rec.UpdatedAt != "" {
			ts, err := time.Parse(dateLayout, rec.UpdatedAt)
			if err != nil {
				logger.Warn("unparseable catalog date, treating as missing",
					zap.String("code", code), zap.String("data_atualizacao", rec.UpdatedAt))
			} else {
				it.UpdatedAt = &ts
			}
		}
		items = append(items, it)
	}
	return items, nil
}

func loadCompositionFile(path string, logger *zap.Logger) ([]Composition, error) {
	data, ok, err := readOptional(path, logger)
	if err != nil || !ok {
		return nil, err
	}

	var records []compositionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	compositions := make([]Composition, 0, len(records))
	for _, rec := range records {
		comp := Composition{
			Code:        rec.Code,
			Description: rec.Description,
		}
		if rec.Variable != nil {
			comp.Variable = &VariableSpec{
				Prefix:   rec.Variable.Prefix,
				Suffix:   rec.Variable.Suffix,
				Singular: rec.Variable.Singular,
				Plural:   rec.Variable.Plural,
			}
		}
		for _, raw := range rec.Items {
			comp.Lines = append(comp.Lines, parseLine(raw))
		}
		compositions = append(compositions, comp)
	}
	return compositions, nil
}

// parseLine unpacks the (tipo, codigo, qtd_base, qtd_variavel) tuple. Parse
// problems are preserved on the line instead of failing the load so the
// validator can report them.
func parseLine(raw json.RawMessage) Line {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return Line{StructErr: "line is not an array"}
	}
	if len(tuple) != 4 {
		return Line{StructErr: fmt.Sprintf("expected 4 elements, got %d", len(tuple))}
	}

	var line Line
	if err := json.Unmarshal(tuple[0], &line.KindTag); err != nil {
		return Line{StructErr: "item type is not a string"}
	}
	if err := json.Unmarshal(tuple[1], &line.Code); err != nil {
		return Line{KindTag: line.KindTag, StructErr: "item code is not a string"}
	}
	if err := json.Unmarshal(tuple[2], &line.BaseQty); err != nil {
		return Line{KindTag: line.KindTag, Code: line.Code, StructErr: "base quantity is not numeric"}
	}
	if err := json.Unmarshal(tuple[3], &line.PerUnitQty); err != nil {
		return Line{KindTag: line.KindTag, Code: line.Code, StructErr: "variable quantity is not numeric"}
	}

	line.Kind, line.KindValid = ParseKind(line.KindTag)
	return line
}

func loadMarkupFile(path string, logger *zap.Logger) (map[string]float64, error) {
	data, ok, err := readOptional(path, logger)
	if err != nil || !ok {
		return nil, err
	}

	records := make(map[string]markupRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	markup := make(map[string]float64, len(records))
	for tag, rec := range records {
		markup[tag] = rec.Percent
	}
	return markup, nil
}
