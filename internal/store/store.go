// Package store persists generated budgets so past quotes can be listed and
// re-opened.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/friocalc/orcafrio/internal/quote"
)

// ErrNotFound is returned when a quote id does not exist.
var ErrNotFound = errors.New("quote not found")

// Store reads and writes quotes in SQLite.
type Store struct {
	db *sql.DB
}

// New creates a Store on an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Summary is one row of the quote listing.
type Summary struct {
	ID        string  `json:"id"`
	CreatedAt string  `json:"created_at"`
	Title     string  `json:"title"`
	Total     float64 `json:"total"`
}

// Save persists a scope and its generated budget document, assigning the
// document a fresh id. Title and notes come from the scope's project block
// when present.
func (s *Store) Save(scope quote.Scope, doc *quote.Document) (string, error) {
	id := uuid.New().String()
	doc.ID = id

	scopeJSON, err := json.Marshal(scope)
	if err != nil {
		return "", fmt.Errorf("marshal scope: %w", err)
	}
	budgetJSON, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal budget: %w", err)
	}

	title, notes := projectText(scope)
	_, err = s.db.Exec(`
		INSERT INTO quotes (id, created_at, title, notes, scope_json, budget_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, time.Now().UTC().Format("2006-01-02 15:04:05"), title, notes, string(scopeJSON), string(budgetJSON))
	if err != nil {
		return "", fmt.Errorf("insert quote: %w", err)
	}

	return id, nil
}

// List returns stored quotes newest first, optionally filtered by a search
// term matched against title and notes.
func (s *Store) List(query string) ([]Summary, error) {
	search := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT
			id,
			created_at,
			COALESCE(title, ''),
			budget_json
		FROM quotes
		WHERE (? = '' OR COALESCE(title, '') LIKE ? OR COALESCE(notes, '') LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]Summary, 0)
	for rows.Next() {
		var item Summary
		var budgetJSON string
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.Title, &budgetJSON); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		item.Total = extractTotal(budgetJSON)
		quotes = append(quotes, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}

	return quotes, nil
}

// Get returns the stored budget document for one quote.
func (s *Store) Get(id string) (*quote.Document, error) {
	var budgetJSON string
	err := s.db.QueryRow(`SELECT budget_json FROM quotes WHERE id = ?`, id).Scan(&budgetJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query quote %s: %w", id, err)
	}

	var doc quote.Document
	if err := json.Unmarshal([]byte(budgetJSON), &doc); err != nil {
		return nil, fmt.Errorf("decode stored budget %s: %w", id, err)
	}
	return &doc, nil
}

// extractTotal pulls the final price out of a stored budget document without
// fully decoding it.
func extractTotal(budgetJSON string) float64 {
	var doc struct {
		Summary struct {
			FinalPrice float64 `json:"preco_final"`
		} `json:"resumo"`
	}
	if err := json.Unmarshal([]byte(budgetJSON), &doc); err != nil {
		return 0
	}
	return doc.Summary.FinalPrice
}

func projectText(scope quote.Scope) (title, notes string) {
	if v, ok := scope.Project["cliente"].(string); ok {
		title = v
	}
	if title == "" {
		if v, ok := scope.Project["titulo"].(string); ok {
			title = v
		}
	}
	if v, ok := scope.Project["observacoes"].(string); ok {
		notes = v
	}
	return title, notes
}
