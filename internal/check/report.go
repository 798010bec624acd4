package check

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Meta describes one validator run.
type Meta struct {
	GeneratedAt       time.Time `json:"generated_at"`
	TotalCompositions int       `json:"total_compositions"`
	RulesVersion      string    `json:"rules_version"`
}

// SummaryCount holds per-severity finding counts.
type SummaryCount struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Report is the validator output: ordered findings plus counts.
type Report struct {
	Meta     Meta         `json:"meta"`
	Summary  SummaryCount `json:"summary"`
	Findings []Finding    `json:"findings"`
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case SeverityError:
		r.Summary.Errors++
	case SeverityWarning:
		r.Summary.Warnings++
	case SeverityInfo:
		r.Summary.Infos++
	}
}

// HasErrors reports whether any error-severity finding exists. Callers
// should treat this as build-blocking.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Markdown renders a human-readable report grouped by severity.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Relatorio de validacao do catalogo\n\n")
	fmt.Fprintf(&b, "- Gerado em: %s\n", r.Meta.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Composicoes analisadas: %d\n", r.Meta.TotalCompositions)
	fmt.Fprintf(&b, "- Versao das regras: %s\n", r.Meta.RulesVersion)
	fmt.Fprintf(&b, "- Erros: %d | Avisos: %d | Informativos: %d\n",
		r.Summary.Errors, r.Summary.Warnings, r.Summary.Infos)

	sections := []struct {
		severity string
		title    string
	}{
		{SeverityError, "Erros"},
		{SeverityWarning, "Avisos"},
		{SeverityInfo, "Informativos"},
	}

	for _, section := range sections {
		var lines []string
		for _, f := range r.Findings {
			if f.Severity != section.severity {
				continue
			}
			line := fmt.Sprintf("- **%s** `%s`", f.Rule, f.Composition)
			if f.Item != "" {
				line += fmt.Sprintf(" (%s)", f.Item)
			}
			line += ": " + f.Message
			if f.Suggestion != "" {
				line += " (sugestao: " + f.Suggestion + ")"
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", section.title)
		for _, line := range lines {
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}
