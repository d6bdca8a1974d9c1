package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/schemakit/schemakit/schema"
)

// ValidationError is a single finding with its location and severity.
type ValidationError struct {
	Type       string `json:"type"`
	Namespace  string `json:"namespace,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Message    string `json:"message"`
	Severity   string `json:"severity"` // "error", "warning", "info"
}

// ValidationResult contains all validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

// Validate runs a declarative spec through the schema builder, collecting
// every violation instead of stopping at the first, and adds advisory
// findings the model itself does not enforce. No database connection is
// involved.
func Validate(spec schema.Spec) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}

	b := schema.NewBuilder()
	for _, ns := range spec.Namespaces {
		if err := b.DefineNamespace(ns.Name); err != nil {
			result.addError(err)
		}
		for _, t := range ns.Tables {
			if err := b.DefineTable(ns.Name, t); err != nil {
				result.addError(err)
			}
		}
	}
	for _, r := range spec.Relationships {
		if err := b.DefineRelationship(r); err != nil {
			result.addError(err)
		}
	}

	if s, err := b.Finalize(); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			for _, e := range ve.Errors {
				result.addError(e)
			}
			for _, w := range ve.Warnings {
				result.addWarning(w)
			}
		} else {
			result.addError(err)
		}
	} else {
		for _, w := range s.Warnings() {
			result.addWarning(w)
		}
	}

	for _, ns := range spec.Namespaces {
		for _, t := range ns.Tables {
			lintTable(ns.Name, t, result)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (r *ValidationResult) addError(err error) {
	r.Errors = append(r.Errors, convert(err, "error"))
}

func (r *ValidationResult) addWarning(err error) {
	r.Warnings = append(r.Warnings, convert(err, "warning"))
}

func convert(err error, severity string) ValidationError {
	var se *schema.Error
	if errors.As(err, &se) {
		return ValidationError{
			Type:       string(se.Kind),
			Namespace:  se.Namespace,
			Table:      se.Table,
			Column:     se.Column,
			Constraint: se.Constraint,
			Message:    se.Message,
			Severity:   severity,
		}
	}
	return ValidationError{Type: "invalid_definition", Message: err.Error(), Severity: severity}
}

// lintTable adds the advisory findings: discouraged but legal shapes.
func lintTable(namespace string, t schema.Table, result *ValidationResult) {
	if len(t.Columns) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Type:      "no_columns",
			Namespace: namespace,
			Table:     t.Name,
			Message:   fmt.Sprintf("Table '%s' has no columns", t.Name),
			Severity:  "warning",
		})
	}

	if len(t.PrimaryKey) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Type:      "no_primary_key",
			Namespace: namespace,
			Table:     t.Name,
			Message:   fmt.Sprintf("Table '%s' has no primary key defined", t.Name),
			Severity:  "warning",
		})
	}

	lintIdentifier(namespace, t.Name, "", "table name", result)
	for _, c := range t.Columns {
		lintIdentifier(namespace, t.Name, c.Name, "column name", result)
	}

	for _, fk := range t.ForeignKeys {
		if coveredByIndex(t, fk.Columns) {
			continue
		}
		result.Info = append(result.Info, ValidationError{
			Type:       "unindexed_foreign_key",
			Namespace:  namespace,
			Table:      t.Name,
			Constraint: fk.Name,
			Message: fmt.Sprintf("Foreign key columns (%s) have no covering index, lookups from %s will scan",
				strings.Join(fk.Columns, ", "), fk.References.String()),
			Severity: "info",
		})
	}
}

// lintIdentifier checks length and character set. These are advisory at the
// model layer: names are data here and renderers quote them, but most SQL
// targets truncate identifiers beyond 63 bytes.
func lintIdentifier(namespace, table, column, what string, result *ValidationResult) {
	name := table
	if column != "" {
		name = column
	}
	if len(name) > 63 {
		result.Warnings = append(result.Warnings, ValidationError{
			Type:      "identifier_length",
			Namespace: namespace,
			Table:     table,
			Column:    column,
			Message:   fmt.Sprintf("%s '%s' is longer than 63 characters and will be truncated by most targets", what, name),
			Severity:  "warning",
		})
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '_') {
			result.Warnings = append(result.Warnings, ValidationError{
				Type:      "identifier_chars",
				Namespace: namespace,
				Table:     table,
				Column:    column,
				Message:   fmt.Sprintf("%s '%s' contains '%c' and will always require quoting", what, name, char),
				Severity:  "warning",
			})
			break
		}
	}
}

// coveredByIndex reports whether the leading columns of any index, the
// primary key, or a unique scope cover the given column set.
func coveredByIndex(t schema.Table, cols []string) bool {
	want := make(map[string]bool, len(cols))
	for _, c := range cols {
		want[c] = true
	}
	prefixCovers := func(indexCols []string) bool {
		if len(indexCols) < len(want) {
			return false
		}
		head := make(map[string]bool, len(want))
		for _, c := range indexCols[:len(want)] {
			head[c] = true
		}
		for c := range want {
			if !head[c] {
				return false
			}
		}
		return true
	}
	if prefixCovers(t.PrimaryKey) {
		return true
	}
	for _, ix := range t.Indexes {
		if prefixCovers(ix.Columns) {
			return true
		}
	}
	for _, u := range t.Uniques {
		if prefixCovers(u.Columns) {
			return true
		}
	}
	if len(cols) == 1 {
		for _, c := range t.Columns {
			if c.Name == cols[0] && c.Unique {
				return true
			}
		}
	}
	return false
}
