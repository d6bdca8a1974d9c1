package schema

import "fmt"

// Kind classifies a schema violation.
type Kind string

const (
	DuplicateNamespace      Kind = "duplicate_namespace"
	DuplicateTableName      Kind = "duplicate_table_name"
	DuplicateColumnName     Kind = "duplicate_column_name"
	DuplicateConstraintName Kind = "duplicate_constraint_name"

	UnknownNamespace       Kind = "unknown_namespace"
	UnknownTableReference  Kind = "unknown_table_reference"
	UnknownColumnReference Kind = "unknown_column_reference"

	// InvalidDefinition covers structurally malformed input: empty names,
	// constraints without columns, unknown default kinds.
	InvalidDefinition        Kind = "invalid_definition"
	InvalidColumnType        Kind = "invalid_column_type"
	InvalidReferentialAction Kind = "invalid_referential_action"
	InvalidCardinality       Kind = "invalid_cardinality"

	ForeignKeyLengthMismatch       Kind = "foreign_key_length_mismatch"
	ForeignKeyTargetNotUnique      Kind = "foreign_key_target_not_unique"
	ForeignKeySetNullOnNonNullable Kind = "foreign_key_set_null_on_non_nullable"

	UnpairedRelationName              Kind = "unpaired_relation_name"
	AmbiguousRelationship             Kind = "ambiguous_relationship"
	SelfReferenceRequiresRelationName Kind = "self_reference_requires_relation_name"

	ReservedIdentifier Kind = "reserved_identifier"

	// RedundantUniqueConstraint is warning-level: it never blocks
	// finalization.
	RedundantUniqueConstraint Kind = "redundant_unique_constraint"
)

// Error is a single schema violation with its location. Location fields are
// filled as far as they apply; a namespace-level violation carries no table.
type Error struct {
	Kind       Kind   `json:"kind"`
	Namespace  string `json:"namespace,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	loc := e.Namespace
	if e.Table != "" {
		if loc != "" {
			loc += "."
		}
		loc += e.Table
	}
	if e.Column != "" {
		loc += "." + e.Column
	}
	if e.Constraint != "" {
		loc += " (" + e.Constraint + ")"
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, loc, e.Message)
}

// ValidationError aggregates every violation found during finalization.
// Finalization is all-or-nothing: if any error-level violation exists, no
// schema is produced and the full list is reported here.
type ValidationError struct {
	Errors   []*Error `json:"errors"`
	Warnings []*Error `json:"warnings,omitempty"`
}

func (e *ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "schema validation failed"
	case 1:
		return "schema validation failed: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("schema validation failed: %d violations, first: %s", len(e.Errors), e.Errors[0].Error())
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}
