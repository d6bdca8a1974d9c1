package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Spec is the declarative form of a schema: namespaces with their tables,
// plus relationships declared between tables. A Spec is plain data with no
// guarantees; Build turns it into a validated Schema.
type Spec struct {
	Namespaces    []Namespace    `json:"namespaces"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

type Namespace struct {
	Name   string  `json:"name"`
	Tables []Table `json:"tables,omitempty"`
}

type Table struct {
	Name        string             `json:"name"`
	Columns     []Column           `json:"columns,omitempty"`
	PrimaryKey  []string           `json:"primary_key,omitempty"`
	ForeignKeys []ForeignKey       `json:"foreign_keys,omitempty"`
	Uniques     []UniqueConstraint `json:"uniques,omitempty"`
	Checks      []CheckConstraint  `json:"checks,omitempty"`
	Indexes     []Index            `json:"indexes,omitempty"`
	// Reserved marks a deliberately reserved-word table name.
	Reserved bool `json:"reserved,omitempty"`
}

// Column describes a single table column. The zero value of Nullable means
// NOT NULL; columns opt in to nullability.
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable,omitempty"`
	Default  *Default   `json:"default,omitempty"`
	Unique   bool       `json:"unique,omitempty"`
	Reserved bool       `json:"reserved,omitempty"`
}

// DefaultKind distinguishes literal defaults from the two generated forms.
type DefaultKind string

const (
	DefaultLiteral     DefaultKind = "literal"
	DefaultNow         DefaultKind = "now"
	DefaultOnUpdateNow DefaultKind = "on_update_now"
)

type Default struct {
	Kind    DefaultKind
	Literal string
}

// ParseDefault reads the textual default form: "now()" and "on update now()"
// are the generated kinds, anything else is a literal. Empty input means no
// default.
func ParseDefault(s string) *Default {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil
	case "now()":
		return &Default{Kind: DefaultNow}
	case "on update now()":
		return &Default{Kind: DefaultOnUpdateNow}
	}
	return &Default{Kind: DefaultLiteral, Literal: s}
}

func (d *Default) String() string {
	if d == nil {
		return ""
	}
	switch d.Kind {
	case DefaultNow:
		return "now()"
	case DefaultOnUpdateNow:
		return "on update now()"
	}
	return d.Literal
}

func (d Default) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Default) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if parsed := ParseDefault(s); parsed != nil {
		*d = *parsed
	}
	return nil
}

// TableRef names a table by namespace and table name. The textual form is
// "namespace.table".
type TableRef struct {
	Namespace string
	Table     string
}

// ParseTableRef parses the "namespace.table" form.
func ParseTableRef(s string) (TableRef, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TableRef{}, fmt.Errorf("invalid table reference %q: expected namespace.table", s)
	}
	return TableRef{Namespace: parts[0], Table: parts[1]}, nil
}

func (r TableRef) String() string {
	return r.Namespace + "." + r.Table
}

func (r TableRef) IsZero() bool {
	return r.Namespace == "" && r.Table == ""
}

func (r TableRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *TableRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref, err := ParseTableRef(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// ReferentialAction is a foreign-key on-delete or on-update action. The empty
// string is treated as NoAction.
type ReferentialAction string

const (
	NoAction   ReferentialAction = "NO ACTION"
	Restrict   ReferentialAction = "RESTRICT"
	Cascade    ReferentialAction = "CASCADE"
	SetNull    ReferentialAction = "SET NULL"
	SetDefault ReferentialAction = "SET DEFAULT"
)

// ParseReferentialAction accepts the SQL spelling in any case, with spaces,
// hyphens or underscores between words ("set-null", "SET NULL", "set_null").
func ParseReferentialAction(s string) (ReferentialAction, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", " ")
	norm = strings.ReplaceAll(norm, "_", " ")
	switch ReferentialAction(norm) {
	case "":
		return NoAction, nil
	case NoAction, Restrict, Cascade, SetNull, SetDefault:
		return ReferentialAction(norm), nil
	}
	return "", fmt.Errorf("invalid referential action %q, must be one of: CASCADE, RESTRICT, SET NULL, SET DEFAULT, NO ACTION", s)
}

type ForeignKey struct {
	Name       string            `json:"name,omitempty"`
	Columns    []string          `json:"columns"`
	References TableRef          `json:"references"`
	RefColumns []string          `json:"ref_columns"`
	OnDelete   ReferentialAction `json:"on_delete,omitempty"`
	OnUpdate   ReferentialAction `json:"on_update,omitempty"`
}

type UniqueConstraint struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
}

// CheckConstraint holds an opaque boolean predicate. Columns lists the
// columns the expression refers to; only their existence is validated, the
// expression itself is never parsed.
type CheckConstraint struct {
	Name       string   `json:"name,omitempty"`
	Expression string   `json:"expression"`
	Columns    []string `json:"columns,omitempty"`
}

// Index is an ordered secondary index. Predicate, when set, makes it a
// partial index; the predicate text is opaque.
type Index struct {
	Name      string   `json:"name,omitempty"`
	Columns   []string `json:"columns"`
	Unique    bool     `json:"unique,omitempty"`
	Predicate string   `json:"predicate,omitempty"`
}

// Cardinality of one direction of a relationship.
type Cardinality string

const (
	OneToOne  Cardinality = "one-to-one"
	OneToMany Cardinality = "one-to-many"
	ManyToOne Cardinality = "many-to-one"
)

func (c Cardinality) Valid() bool {
	switch c {
	case OneToOne, OneToMany, ManyToOne:
		return true
	}
	return false
}

// Inverse returns the cardinality of the opposite direction.
func (c Cardinality) Inverse() Cardinality {
	switch c {
	case OneToMany:
		return ManyToOne
	case ManyToOne:
		return OneToMany
	}
	return c
}

// Relationship is one direction of an association between two tables. Name is
// the optional relation tag that keeps multiple associations between the same
// pair of tables apart. Derived relationships are synthesized from foreign
// keys during finalization and never round-trip through Spec.
type Relationship struct {
	Name        string      `json:"name,omitempty"`
	From        TableRef    `json:"from"`
	To          TableRef    `json:"to"`
	Cardinality Cardinality `json:"cardinality"`
	Derived     bool        `json:"-"`
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

func (c Column) clone() Column {
	out := c
	if c.Default != nil {
		d := *c.Default
		out.Default = &d
	}
	return out
}

func (f ForeignKey) clone() ForeignKey {
	out := f
	out.Columns = append([]string(nil), f.Columns...)
	out.RefColumns = append([]string(nil), f.RefColumns...)
	return out
}

// clone deep-copies a table. Nil slices stay nil so a cloned table
// marshals identically to its source.
func (t Table) clone() Table {
	out := t
	out.Columns = nil
	for _, c := range t.Columns {
		out.Columns = append(out.Columns, c.clone())
	}
	out.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	out.ForeignKeys = nil
	for _, f := range t.ForeignKeys {
		out.ForeignKeys = append(out.ForeignKeys, f.clone())
	}
	out.Uniques = nil
	for _, u := range t.Uniques {
		u.Columns = append([]string(nil), u.Columns...)
		out.Uniques = append(out.Uniques, u)
	}
	out.Checks = nil
	for _, c := range t.Checks {
		c.Columns = append([]string(nil), c.Columns...)
		out.Checks = append(out.Checks, c)
	}
	out.Indexes = nil
	for _, ix := range t.Indexes {
		ix.Columns = append([]string(nil), ix.Columns...)
		out.Indexes = append(out.Indexes, ix)
	}
	return out
}
