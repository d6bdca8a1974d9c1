package schema

import "fmt"

// Builder accumulates schema definitions and resolves them into an immutable
// Schema. Definitions may arrive in any order: foreign keys and relationships
// can point at tables that are defined later, and those cross-definition
// references are checked when Finalize runs. Errors inside a single
// definition fail fast at the call that introduces them.
type Builder struct {
	nsOrder    []string
	nsSet      map[string]bool
	tables     map[TableRef]*Table
	tablesByNS map[string][]*Table
	relations  []Relationship
}

func NewBuilder() *Builder {
	return &Builder{
		nsSet:      make(map[string]bool),
		tables:     make(map[TableRef]*Table),
		tablesByNS: make(map[string][]*Table),
	}
}

// Build runs a whole Spec through a fresh builder and finalizes it. The first
// definition error aborts; graph-level violations come back aggregated in a
// *ValidationError.
func Build(spec Spec) (*Schema, error) {
	b := NewBuilder()
	for _, ns := range spec.Namespaces {
		if err := b.DefineNamespace(ns.Name); err != nil {
			return nil, err
		}
		for _, t := range ns.Tables {
			if err := b.DefineTable(ns.Name, t); err != nil {
				return nil, err
			}
		}
	}
	for _, r := range spec.Relationships {
		if err := b.DefineRelationship(r); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

// DefineNamespace registers a namespace. Table names only need to be unique
// within one namespace.
func (b *Builder) DefineNamespace(name string) error {
	if name == "" {
		return &Error{Kind: InvalidDefinition, Message: "namespace name cannot be empty"}
	}
	if b.nsSet[name] {
		return &Error{
			Kind:      DuplicateNamespace,
			Namespace: name,
			Message:   fmt.Sprintf("namespace %q is already defined", name),
		}
	}
	b.nsSet[name] = true
	b.nsOrder = append(b.nsOrder, name)
	return nil
}

// DefineTable registers a table under an existing namespace. The table is
// validated as a unit and either registered whole or rejected with the first
// violation found.
func (b *Builder) DefineTable(namespace string, t Table) error {
	if !b.nsSet[namespace] {
		return &Error{
			Kind:      UnknownNamespace,
			Namespace: namespace,
			Message:   fmt.Sprintf("namespace %q is not defined", namespace),
		}
	}
	if t.Name == "" {
		return &Error{Kind: InvalidDefinition, Namespace: namespace, Message: "table name cannot be empty"}
	}
	ref := TableRef{Namespace: namespace, Table: t.Name}
	if _, ok := b.tables[ref]; ok {
		return &Error{
			Kind:      DuplicateTableName,
			Namespace: namespace,
			Table:     t.Name,
			Message:   fmt.Sprintf("table %q is already defined in namespace %q", t.Name, namespace),
		}
	}

	t = t.clone()

	seen := make(map[string]bool)
	for i := range t.Columns {
		col := &t.Columns[i]
		if col.Name == "" {
			return &Error{Kind: InvalidDefinition, Namespace: namespace, Table: t.Name, Message: "column name cannot be empty"}
		}
		if seen[col.Name] {
			return &Error{
				Kind:      DuplicateColumnName,
				Namespace: namespace,
				Table:     t.Name,
				Column:    col.Name,
				Message:   fmt.Sprintf("duplicate column %q in table %q", col.Name, t.Name),
			}
		}
		seen[col.Name] = true
		if err := col.Type.check(); err != nil {
			return &Error{
				Kind:      InvalidColumnType,
				Namespace: namespace,
				Table:     t.Name,
				Column:    col.Name,
				Message:   err.Error(),
			}
		}
		if col.Default != nil {
			switch col.Default.Kind {
			case DefaultLiteral, DefaultNow, DefaultOnUpdateNow:
			default:
				return &Error{
					Kind:      InvalidDefinition,
					Namespace: namespace,
					Table:     t.Name,
					Column:    col.Name,
					Message:   fmt.Sprintf("unknown default kind %q", col.Default.Kind),
				}
			}
		}
	}

	if len(t.PrimaryKey) == 0 {
		t.PrimaryKey = nil
	}
	pk := make(map[string]bool)
	for _, name := range t.PrimaryKey {
		if !seen[name] {
			return &Error{
				Kind:      UnknownColumnReference,
				Namespace: namespace,
				Table:     t.Name,
				Column:    name,
				Message:   fmt.Sprintf("primary key references unknown column %q", name),
			}
		}
		if pk[name] {
			return &Error{
				Kind:      DuplicateColumnName,
				Namespace: namespace,
				Table:     t.Name,
				Column:    name,
				Message:   fmt.Sprintf("column %q listed twice in primary key", name),
			}
		}
		pk[name] = true
	}
	// primary key members are implicitly NOT NULL
	for i := range t.Columns {
		if pk[t.Columns[i].Name] {
			t.Columns[i].Nullable = false
		}
	}

	names := make(map[string]string)
	register := func(name, what string) *Error {
		if name == "" {
			return nil
		}
		if prev, ok := names[name]; ok {
			return &Error{
				Kind:       DuplicateConstraintName,
				Namespace:  namespace,
				Table:      t.Name,
				Constraint: name,
				Message:    fmt.Sprintf("%s %q collides with %s of the same name", what, name, prev),
			}
		}
		names[name] = what
		return nil
	}

	for _, u := range t.Uniques {
		if err := register(u.Name, "unique constraint"); err != nil {
			return err
		}
		if len(u.Columns) == 0 {
			return &Error{
				Kind:       InvalidDefinition,
				Namespace:  namespace,
				Table:      t.Name,
				Constraint: u.Name,
				Message:    "unique constraint has no columns",
			}
		}
		if err := checkColumnList(namespace, t.Name, u.Name, "unique constraint", u.Columns, seen, true); err != nil {
			return err
		}
	}

	for _, c := range t.Checks {
		if err := register(c.Name, "check constraint"); err != nil {
			return err
		}
		if c.Expression == "" {
			return &Error{
				Kind:       InvalidDefinition,
				Namespace:  namespace,
				Table:      t.Name,
				Constraint: c.Name,
				Message:    "check constraint has no expression",
			}
		}
		if err := checkColumnList(namespace, t.Name, c.Name, "check constraint", c.Columns, seen, false); err != nil {
			return err
		}
	}

	for _, ix := range t.Indexes {
		if err := register(ix.Name, "index"); err != nil {
			return err
		}
		if len(ix.Columns) == 0 {
			return &Error{
				Kind:       InvalidDefinition,
				Namespace:  namespace,
				Table:      t.Name,
				Constraint: ix.Name,
				Message:    "index has no columns",
			}
		}
		if err := checkColumnList(namespace, t.Name, ix.Name, "index", ix.Columns, seen, true); err != nil {
			return err
		}
	}

	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		if err := register(fk.Name, "foreign key"); err != nil {
			return err
		}
		if err := checkForeignKeySource(ref, &t, fk); err != nil {
			return err
		}
	}

	p := &t
	b.tables[ref] = p
	b.tablesByNS[namespace] = append(b.tablesByNS[namespace], p)
	return nil
}

// checkColumnList verifies that every referenced column exists, and
// optionally that none repeats (positional scopes reject repeats, check
// constraints merely reference columns).
func checkColumnList(namespace, table, constraint, what string, cols []string, exists map[string]bool, rejectDup bool) *Error {
	seen := make(map[string]bool)
	for _, name := range cols {
		if !exists[name] {
			return &Error{
				Kind:       UnknownColumnReference,
				Namespace:  namespace,
				Table:      table,
				Column:     name,
				Constraint: constraint,
				Message:    fmt.Sprintf("%s references unknown column %q", what, name),
			}
		}
		if rejectDup && seen[name] {
			return &Error{
				Kind:       DuplicateColumnName,
				Namespace:  namespace,
				Table:      table,
				Column:     name,
				Constraint: constraint,
				Message:    fmt.Sprintf("column %q listed twice in %s", name, what),
			}
		}
		seen[name] = true
	}
	return nil
}

// checkForeignKeySource validates everything about a foreign key that only
// involves the source table. Target-side checks wait for Finalize so that
// targets may be defined later.
func checkForeignKeySource(ref TableRef, t *Table, fk *ForeignKey) *Error {
	od, err := ParseReferentialAction(string(fk.OnDelete))
	if err != nil {
		return &Error{
			Kind:       InvalidReferentialAction,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message:    "on delete: " + err.Error(),
		}
	}
	fk.OnDelete = od
	ou, err := ParseReferentialAction(string(fk.OnUpdate))
	if err != nil {
		return &Error{
			Kind:       InvalidReferentialAction,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message:    "on update: " + err.Error(),
		}
	}
	fk.OnUpdate = ou

	if fk.References.Namespace == "" || fk.References.Table == "" {
		return &Error{
			Kind:       InvalidDefinition,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message:    "foreign key must reference a namespace-qualified table",
		}
	}
	if len(fk.Columns) == 0 || len(fk.RefColumns) == 0 {
		return &Error{
			Kind:       ForeignKeyLengthMismatch,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message:    "foreign key column lists cannot be empty",
		}
	}
	if len(fk.Columns) != len(fk.RefColumns) {
		return &Error{
			Kind:       ForeignKeyLengthMismatch,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message: fmt.Sprintf("foreign key pairs %d source columns with %d target columns",
				len(fk.Columns), len(fk.RefColumns)),
		}
	}

	srcSeen := make(map[string]bool)
	for _, name := range fk.Columns {
		if !t.HasColumn(name) {
			return &Error{
				Kind:       UnknownColumnReference,
				Namespace:  ref.Namespace,
				Table:      ref.Table,
				Column:     name,
				Constraint: fk.Name,
				Message:    fmt.Sprintf("foreign key references unknown column %q", name),
			}
		}
		if srcSeen[name] {
			return &Error{
				Kind:       DuplicateColumnName,
				Namespace:  ref.Namespace,
				Table:      ref.Table,
				Column:     name,
				Constraint: fk.Name,
				Message:    fmt.Sprintf("column %q listed twice in foreign key", name),
			}
		}
		srcSeen[name] = true
	}
	tgtSeen := make(map[string]bool)
	for _, name := range fk.RefColumns {
		if tgtSeen[name] {
			return &Error{
				Kind:       DuplicateColumnName,
				Namespace:  ref.Namespace,
				Table:      ref.Table,
				Column:     name,
				Constraint: fk.Name,
				Message:    fmt.Sprintf("target column %q listed twice in foreign key", name),
			}
		}
		tgtSeen[name] = true
	}

	if fk.OnDelete == SetNull || fk.OnUpdate == SetNull {
		for _, name := range fk.Columns {
			col, _ := t.Column(name)
			if !col.Nullable {
				return &Error{
					Kind:       ForeignKeySetNullOnNonNullable,
					Namespace:  ref.Namespace,
					Table:      ref.Table,
					Column:     name,
					Constraint: fk.Name,
					Message:    fmt.Sprintf("SET NULL requires nullable source columns, %q is NOT NULL", name),
				}
			}
		}
	}
	return nil
}

// DefineForeignKey attaches a foreign key to an already defined table. The
// target table does not need to exist yet.
func (b *Builder) DefineForeignKey(source TableRef, fk ForeignKey) error {
	t, ok := b.tables[source]
	if !ok {
		return &Error{
			Kind:      UnknownTableReference,
			Namespace: source.Namespace,
			Table:     source.Table,
			Message:   fmt.Sprintf("table %q is not defined", source.String()),
		}
	}
	fk = fk.clone()
	if fk.Name != "" {
		for _, u := range t.Uniques {
			if u.Name == fk.Name {
				return duplicateConstraint(source, fk.Name, "unique constraint")
			}
		}
		for _, c := range t.Checks {
			if c.Name == fk.Name {
				return duplicateConstraint(source, fk.Name, "check constraint")
			}
		}
		for _, ix := range t.Indexes {
			if ix.Name == fk.Name {
				return duplicateConstraint(source, fk.Name, "index")
			}
		}
		for _, other := range t.ForeignKeys {
			if other.Name == fk.Name {
				return duplicateConstraint(source, fk.Name, "foreign key")
			}
		}
	}
	if err := checkForeignKeySource(source, t, &fk); err != nil {
		return err
	}
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return nil
}

func duplicateConstraint(ref TableRef, name, prev string) *Error {
	return &Error{
		Kind:       DuplicateConstraintName,
		Namespace:  ref.Namespace,
		Table:      ref.Table,
		Constraint: name,
		Message:    fmt.Sprintf("foreign key %q collides with %s of the same name", name, prev),
	}
}

// DefineRelationship declares one direction of an association. Untagged
// duplicates for the same ordered table pair are rejected here; pairing of
// tagged declarations is a graph property and waits for Finalize.
func (b *Builder) DefineRelationship(r Relationship) error {
	if !r.Cardinality.Valid() {
		return &Error{
			Kind:    InvalidCardinality,
			Message: fmt.Sprintf("invalid cardinality %q, must be one of: one-to-one, one-to-many, many-to-one", r.Cardinality),
		}
	}
	if r.From.Namespace == "" || r.From.Table == "" || r.To.Namespace == "" || r.To.Table == "" {
		return &Error{Kind: InvalidDefinition, Message: "relationship endpoints must be namespace-qualified tables"}
	}
	r.Derived = false

	for _, ex := range b.relations {
		if ex.From != r.From || ex.To != r.To || ex.Name != r.Name {
			continue
		}
		if r.Name == "" {
			return &Error{
				Kind:      AmbiguousRelationship,
				Namespace: r.From.Namespace,
				Table:     r.From.Table,
				Message: fmt.Sprintf("an untagged relationship from %s to %s is already declared, add relation names to keep both",
					r.From.String(), r.To.String()),
			}
		}
		// a self-referential tag legitimately holds both directions
		if r.From == r.To && r.Cardinality != OneToOne && ex.Cardinality == r.Cardinality.Inverse() {
			continue
		}
		return &Error{
			Kind:       AmbiguousRelationship,
			Namespace:  r.From.Namespace,
			Table:      r.From.Table,
			Constraint: r.Name,
			Message: fmt.Sprintf("relation name %q is already declared from %s to %s",
				r.Name, r.From.String(), r.To.String()),
		}
	}

	b.relations = append(b.relations, r)
	return nil
}
