package schema

// Schema is a finalized, validated snapshot. Nothing mutates it after
// Finalize returns it, and callers must treat everything it hands out as
// read-only. Evolution works copy-on-write: derive the Spec, edit it, build a
// new snapshot.
type Schema struct {
	namespaces    []Namespace
	byName        map[string]int
	tables        map[TableRef]*Table
	relationships []Relationship
	warnings      []*Error
}

// Namespaces returns every namespace in definition order.
func (s *Schema) Namespaces() []Namespace {
	return s.namespaces
}

func (s *Schema) Namespace(name string) (Namespace, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Namespace{}, false
	}
	return s.namespaces[i], true
}

// Tables returns the tables of one namespace in definition order.
func (s *Schema) Tables(namespace string) []Table {
	i, ok := s.byName[namespace]
	if !ok {
		return nil
	}
	return s.namespaces[i].Tables
}

// Table resolves a namespace-qualified table reference.
func (s *Schema) Table(ref TableRef) (Table, bool) {
	t, ok := s.tables[ref]
	if !ok {
		return Table{}, false
	}
	return *t, true
}

// Relationships returns the full relationship view: every declared direction
// plus the directions derived from foreign keys.
func (s *Schema) Relationships() []Relationship {
	return s.relationships
}

// TableRelationships lists the relationships leaving one table.
func (s *Schema) TableRelationships(from TableRef) []Relationship {
	var out []Relationship
	for _, r := range s.relationships {
		if r.From == from {
			out = append(out, r)
		}
	}
	return out
}

// RelationshipsBetween lists the relationships from one table to another.
func (s *Schema) RelationshipsBetween(from, to TableRef) []Relationship {
	var out []Relationship
	for _, r := range s.relationships {
		if r.From == from && r.To == to {
			out = append(out, r)
		}
	}
	return out
}

// RelationshipNamed resolves a relation tag on a table. Self-referential tags
// hold both directions, so the result is a list.
func (s *Schema) RelationshipNamed(from TableRef, name string) []Relationship {
	var out []Relationship
	for _, r := range s.relationships {
		if r.From == from && r.Name == name && name != "" {
			out = append(out, r)
		}
	}
	return out
}

// Warnings returns the warning-level findings from finalization.
func (s *Schema) Warnings() []*Error {
	return s.warnings
}

// Spec derives the declarative form of the schema: a deep copy that is safe
// to modify and rebuild. Derived relationships are omitted, they come back on
// the next Finalize.
func (s *Schema) Spec() Spec {
	spec := Spec{}
	for _, ns := range s.namespaces {
		out := Namespace{Name: ns.Name}
		for _, t := range ns.Tables {
			out.Tables = append(out.Tables, t.clone())
		}
		spec.Namespaces = append(spec.Namespaces, out)
	}
	for _, r := range s.relationships {
		if !r.Derived {
			spec.Relationships = append(spec.Relationships, r)
		}
	}
	return spec
}
