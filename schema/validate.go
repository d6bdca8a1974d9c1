package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved words need an explicit Reserved mark on the table or column that
// uses them. The list matches the identifiers that routinely collide in
// generated SQL.
var reservedWords = map[string]bool{
	"user": true, "order": true, "group": true, "table": true,
	"index": true, "view": true, "schema": true,
}

func isReservedWord(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

// uniqueScope is one set of columns guaranteed unique across a table: the
// primary key, a unique constraint, a unique column or a full unique index.
// Partial unique indexes guarantee nothing table-wide and are excluded.
type uniqueScope struct {
	label string
	cols  map[string]bool
}

func tableUniqueScopes(t *Table) []uniqueScope {
	var scopes []uniqueScope
	if len(t.PrimaryKey) > 0 {
		scopes = append(scopes, uniqueScope{label: "primary key", cols: toSet(t.PrimaryKey)})
	}
	for _, u := range t.Uniques {
		label := "unnamed unique constraint"
		if u.Name != "" {
			label = fmt.Sprintf("unique constraint %q", u.Name)
		}
		scopes = append(scopes, uniqueScope{label: label, cols: toSet(u.Columns)})
	}
	for _, c := range t.Columns {
		if c.Unique {
			scopes = append(scopes, uniqueScope{
				label: fmt.Sprintf("unique column %q", c.Name),
				cols:  map[string]bool{c.Name: true},
			})
		}
	}
	for _, ix := range t.Indexes {
		if ix.Unique && ix.Predicate == "" {
			label := "unnamed unique index"
			if ix.Name != "" {
				label = fmt.Sprintf("unique index %q", ix.Name)
			}
			scopes = append(scopes, uniqueScope{label: label, cols: toSet(ix.Columns)})
		}
	}
	return scopes
}

// hasUniqueScope reports whether cols exactly match one of the table's unique
// scopes. The match is set equality: a unique key over a strict superset does
// not count.
func hasUniqueScope(t *Table, cols []string) bool {
	want := toSet(cols)
	for _, s := range tableUniqueScopes(t) {
		if setsEqual(s.cols, want) {
			return true
		}
	}
	return false
}

func toSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedCols(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// pairKey is an unordered key for a pair of tables.
func pairKey(a, b TableRef) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + "|" + y
}

// Finalize runs every check that spans definitions and returns the immutable
// Schema. It is all-or-nothing: if any error-level violation exists no schema
// is produced, and every violation found is aggregated into the returned
// *ValidationError. Warnings never block; they ride on the schema when
// finalization succeeds and on the aggregate error when it fails. The builder
// stays usable afterwards, so more definitions can follow another Finalize.
func (b *Builder) Finalize() (*Schema, error) {
	var errs, warns []*Error

	// foreign key targets
	brokenFK := make(map[*ForeignKey]bool)
	for _, nsName := range b.nsOrder {
		for _, t := range b.tablesByNS[nsName] {
			ref := TableRef{Namespace: nsName, Table: t.Name}
			for i := range t.ForeignKeys {
				fk := &t.ForeignKeys[i]
				if found := b.checkForeignKeyTarget(ref, fk); len(found) > 0 {
					brokenFK[fk] = true
					errs = append(errs, found...)
				}
			}
		}
	}

	// relationship endpoints
	var declared []Relationship
	for _, r := range b.relations {
		ends := []TableRef{r.From}
		if r.To != r.From {
			ends = append(ends, r.To)
		}
		ok := true
		for _, end := range ends {
			if !b.nsSet[end.Namespace] {
				ok = false
				errs = append(errs, &Error{
					Kind:      UnknownNamespace,
					Namespace: end.Namespace,
					Message:   fmt.Sprintf("relationship references undefined namespace %q", end.Namespace),
				})
			} else if _, exists := b.tables[end]; !exists {
				ok = false
				errs = append(errs, &Error{
					Kind:      UnknownTableReference,
					Namespace: end.Namespace,
					Table:     end.Table,
					Message:   fmt.Sprintf("relationship references undefined table %q", end.String()),
				})
			}
		}
		if ok {
			declared = append(declared, r)
		}
	}

	var derived []Relationship

	// tagged declarations pair across directions
	for i, e := range declared {
		if e.Name == "" {
			continue
		}
		if e.From == e.To && e.Cardinality == OneToOne {
			// a self-referential one-to-one is its own counterpart
			continue
		}
		found := false
		for j, d := range declared {
			if j == i {
				continue
			}
			if d.Name == e.Name && d.From == e.To && d.To == e.From && d.Cardinality == e.Cardinality.Inverse() {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, &Error{
				Kind:       UnpairedRelationName,
				Namespace:  e.From.Namespace,
				Table:      e.From.Table,
				Constraint: e.Name,
				Message: fmt.Sprintf("relation name %q from %s to %s has no %s counterpart from %s",
					e.Name, e.From.String(), e.To.String(), e.Cardinality.Inverse(), e.To.String()),
			})
		}
	}

	// untagged declarations: self-references are rejected, a missing reverse
	// direction is synthesized, a contradicting one is ambiguous
	disagreed := make(map[string]bool)
	for i, e := range declared {
		if e.Name != "" {
			continue
		}
		if e.From == e.To {
			errs = append(errs, &Error{
				Kind:      SelfReferenceRequiresRelationName,
				Namespace: e.From.Namespace,
				Table:     e.From.Table,
				Message:   fmt.Sprintf("self-referential relationship on %s requires a relation name", e.From.String()),
			})
			continue
		}
		var rev *Relationship
		for j := range declared {
			d := &declared[j]
			if j != i && d.Name == "" && d.From == e.To && d.To == e.From {
				rev = d
				break
			}
		}
		if rev == nil {
			derived = append(derived, Relationship{
				From:        e.To,
				To:          e.From,
				Cardinality: e.Cardinality.Inverse(),
				Derived:     true,
			})
			continue
		}
		if rev.Cardinality != e.Cardinality.Inverse() {
			key := pairKey(e.From, e.To)
			if !disagreed[key] {
				disagreed[key] = true
				errs = append(errs, &Error{
					Kind:      AmbiguousRelationship,
					Namespace: e.From.Namespace,
					Table:     e.From.Table,
					Message: fmt.Sprintf("untagged relationships between %s and %s disagree on cardinality, add relation names to keep both",
						e.From.String(), e.To.String()),
				})
			}
		}
	}

	// derive relationships from foreign keys for pairs nobody declared
	covered := make(map[string]bool)
	for _, r := range declared {
		covered[pairKey(r.From, r.To)] = true
	}

	type fkGroup struct {
		src, dst TableRef
		srcTable *Table
		fks      []*ForeignKey
	}
	var groups []*fkGroup
	groupIdx := make(map[string]*fkGroup)
	selfReported := make(map[TableRef]bool)

	for _, nsName := range b.nsOrder {
		for _, t := range b.tablesByNS[nsName] {
			ref := TableRef{Namespace: nsName, Table: t.Name}
			for i := range t.ForeignKeys {
				fk := &t.ForeignKeys[i]
				if brokenFK[fk] {
					continue
				}
				if fk.References == ref {
					hasDecl := false
					for _, r := range declared {
						if r.From == ref && r.To == ref {
							hasDecl = true
							break
						}
					}
					if !hasDecl && !selfReported[ref] {
						selfReported[ref] = true
						errs = append(errs, &Error{
							Kind:      SelfReferenceRequiresRelationName,
							Namespace: ref.Namespace,
							Table:     ref.Table,
							Message:   fmt.Sprintf("self-referential foreign key on %s requires tagged relationship declarations for both directions", ref.String()),
						})
					}
					continue
				}
				if covered[pairKey(ref, fk.References)] {
					continue
				}
				key := ref.String() + "->" + fk.References.String()
				g := groupIdx[key]
				if g == nil {
					g = &fkGroup{src: ref, dst: fk.References, srcTable: t}
					groupIdx[key] = g
					groups = append(groups, g)
				}
				g.fks = append(g.fks, fk)
			}
		}
	}

	bothWays := make(map[string]bool)
	for _, g := range groups {
		if len(g.fks) > 1 {
			errs = append(errs, &Error{
				Kind:      AmbiguousRelationship,
				Namespace: g.src.Namespace,
				Table:     g.src.Table,
				Message: fmt.Sprintf("%d untagged foreign keys from %s to %s, declare named relationships to disambiguate",
					len(g.fks), g.src.String(), g.dst.String()),
			})
			continue
		}
		if groupIdx[g.dst.String()+"->"+g.src.String()] != nil {
			key := pairKey(g.src, g.dst)
			if !bothWays[key] {
				bothWays[key] = true
				errs = append(errs, &Error{
					Kind:      AmbiguousRelationship,
					Namespace: g.src.Namespace,
					Table:     g.src.Table,
					Message: fmt.Sprintf("foreign keys in both directions between %s and %s, declare named relationships to disambiguate",
						g.src.String(), g.dst.String()),
				})
			}
			continue
		}
		card := ManyToOne
		if hasUniqueScope(g.srcTable, g.fks[0].Columns) {
			card = OneToOne
		}
		derived = append(derived,
			Relationship{From: g.src, To: g.dst, Cardinality: card, Derived: true},
			Relationship{From: g.dst, To: g.src, Cardinality: card.Inverse(), Derived: true},
		)
	}

	// reserved identifiers
	for _, nsName := range b.nsOrder {
		for _, t := range b.tablesByNS[nsName] {
			if isReservedWord(t.Name) && !t.Reserved {
				errs = append(errs, &Error{
					Kind:      ReservedIdentifier,
					Namespace: nsName,
					Table:     t.Name,
					Message:   fmt.Sprintf("table name %q is a reserved word, mark it reserved to keep it", t.Name),
				})
			}
			for _, c := range t.Columns {
				if isReservedWord(c.Name) && !c.Reserved {
					errs = append(errs, &Error{
						Kind:      ReservedIdentifier,
						Namespace: nsName,
						Table:     t.Name,
						Column:    c.Name,
						Message:   fmt.Sprintf("column name %q is a reserved word, mark it reserved to keep it", c.Name),
					})
				}
			}
		}
	}

	// redundant unique scopes
	for _, nsName := range b.nsOrder {
		for _, t := range b.tablesByNS[nsName] {
			scopes := tableUniqueScopes(t)
			for i := 0; i < len(scopes); i++ {
				for j := i + 1; j < len(scopes); j++ {
					if setsEqual(scopes[i].cols, scopes[j].cols) {
						warns = append(warns, &Error{
							Kind:      RedundantUniqueConstraint,
							Namespace: nsName,
							Table:     t.Name,
							Message: fmt.Sprintf("%s duplicates %s on columns (%s)",
								scopes[j].label, scopes[i].label, strings.Join(sortedCols(scopes[i].cols), ", ")),
						})
					}
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs, Warnings: warns}
	}

	s := &Schema{
		byName: make(map[string]int),
		tables: make(map[TableRef]*Table),
	}
	for _, nsName := range b.nsOrder {
		ns := Namespace{Name: nsName}
		for _, t := range b.tablesByNS[nsName] {
			ns.Tables = append(ns.Tables, t.clone())
		}
		s.namespaces = append(s.namespaces, ns)
	}
	for i := range s.namespaces {
		s.byName[s.namespaces[i].Name] = i
		for j := range s.namespaces[i].Tables {
			t := &s.namespaces[i].Tables[j]
			s.tables[TableRef{Namespace: s.namespaces[i].Name, Table: t.Name}] = t
		}
	}
	s.relationships = make([]Relationship, 0, len(declared)+len(derived))
	s.relationships = append(s.relationships, declared...)
	s.relationships = append(s.relationships, derived...)
	s.warnings = warns
	return s, nil
}

// checkForeignKeyTarget resolves the target side of a foreign key once all
// tables are known.
func (b *Builder) checkForeignKeyTarget(ref TableRef, fk *ForeignKey) []*Error {
	if !b.nsSet[fk.References.Namespace] {
		return []*Error{{
			Kind:       UnknownNamespace,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message:    fmt.Sprintf("foreign key references undefined namespace %q", fk.References.Namespace),
		}}
	}
	target, ok := b.tables[fk.References]
	if !ok {
		return []*Error{{
			Kind:       UnknownTableReference,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message:    fmt.Sprintf("foreign key references undefined table %q", fk.References.String()),
		}}
	}
	var errs []*Error
	missing := false
	for _, name := range fk.RefColumns {
		if !target.HasColumn(name) {
			missing = true
			errs = append(errs, &Error{
				Kind:       UnknownColumnReference,
				Namespace:  ref.Namespace,
				Table:      ref.Table,
				Column:     name,
				Constraint: fk.Name,
				Message:    fmt.Sprintf("foreign key references unknown column %q in table %q", name, fk.References.String()),
			})
		}
	}
	if !missing && !hasUniqueScope(target, fk.RefColumns) {
		errs = append(errs, &Error{
			Kind:       ForeignKeyTargetNotUnique,
			Namespace:  ref.Namespace,
			Table:      ref.Table,
			Constraint: fk.Name,
			Message: fmt.Sprintf("referenced columns (%s) of %s do not form a unique key",
				strings.Join(fk.RefColumns, ", "), fk.References.String()),
		})
	}
	return errs
}
