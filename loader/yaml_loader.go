package loader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schemakit/schemakit/schema"
)

type yamlFile struct {
	Namespaces    []yamlNamespace    `yaml:"namespaces"`
	Relationships []yamlRelationship `yaml:"relationships,omitempty"`
}

type yamlNamespace struct {
	Name   string      `yaml:"name"`
	Tables []yamlTable `yaml:"tables"`
}

type yamlTable struct {
	Name        string           `yaml:"name"`
	Columns     []yamlColumn     `yaml:"columns"`
	PrimaryKey  []string         `yaml:"primary_key,omitempty,flow"`
	Uniques     []yamlUnique     `yaml:"uniques,omitempty"`
	Checks      []yamlCheck      `yaml:"checks,omitempty"`
	Indexes     []yamlIndex      `yaml:"indexes,omitempty"`
	ForeignKeys []yamlForeignKey `yaml:"foreign_keys,omitempty"`
	Reserved    bool             `yaml:"reserved,omitempty"`
}

type yamlColumn struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Default  string `yaml:"default,omitempty"`
	Unique   bool   `yaml:"unique,omitempty"`
	Reserved bool   `yaml:"reserved,omitempty"`
}

type yamlUnique struct {
	Name    string   `yaml:"name,omitempty"`
	Columns []string `yaml:"columns,flow"`
}

type yamlCheck struct {
	Name       string   `yaml:"name,omitempty"`
	Expression string   `yaml:"expression"`
	Columns    []string `yaml:"columns,omitempty,flow"`
}

type yamlIndex struct {
	Name      string   `yaml:"name,omitempty"`
	Columns   []string `yaml:"columns,flow"`
	Unique    bool     `yaml:"unique,omitempty"`
	Predicate string   `yaml:"predicate,omitempty"`
}

type yamlForeignKey struct {
	Name       string   `yaml:"name,omitempty"`
	Columns    []string `yaml:"columns,flow"`
	References string   `yaml:"references"`
	RefColumns []string `yaml:"ref_columns,flow"`
	OnDelete   string   `yaml:"on_delete,omitempty"`
	OnUpdate   string   `yaml:"on_update,omitempty"`
}

type yamlRelationship struct {
	Name        string `yaml:"name,omitempty"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Cardinality string `yaml:"cardinality"`
}

// Load reads a schema file into its declarative form. The result carries no
// guarantees yet; run it through schema.Build to validate it.
func Load(filename string) (schema.Spec, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return schema.Spec{}, fmt.Errorf("reading schema file: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return schema.Spec{}, fmt.Errorf("%s: %w", filename, err)
	}
	return spec, nil
}

// Parse reads YAML schema bytes into a schema.Spec.
func Parse(data []byte) (schema.Spec, error) {
	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return schema.Spec{}, fmt.Errorf("unmarshalling YAML: %w", err)
	}

	var spec schema.Spec
	for _, ns := range yf.Namespaces {
		out := schema.Namespace{Name: ns.Name}
		for _, t := range ns.Tables {
			table, err := buildTable(ns.Name, t)
			if err != nil {
				return schema.Spec{}, err
			}
			out.Tables = append(out.Tables, table)
		}
		spec.Namespaces = append(spec.Namespaces, out)
	}

	for _, r := range yf.Relationships {
		from, err := schema.ParseTableRef(r.From)
		if err != nil {
			return schema.Spec{}, fmt.Errorf("relationship %q: %w", r.Name, err)
		}
		to, err := schema.ParseTableRef(r.To)
		if err != nil {
			return schema.Spec{}, fmt.Errorf("relationship %q: %w", r.Name, err)
		}
		spec.Relationships = append(spec.Relationships, schema.Relationship{
			Name:        r.Name,
			From:        from,
			To:          to,
			Cardinality: schema.Cardinality(strings.ToLower(strings.TrimSpace(r.Cardinality))),
		})
	}
	return spec, nil
}

func buildTable(namespace string, t yamlTable) (schema.Table, error) {
	table := schema.Table{
		Name:       t.Name,
		PrimaryKey: t.PrimaryKey,
		Reserved:   t.Reserved,
	}
	for _, c := range t.Columns {
		ct, err := schema.ParseColumnType(c.Type)
		if err != nil {
			return schema.Table{}, fmt.Errorf("table %q, column %q: %w", t.Name, c.Name, err)
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:     c.Name,
			Type:     ct,
			Nullable: c.Nullable,
			Default:  schema.ParseDefault(c.Default),
			Unique:   c.Unique,
			Reserved: c.Reserved,
		})
	}
	for _, u := range t.Uniques {
		table.Uniques = append(table.Uniques, schema.UniqueConstraint{Name: u.Name, Columns: u.Columns})
	}
	for _, ch := range t.Checks {
		table.Checks = append(table.Checks, schema.CheckConstraint{
			Name:       ch.Name,
			Expression: ch.Expression,
			Columns:    ch.Columns,
		})
	}
	for _, ix := range t.Indexes {
		table.Indexes = append(table.Indexes, schema.Index{
			Name:      ix.Name,
			Columns:   ix.Columns,
			Unique:    ix.Unique,
			Predicate: ix.Predicate,
		})
	}
	for _, fk := range t.ForeignKeys {
		ref, err := parseReference(namespace, fk.References)
		if err != nil {
			return schema.Table{}, fmt.Errorf("table %q, foreign key %q: %w", t.Name, fk.Name, err)
		}
		table.ForeignKeys = append(table.ForeignKeys, schema.ForeignKey{
			Name:       fk.Name,
			Columns:    fk.Columns,
			References: ref,
			RefColumns: fk.RefColumns,
			OnDelete:   schema.ReferentialAction(fk.OnDelete),
			OnUpdate:   schema.ReferentialAction(fk.OnUpdate),
		})
	}
	return table, nil
}

// parseReference resolves a foreign key target. A bare table name refers to
// the namespace the source table lives in.
func parseReference(namespace, ref string) (schema.TableRef, error) {
	if ref == "" {
		return schema.TableRef{}, fmt.Errorf("missing references")
	}
	if !strings.Contains(ref, ".") {
		return schema.TableRef{Namespace: namespace, Table: ref}, nil
	}
	return schema.ParseTableRef(ref)
}

// Marshal renders a Spec back into the YAML schema format. Parsing the output
// yields an equal Spec.
func Marshal(spec schema.Spec) ([]byte, error) {
	yf := yamlFile{}
	for _, ns := range spec.Namespaces {
		outNS := yamlNamespace{Name: ns.Name}
		for _, t := range ns.Tables {
			outT := yamlTable{
				Name:       t.Name,
				PrimaryKey: t.PrimaryKey,
				Reserved:   t.Reserved,
			}
			for _, c := range t.Columns {
				outT.Columns = append(outT.Columns, yamlColumn{
					Name:     c.Name,
					Type:     c.Type.String(),
					Nullable: c.Nullable,
					Default:  c.Default.String(),
					Unique:   c.Unique,
					Reserved: c.Reserved,
				})
			}
			for _, u := range t.Uniques {
				outT.Uniques = append(outT.Uniques, yamlUnique{Name: u.Name, Columns: u.Columns})
			}
			for _, ch := range t.Checks {
				outT.Checks = append(outT.Checks, yamlCheck{Name: ch.Name, Expression: ch.Expression, Columns: ch.Columns})
			}
			for _, ix := range t.Indexes {
				outT.Indexes = append(outT.Indexes, yamlIndex{Name: ix.Name, Columns: ix.Columns, Unique: ix.Unique, Predicate: ix.Predicate})
			}
			for _, fk := range t.ForeignKeys {
				outT.ForeignKeys = append(outT.ForeignKeys, yamlForeignKey{
					Name:       fk.Name,
					Columns:    fk.Columns,
					References: fk.References.String(),
					RefColumns: fk.RefColumns,
					OnDelete:   string(fk.OnDelete),
					OnUpdate:   string(fk.OnUpdate),
				})
			}
			outNS.Tables = append(outNS.Tables, outT)
		}
		yf.Namespaces = append(yf.Namespaces, outNS)
	}
	for _, r := range spec.Relationships {
		yf.Relationships = append(yf.Relationships, yamlRelationship{
			Name:        r.Name,
			From:        r.From.String(),
			To:          r.To.String(),
			Cardinality: string(r.Cardinality),
		})
	}
	return yaml.Marshal(yf)
}
