package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TypeKind is the base column type vocabulary. Dialect-specific spellings are
// handled by the renderers, not here.
type TypeKind string

const (
	Smallint  TypeKind = "smallint"
	Integer   TypeKind = "integer"
	Bigint    TypeKind = "bigint"
	Decimal   TypeKind = "decimal"
	Text      TypeKind = "text"
	Boolean   TypeKind = "boolean"
	Timestamp TypeKind = "timestamp"
	Date      TypeKind = "date"
	Time      TypeKind = "time"
	Interval  TypeKind = "interval"
	JSON      TypeKind = "json"
	UUID      TypeKind = "uuid"
	Inet      TypeKind = "inet"
	Array     TypeKind = "array"
)

var baseKinds = map[TypeKind]bool{
	Smallint: true, Integer: true, Bigint: true, Decimal: true,
	Text: true, Boolean: true, Timestamp: true, Date: true,
	Time: true, Interval: true, JSON: true, UUID: true, Inet: true,
}

// ColumnType is a parsed column type. Precision and Scale apply to decimal,
// MaxLength to text (0 means unbounded), WithTimezone to timestamp, and
// Element to array.
type ColumnType struct {
	Kind         TypeKind
	Precision    int
	Scale        int
	MaxLength    int
	WithTimezone bool
	Element      TypeKind
}

// ParseColumnType parses the textual type form used in schema files:
// "integer", "varchar(255)", "decimal(10,2)", "timestamptz", "text[]" and so
// on. The form round-trips through String.
func ParseColumnType(s string) (ColumnType, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return ColumnType{}, fmt.Errorf("column type cannot be empty")
	}

	if elem, ok := strings.CutSuffix(raw, "[]"); ok {
		inner, err := ParseColumnType(elem)
		if err != nil {
			return ColumnType{}, fmt.Errorf("invalid array element in %q: %w", s, err)
		}
		if inner != (ColumnType{Kind: inner.Kind}) || !baseKinds[inner.Kind] {
			return ColumnType{}, fmt.Errorf("array element must be an unparameterized base type, got %q", elem)
		}
		return ColumnType{Kind: Array, Element: inner.Kind}, nil
	}

	name, args, err := splitTypeArgs(raw)
	if err != nil {
		return ColumnType{}, err
	}

	switch name {
	case "smallint":
		return ColumnType{Kind: Smallint}, nil
	case "int", "integer":
		return ColumnType{Kind: Integer}, nil
	case "bigint":
		return ColumnType{Kind: Bigint}, nil
	case "decimal", "numeric":
		ct := ColumnType{Kind: Decimal}
		if len(args) >= 1 {
			ct.Precision = args[0]
		}
		if len(args) == 2 {
			ct.Scale = args[1]
		}
		if len(args) > 2 {
			return ColumnType{}, fmt.Errorf("decimal takes at most precision and scale, got %q", s)
		}
		return ct, ct.check()
	case "text":
		if len(args) > 0 {
			return ColumnType{}, fmt.Errorf("text takes no arguments, use varchar(n) for a bounded length")
		}
		return ColumnType{Kind: Text}, nil
	case "varchar", "character varying":
		ct := ColumnType{Kind: Text}
		if len(args) > 1 {
			return ColumnType{}, fmt.Errorf("varchar takes a single length, got %q", s)
		}
		if len(args) == 1 {
			ct.MaxLength = args[0]
		}
		return ct, ct.check()
	case "bool", "boolean":
		return ColumnType{Kind: Boolean}, nil
	case "timestamp", "timestamp without time zone":
		return ColumnType{Kind: Timestamp}, nil
	case "timestamptz", "timestamp with time zone":
		return ColumnType{Kind: Timestamp, WithTimezone: true}, nil
	case "date":
		return ColumnType{Kind: Date}, nil
	case "time":
		return ColumnType{Kind: Time}, nil
	case "interval":
		return ColumnType{Kind: Interval}, nil
	case "json", "jsonb":
		return ColumnType{Kind: JSON}, nil
	case "uuid":
		return ColumnType{Kind: UUID}, nil
	case "inet":
		return ColumnType{Kind: Inet}, nil
	}
	return ColumnType{}, fmt.Errorf("unsupported column type %q", s)
}

// splitTypeArgs splits "varchar(255)" into "varchar" and [255].
func splitTypeArgs(s string) (string, []int, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("malformed column type %q", s)
	}
	name := strings.TrimSpace(s[:open])
	var args []int
	for _, part := range strings.Split(s[open+1:len(s)-1], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return "", nil, fmt.Errorf("malformed column type %q: %v", s, err)
		}
		args = append(args, n)
	}
	return name, args, nil
}

func (t ColumnType) String() string {
	switch t.Kind {
	case Decimal:
		if t.Precision > 0 {
			return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
		}
		return "decimal"
	case Text:
		if t.MaxLength > 0 {
			return fmt.Sprintf("varchar(%d)", t.MaxLength)
		}
		return "text"
	case Timestamp:
		if t.WithTimezone {
			return "timestamptz"
		}
		return "timestamp"
	case Array:
		return string(t.Element) + "[]"
	}
	return string(t.Kind)
}

// check reports whether the type is internally consistent.
func (t ColumnType) check() error {
	switch t.Kind {
	case "":
		return fmt.Errorf("column type is missing")
	case Array:
		if !baseKinds[t.Element] {
			return fmt.Errorf("array element type %q is not a base type", t.Element)
		}
		if t.Precision != 0 || t.Scale != 0 || t.MaxLength != 0 || t.WithTimezone {
			return fmt.Errorf("array type takes no extra attributes")
		}
		return nil
	}
	if !baseKinds[t.Kind] {
		return fmt.Errorf("unsupported column type %q", t.Kind)
	}
	if t.Element != "" {
		return fmt.Errorf("element type is only valid on arrays")
	}
	if t.Kind != Decimal && (t.Precision != 0 || t.Scale != 0) {
		return fmt.Errorf("precision and scale are only valid on decimal")
	}
	if t.Kind == Decimal {
		if t.Precision < 0 || t.Scale < 0 {
			return fmt.Errorf("decimal precision and scale cannot be negative")
		}
		if t.Precision == 0 && t.Scale > 0 {
			return fmt.Errorf("decimal scale requires a precision")
		}
		if t.Precision > 0 && t.Scale > t.Precision {
			return fmt.Errorf("decimal scale %d exceeds precision %d", t.Scale, t.Precision)
		}
	}
	if t.Kind != Text && t.MaxLength != 0 {
		return fmt.Errorf("max length is only valid on text")
	}
	if t.MaxLength < 0 {
		return fmt.Errorf("max length cannot be negative")
	}
	if t.Kind != Timestamp && t.WithTimezone {
		return fmt.Errorf("time zone flag is only valid on timestamp")
	}
	return nil
}

func (t ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ColumnType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ct, err := ParseColumnType(s)
	if err != nil {
		return err
	}
	*t = ct
	return nil
}
