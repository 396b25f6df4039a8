package orm

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
)

// SchemaOption customises SchemaFor.
type SchemaOption func(*structSchemaConfig)

type structSchemaConfig struct {
	table    string
	defaults map[string]any
}

// WithTable overrides the table name.
func WithTable(name string) SchemaOption {
	return func(c *structSchemaConfig) { c.table = name }
}

// WithDefault sets the default literal or factory of attr.
func WithDefault(attr string, v any) SchemaOption {
	return func(c *structSchemaConfig) {
		if c.defaults == nil {
			c.defaults = make(map[string]any)
		}
		c.defaults[attr] = v
	}
}

// SchemaFor derives a Schema from the exported fields of a struct (or pointer
// to struct), in field order. Each field's `orm` tag reads
//
//	`orm:"column[,pk][,type=<sql type>]"`
//
// with "-" skipping the field. Untagged fields are mapped to the underscored
// field name (CreatedAt → created_at). The attribute name is the column name.
// The table is the value of a TableName() string method when proto has one,
// otherwise the struct type's name.
func SchemaFor(proto any, opts ...SchemaOption) (*Schema, error) {
	rt := reflect.TypeOf(proto)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, &SchemaError{Table: fmt.Sprint(rt), Reason: "not a struct type"}
	}

	var cfg structSchemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	table := cfg.table
	if table == "" {
		if tn, ok := proto.(interface{ TableName() string }); ok {
			table = tn.TableName()
		} else {
			table = rt.Name()
		}
	}

	var (
		attrs []Attr
		index = make(map[string][]int)
	)
	for _, sf := range reflect.VisibleFields(rt) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tag := sf.Tag.Get("orm")
		if tag == "-" {
			continue
		}
		name, pk, ddl := parseTag(tag)
		if name == "" {
			name = inflect.Underscore(sf.Name)
		}

		var fopts []FieldOption
		if pk {
			fopts = append(fopts, PrimaryKey())
		}
		if ddl != "" {
			fopts = append(fopts, DDL(ddl))
		}
		if def, ok := cfg.defaults[name]; ok {
			fopts = append(fopts, Default(def))
		}
		f, err := fieldForType(sf.Type, fopts)
		if err != nil {
			return nil, &SchemaError{Table: table, Reason: sf.Name + ": " + err.Error()}
		}
		attrs = append(attrs, Define(name, f))
		index[name] = sf.Index
	}
	for attr := range cfg.defaults {
		if _, ok := index[attr]; !ok {
			return nil, &SchemaError{Table: table, Reason: "default for undeclared attribute " + attr}
		}
	}

	s, err := NewSchema(table, attrs...)
	if err != nil {
		return nil, err
	}
	s.goType = rt
	s.goIndex = index
	return s, nil
}

// MustSchemaFor is like SchemaFor but panics on error.
func MustSchemaFor(proto any, opts ...SchemaOption) *Schema {
	s, err := SchemaFor(proto, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func parseTag(tag string) (name string, pk bool, ddl string) {
	if tag == "" {
		return "", false, ""
	}
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		switch {
		case p == "pk":
			pk = true
		case strings.HasPrefix(p, "type="):
			ddl = strings.TrimPrefix(p, "type=")
		}
	}
	return name, pk, ddl
}

var timeType = reflect.TypeOf(time.Time{})

func fieldForType(t reflect.Type, opts []FieldOption) (Field, error) {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	switch {
	case base == timeType:
		return newField("Field", "datetime", nil, opts), nil
	case base.Kind() == reflect.String:
		return StringField(opts...), nil
	case base.Kind() == reflect.Bool:
		return BooleanField(opts...), nil
	case base.Kind() >= reflect.Int && base.Kind() <= reflect.Uint64:
		return IntegerField(opts...), nil
	case base.Kind() == reflect.Float32 || base.Kind() == reflect.Float64:
		return FloatField(opts...), nil
	case base.Kind() == reflect.Slice && base.Elem().Kind() == reflect.Uint8:
		return newField("Field", "blob", nil, opts), nil
	}
	return Field{}, fmt.Errorf("unsupported field type %s", t)
}

// ─────────────────────────────────────────────────────────────────────────────
// Struct access
// ─────────────────────────────────────────────────────────────────────────────

// StructValue reads attr from the struct ptr points to. A nil pointer field
// or a zero non-pointer field reports ok == false; v then holds the zero value
// (nil for pointers) so it can still be bound.
func (s *Schema) StructValue(ptr any, attr string) (v any, ok bool) {
	fv, err := s.structField(ptr, attr)
	if err != nil {
		return nil, false
	}
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, false
		}
		return fv.Elem().Interface(), true
	}
	return fv.Interface(), !fv.IsZero()
}

// SetStructValue stores v into the field mapped to attr, converting driver
// values (int64, float64, []byte, string, time.Time, nil) to the field type.
func (s *Schema) SetStructValue(ptr any, attr string, v any) error {
	fv, err := s.structField(ptr, attr)
	if err != nil {
		return err
	}
	if err := assign(fv, v); err != nil {
		return fmt.Errorf("sqlorm/orm: %s.%s: %w", s.table, attr, err)
	}
	return nil
}

func (s *Schema) structField(ptr any, attr string) (reflect.Value, error) {
	idx, ok := s.goIndex[attr]
	if !ok {
		return reflect.Value{}, &InvalidArgumentError{Arg: "attribute", Value: attr}
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != s.goType {
		return reflect.Value{}, &InvalidArgumentError{Arg: "struct pointer", Value: ptr}
	}
	return rv.Elem().FieldByIndex(idx), nil
}

func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if b, ok := v.([]byte); ok {
		if dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8 {
			dst.SetBytes(append([]byte(nil), b...))
			return nil
		}
		v = string(b)
	}

	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		switch {
		case src.CanInt():
			dst.SetBool(src.Int() != 0)
			return nil
		case src.Kind() == reflect.String:
			b, err := strconv.ParseBool(src.String())
			if err != nil {
				return err
			}
			dst.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if src.Kind() == reflect.String {
			f, err := strconv.ParseFloat(src.String(), 64)
			if err != nil {
				return err
			}
			src = reflect.ValueOf(f)
		}
		if src.Kind() == reflect.Bool {
			var n int64
			if src.Bool() {
				n = 1
			}
			src = reflect.ValueOf(n)
		}
	case reflect.String:
		if src.Kind() != reflect.String {
			return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
		}
	}
	if src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
}
