package orm

import (
	"fmt"
	"reflect"
)

// Field describes one column: its name, SQL type, whether it is the primary
// key, and its default. Default is either a literal or a zero-argument
// function returning one value (func() any, uuid.NewString, …), which is
// called each time a default is needed.
//
// A Field is a value; copies stored in a Schema are never mutated.
type Field struct {
	Name       string
	ColumnType string
	PrimaryKey bool
	Default    any

	kind string
}

// FieldOption customises a field constructor.
type FieldOption func(*Field)

// Column sets the column name. Left empty, it resolves to the attribute name
// the field is declared under.
func Column(name string) FieldOption {
	return func(f *Field) { f.Name = name }
}

// PrimaryKey marks the field as the primary key. Ignored by BooleanField and
// TextField.
func PrimaryKey() FieldOption {
	return func(f *Field) { f.PrimaryKey = true }
}

// Default sets the default literal or factory.
func Default(v any) FieldOption {
	return func(f *Field) { f.Default = v }
}

// DDL overrides the column type, e.g. DDL("varchar(50)").
func DDL(columnType string) FieldOption {
	return func(f *Field) { f.ColumnType = columnType }
}

// NewField builds a field with an arbitrary column type.
func NewField(columnType string, opts ...FieldOption) Field {
	return newField("Field", columnType, nil, opts)
}

// StringField is a varchar(100) column with no default.
func StringField(opts ...FieldOption) Field {
	return newField("StringField", "varchar(100)", nil, opts)
}

// BooleanField is a boolean column defaulting to false. It can never be the
// primary key.
func BooleanField(opts ...FieldOption) Field {
	f := newField("BooleanField", "boolean", false, opts)
	f.PrimaryKey = false
	return f
}

// IntegerField is a bigint column defaulting to 0.
func IntegerField(opts ...FieldOption) Field {
	return newField("IntegerField", "bigint", int64(0), opts)
}

// FloatField is a real column defaulting to 0.0.
func FloatField(opts ...FieldOption) Field {
	return newField("FloatField", "real", 0.0, opts)
}

// TextField is a text column with no default. It can never be the primary key.
func TextField(opts ...FieldOption) Field {
	f := newField("TextField", "text", nil, opts)
	f.PrimaryKey = false
	return f
}

func newField(kind, columnType string, def any, opts []FieldOption) Field {
	f := Field{ColumnType: columnType, Default: def, kind: kind}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Kind returns the constructor family, e.g. "StringField".
func (f Field) Kind() string {
	if f.kind == "" {
		return "Field"
	}
	return f.kind
}

func (f Field) String() string {
	return fmt.Sprintf("<%s, %s:%s>", f.Kind(), f.ColumnType, f.Name)
}

// DefaultValue resolves the default: a factory is invoked, a literal returned
// as is. ok is false when the field has no default.
func (f Field) DefaultValue() (v any, ok bool) {
	if f.Default == nil {
		return nil, false
	}
	if fn, isFn := f.Default.(func() any); isFn {
		return fn(), true
	}
	rv := reflect.ValueOf(f.Default)
	if rv.Kind() == reflect.Func && rv.Type().NumIn() == 0 && rv.Type().NumOut() == 1 {
		if rv.IsNil() {
			return nil, false
		}
		return rv.Call(nil)[0].Interface(), true
	}
	return f.Default, true
}
