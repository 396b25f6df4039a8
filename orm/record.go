package orm

import (
	"log/slog"
	"maps"
	"slices"
)

// Entity is what Table needs from an instance: its schema and by-name access
// to attribute values. Record implements it dynamically; a struct implements
// it by delegating to Schema.StructValue and Schema.SetStructValue.
type Entity interface {
	Schema() *Schema
	// Value returns the stored value of attr. ok is false when attr is unset.
	Value(attr string) (v any, ok bool)
	SetValue(attr string, v any) error
}

// ValueOrDefault returns the value of attr, falling back to the field's
// default when the attribute is unset or nil. A resolved default is stored on
// e, so a default factory runs at most once per instance.
func ValueOrDefault(e Entity, attr string) (any, error) {
	v, ok := e.Value(attr)
	if ok && v != nil {
		return v, nil
	}
	f, declared := e.Schema().Field(attr)
	if !declared {
		return v, nil
	}
	def, hasDefault := f.DefaultValue()
	if !hasDefault {
		return v, nil
	}
	slog.Debug("sqlorm/orm: using default value", slog.String("attr", attr), slog.Any("value", def))
	if err := e.SetValue(attr, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Record is a dynamically keyed entity instance bound to a Schema. Besides
// the declared attributes it may hold ad hoc keys; those are never written to
// the database. A Record is not safe for concurrent mutation.
type Record struct {
	schema *Schema
	values map[string]any
}

var _ Entity = (*Record)(nil)

// NewRecord returns a record of schema s initialised with a copy of values,
// keyed by attribute name.
func NewRecord(s *Schema, values map[string]any) *Record {
	r := &Record{schema: s, values: make(map[string]any, len(values))}
	maps.Copy(r.values, values)
	return r
}

// RecordFromRow builds a record from a result row keyed by column name.
// Columns that map to no attribute are kept under their column name.
func RecordFromRow(s *Schema, row Row) *Record {
	r := &Record{schema: s, values: make(map[string]any, len(row))}
	r.Load(row)
	return r
}

// Load stores every column of row under its attribute name.
func (r *Record) Load(row Row) {
	for col, v := range row {
		if attr, ok := r.schema.AttrForColumn(col); ok {
			r.values[attr] = v
			continue
		}
		r.values[col] = v
	}
}

func (r *Record) Schema() *Schema { return r.schema }

func (r *Record) Value(attr string) (any, bool) {
	v, ok := r.values[attr]
	return v, ok
}

func (r *Record) SetValue(attr string, v any) error {
	r.values[attr] = v
	return nil
}

// Get returns the value of attr, nil when unset.
func (r *Record) Get(attr string) any { return r.values[attr] }

// Set stores v under attr.
func (r *Record) Set(attr string, v any) { r.values[attr] = v }

// Unset removes attr from the record.
func (r *Record) Unset(attr string) { delete(r.values, attr) }

// ValueOrDefault is the package-level ValueOrDefault for records; it cannot
// fail since records accept any value.
func (r *Record) ValueOrDefault(attr string) any {
	v, _ := ValueOrDefault(r, attr)
	return v
}

// Keys returns the set attributes: declared ones in declaration order, then
// ad hoc keys sorted.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.values))
	for _, attr := range r.schema.attrs {
		if _, ok := r.values[attr]; ok {
			keys = append(keys, attr)
		}
	}
	var extra []string
	for k := range r.values {
		if _, declared := r.schema.fields[k]; !declared {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}

// Row returns the declared attributes that are set, keyed by column name.
func (r *Record) Row() Row {
	row := make(Row, len(r.values))
	for _, attr := range r.schema.attrs {
		if v, ok := r.values[attr]; ok {
			row[r.schema.Column(attr)] = v
		}
	}
	return row
}
