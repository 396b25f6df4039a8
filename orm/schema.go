package orm

import (
	"log/slog"
	"reflect"
	"strings"
)

// Attr binds a field descriptor to an attribute name.
type Attr struct {
	Name  string
	Field Field
}

// Define declares attribute name with field f.
func Define(name string, f Field) Attr { return Attr{Name: name, Field: f} }

// Schema is the precomputed mapping and SQL templates of one entity type.
// It is built once, normally into a package-level variable, and is read-only
// afterwards; it is safe for concurrent use.
type Schema struct {
	table    string
	attrs    []string // declaration order, primary key included
	fields   map[string]Field
	byColumn map[string]string
	pk       string
	ordinary []string

	// struct-backed schemas only
	goType  reflect.Type
	goIndex map[string][]int

	selectSQL string
	insertSQL string
	updateSQL string
	deleteSQL string
}

// NewSchema validates the declared attributes and derives the select, insert,
// update and delete templates. Exactly one field must be the primary key.
func NewSchema(table string, attrs ...Attr) (*Schema, error) {
	if table == "" {
		return nil, &SchemaError{Table: table, Reason: "empty table name"}
	}

	s := &Schema{
		table:    table,
		attrs:    make([]string, 0, len(attrs)),
		fields:   make(map[string]Field, len(attrs)),
		byColumn: make(map[string]string, len(attrs)),
	}
	for _, a := range attrs {
		if a.Name == "" {
			return nil, &SchemaError{Table: table, Reason: "empty attribute name"}
		}
		if _, dup := s.fields[a.Name]; dup {
			return nil, &SchemaError{Table: table, Reason: "duplicate attribute " + a.Name}
		}
		f := a.Field
		if f.Name == "" {
			f.Name = a.Name
		}
		if prev, dup := s.byColumn[f.Name]; dup {
			return nil, &SchemaError{Table: table, Reason: "column " + f.Name + " mapped by both " + prev + " and " + a.Name}
		}
		slog.Debug("sqlorm/orm: found mapping", "table", table, "attr", a.Name, "field", f.String())

		s.attrs = append(s.attrs, a.Name)
		s.fields[a.Name] = f
		s.byColumn[f.Name] = a.Name
		if f.PrimaryKey {
			if s.pk != "" {
				return nil, &SchemaError{Table: table, Reason: "duplicate primary key for field " + a.Name}
			}
			s.pk = a.Name
		} else {
			s.ordinary = append(s.ordinary, a.Name)
		}
	}
	if s.pk == "" {
		return nil, &SchemaError{Table: table, Reason: "primary key not found"}
	}

	s.buildTemplates()
	return s, nil
}

// MustSchema is like NewSchema but panics, so that a program declaring a
// malformed entity in a package-level var fails at start-up.
func MustSchema(table string, attrs ...Attr) *Schema {
	s, err := NewSchema(table, attrs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) buildTemplates() {
	table := quoteIdent(s.table)
	pk := quoteIdent(s.Column(s.pk))

	cols := make([]string, len(s.ordinary))
	sets := make([]string, len(s.ordinary))
	for i, attr := range s.ordinary {
		cols[i] = quoteIdent(s.Column(attr))
		sets[i] = cols[i] + "=?"
	}

	s.selectSQL = "SELECT " + strings.Join(append([]string{pk}, cols...), ", ") + " FROM " + table
	s.insertSQL = "INSERT INTO " + table + " (" + strings.Join(append(cols, pk), ", ") + ") VALUES (" + placeholders(len(cols)+1) + ")"
	if len(sets) == 0 {
		// Nothing to set; keep the statement valid and bound to the key only.
		sets = []string{pk + "=" + pk}
	}
	s.updateSQL = "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + pk + "=?"
	s.deleteSQL = "DELETE FROM " + table + " WHERE " + pk + "=?"
}

// Table returns the table name.
func (s *Schema) Table() string { return s.table }

// PrimaryKey returns the primary-key attribute.
func (s *Schema) PrimaryKey() string { return s.pk }

// Fields returns the ordinary (non-key) attributes in declaration order.
func (s *Schema) Fields() []string { return append([]string(nil), s.ordinary...) }

// Attrs returns every attribute, primary key included, in declaration order.
func (s *Schema) Attrs() []string { return append([]string(nil), s.attrs...) }

// Field returns the descriptor declared for attr.
func (s *Schema) Field(attr string) (Field, bool) {
	f, ok := s.fields[attr]
	return f, ok
}

// Column returns the column attr is stored in, or "" for unknown attributes.
func (s *Schema) Column(attr string) string { return s.fields[attr].Name }

// AttrForColumn maps a result column back to its attribute.
func (s *Schema) AttrForColumn(column string) (string, bool) {
	attr, ok := s.byColumn[column]
	return attr, ok
}

func (s *Schema) SelectSQL() string { return s.selectSQL }
func (s *Schema) InsertSQL() string { return s.insertSQL }
func (s *Schema) UpdateSQL() string { return s.updateSQL }
func (s *Schema) DeleteSQL() string { return s.deleteSQL }

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement from the
// declared column types, for bootstrapping development and test databases.
func (s *Schema) CreateTableSQL() string {
	defs := make([]string, 0, len(s.attrs))
	for _, attr := range s.attrs {
		f := s.fields[attr]
		def := quoteIdent(f.Name) + " " + f.ColumnType
		if f.PrimaryKey {
			def += " NOT NULL PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(s.table) + " (" + strings.Join(defs, ", ") + ")"
}

func (s *Schema) String() string {
	return "Schema(" + s.table + ")"
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
