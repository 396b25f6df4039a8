package orm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/sql-orm/orm"
)

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		field  orm.Field
		kind   string
		ddl    string
		def    any
		hasDef bool
	}{
		{orm.StringField(), "StringField", "varchar(100)", nil, false},
		{orm.BooleanField(), "BooleanField", "boolean", false, true},
		{orm.IntegerField(), "IntegerField", "bigint", int64(0), true},
		{orm.FloatField(), "FloatField", "real", 0.0, true},
		{orm.TextField(), "TextField", "text", nil, false},
		{orm.NewField("datetime"), "Field", "datetime", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.field.Kind())
			assert.Equal(t, tt.ddl, tt.field.ColumnType)
			assert.False(t, tt.field.PrimaryKey)
			v, ok := tt.field.DefaultValue()
			assert.Equal(t, tt.hasDef, ok)
			assert.Equal(t, tt.def, v)
		})
	}
}

func TestFieldOptions(t *testing.T) {
	f := orm.StringField(orm.Column("user_name"), orm.PrimaryKey(), orm.DDL("varchar(50)"), orm.Default("anon"))
	assert.Equal(t, "user_name", f.Name)
	assert.True(t, f.PrimaryKey)
	assert.Equal(t, "varchar(50)", f.ColumnType)
	assert.Equal(t, "<StringField, varchar(50):user_name>", f.String())

	v, ok := f.DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, "anon", v)
}

func TestFieldPrimaryKeyForcedOff(t *testing.T) {
	assert.False(t, orm.BooleanField(orm.PrimaryKey()).PrimaryKey)
	assert.False(t, orm.TextField(orm.PrimaryKey()).PrimaryKey)
	assert.True(t, orm.IntegerField(orm.PrimaryKey()).PrimaryKey)
}

func TestFieldDefaultFactory(t *testing.T) {
	calls := 0
	f := orm.StringField(orm.Default(func() any {
		calls++
		return "generated"
	}))
	v, ok := f.DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, "generated", v)

	_, _ = f.DefaultValue()
	assert.Equal(t, 2, calls, "the factory runs on every resolution")

	typed := orm.IntegerField(orm.Default(func() int { return 7 }))
	v, ok = typed.DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	var nilFactory func() string
	_, ok = orm.StringField(orm.Default(nilFactory)).DefaultValue()
	assert.False(t, ok)
}
