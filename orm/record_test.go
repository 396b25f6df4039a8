package orm_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-orm/orm"
)

func TestValueOrDefault_Memoizes(t *testing.T) {
	calls := 0
	s, err := orm.NewSchema("users",
		orm.Define("id", orm.StringField(orm.PrimaryKey(), orm.Default(func() any {
			calls++
			return fmt.Sprintf("id-%d", calls)
		}))),
		orm.Define("name", orm.StringField()),
	)
	require.NoError(t, err)

	r := orm.NewRecord(s, nil)
	first := r.ValueOrDefault("id")
	second := r.ValueOrDefault("id")

	assert.Equal(t, "id-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "id-1", r.Get("id"), "the resolved default is stored on the instance")
}

func TestValueOrDefault_ExplicitValueWins(t *testing.T) {
	s := userSchema(t)
	r := orm.NewRecord(s, map[string]any{"age": 42})

	v, err := orm.ValueOrDefault(r, "age")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestValueOrDefault_NoDefault(t *testing.T) {
	s := userSchema(t)
	r := orm.NewRecord(s, nil)

	assert.Nil(t, r.ValueOrDefault("name"))
	_, set := r.Value("name")
	assert.False(t, set, "nothing is stored when there is no default")

	assert.Equal(t, int64(0), r.ValueOrDefault("age"))
	assert.Nil(t, r.ValueOrDefault("undeclared"))
}

func TestValueOrDefault_NilValueTakesDefault(t *testing.T) {
	s := userSchema(t)
	r := orm.NewRecord(s, map[string]any{"age": nil})
	assert.Equal(t, int64(0), r.ValueOrDefault("age"))
}

func TestRecord_Access(t *testing.T) {
	s := userSchema(t)
	values := map[string]any{"id": "u1", "name": "Bob"}
	r := orm.NewRecord(s, values)

	values["name"] = "mutated"
	assert.Equal(t, "Bob", r.Get("name"), "NewRecord copies its input")

	r.Set("note", "ad hoc")
	r.Set("age", 30)
	assert.Equal(t, []string{"id", "name", "age", "note"}, r.Keys())
	assert.Equal(t, orm.Row{"id": "u1", "name": "Bob", "age": 30}, r.Row(), "ad hoc keys are never written")

	r.Unset("note")
	_, ok := r.Value("note")
	assert.False(t, ok)
	assert.Nil(t, r.Get("missing"))
	assert.Same(t, s, r.Schema())
}

func TestRecordFromRow(t *testing.T) {
	s, err := orm.NewSchema("blogs",
		orm.Define("id", orm.StringField(orm.PrimaryKey())),
		orm.Define("title", orm.StringField(orm.Column("name"))),
	)
	require.NoError(t, err)

	r := orm.RecordFromRow(s, orm.Row{"id": "b1", "name": "Hello", "_num_": 3})
	assert.Equal(t, "Hello", r.Get("title"))
	assert.Equal(t, 3, r.Get("_num_"))
	assert.Equal(t, orm.Row{"id": "b1", "name": "Hello"}, r.Row())
}
