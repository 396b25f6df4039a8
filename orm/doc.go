// Package orm maps single-table entities onto SQL.
//
// An entity type is declared once as a Schema, either explicitly from field
// descriptors or from a tagged struct:
//
//	var userSchema = orm.MustSchema("users",
//	    orm.Define("id", orm.StringField(orm.PrimaryKey(), orm.Default(uuid.NewString))),
//	    orm.Define("name", orm.StringField()),
//	    orm.Define("age", orm.IntegerField()),
//	)
//
// Building the schema validates that exactly one field is the primary key and
// precomputes the select, insert, update and delete statements. Every
// instance operation afterwards reuses them:
//
//	exec := orm.NewExecutor(pool)
//	users := orm.NewTable(exec, func() *orm.Record { return orm.NewRecord(userSchema, nil) })
//
//	u := orm.NewRecord(userSchema, map[string]any{"name": "Bob"})
//	err := users.Save(ctx, u)           // INSERT, id and age from defaults
//	got, err := users.Find(ctx, u.Get("id"))
//	all, err := users.FindAll(ctx, orm.FindOptions{OrderBy: "`name`", Limit: 10})
//
// Statements are written with '?' markers and rebound to the driver's style
// by the pool. Writes that do not affect exactly one row are logged as
// warnings unless the table was built WithStrictWrites.
//
// Each call leases its own connection from the pool and releases it before
// returning; no transaction spans more than one call.
package orm
