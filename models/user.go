package models

import "github.com/Skryldev/sql-orm/orm"

// User represents a row in the "users" table.
type User struct {
	ID        string  `orm:"id,pk,type=varchar(50)"`
	Email     string  `orm:"email,type=varchar(50)"`
	Passwd    string  `orm:"passwd,type=varchar(50)"`
	Admin     bool    `orm:"admin"`
	Name      string  `orm:"name,type=varchar(50)"`
	Image     string  `orm:"image,type=varchar(500)"`
	CreatedAt float64 `orm:"created_at"`
}

var userSchema = orm.MustSchemaFor(&User{},
	orm.WithDefault("id", NextID),
	orm.WithDefault("created_at", Now),
)

func (*User) TableName() string                  { return "users" }
func (*User) Schema() *orm.Schema                 { return userSchema }
func (u *User) Value(attr string) (any, bool)     { return userSchema.StructValue(u, attr) }
func (u *User) SetValue(attr string, v any) error { return userSchema.SetStructValue(u, attr, v) }

// CreateUserParams holds the fields required to register a user.
// Keeping input types separate from the entity prevents accidental
// mass-assignment of ID, Admin or CreatedAt.
type CreateUserParams struct {
	Email  string
	Passwd string
	Name   string
	Image  string
}

// UpdateUserParams holds fields that can be updated. Nil pointers are left
// unchanged.
type UpdateUserParams struct {
	ID    string
	Name  *string
	Image *string
	Admin *bool
}
