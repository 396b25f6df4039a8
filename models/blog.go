package models

import "github.com/Skryldev/sql-orm/orm"

// Blog represents a row in the "blogs" table.
type Blog struct {
	ID        string  `orm:"id,pk,type=varchar(50)"`
	UserID    string  `orm:"user_id,type=varchar(50)"`
	UserName  string  `orm:"user_name,type=varchar(50)"`
	UserImage string  `orm:"user_image,type=varchar(500)"`
	Name      string  `orm:"name,type=varchar(50)"`
	Summary   string  `orm:"summary,type=varchar(200)"`
	Content   string  `orm:"content,type=text"`
	CreatedAt float64 `orm:"created_at"`
}

var blogSchema = orm.MustSchemaFor(&Blog{},
	orm.WithDefault("id", NextID),
	orm.WithDefault("created_at", Now),
)

func (*Blog) TableName() string                  { return "blogs" }
func (*Blog) Schema() *orm.Schema                 { return blogSchema }
func (b *Blog) Value(attr string) (any, bool)     { return blogSchema.StructValue(b, attr) }
func (b *Blog) SetValue(attr string, v any) error { return blogSchema.SetStructValue(b, attr, v) }

// Comment represents a row in the "comments" table.
type Comment struct {
	ID        string  `orm:"id,pk,type=varchar(50)"`
	BlogID    string  `orm:"blog_id,type=varchar(50)"`
	UserID    string  `orm:"user_id,type=varchar(50)"`
	UserName  string  `orm:"user_name,type=varchar(50)"`
	UserImage string  `orm:"user_image,type=varchar(500)"`
	Content   string  `orm:"content,type=text"`
	CreatedAt float64 `orm:"created_at"`
}

var commentSchema = orm.MustSchemaFor(&Comment{},
	orm.WithDefault("id", NextID),
	orm.WithDefault("created_at", Now),
)

func (*Comment) TableName() string                  { return "comments" }
func (*Comment) Schema() *orm.Schema                 { return commentSchema }
func (c *Comment) Value(attr string) (any, bool)     { return commentSchema.StructValue(c, attr) }
func (c *Comment) SetValue(attr string, v any) error { return commentSchema.SetStructValue(c, attr, v) }
