package db

import (
	"strconv"
	"strings"
)

// PlaceholderStyle is the bind-variable syntax a driver expects.
type PlaceholderStyle int

const (
	// PlaceholderDefault means "derive from the driver name".
	PlaceholderDefault PlaceholderStyle = iota
	// PlaceholderQuestion keeps '?' markers (MySQL, SQLite).
	PlaceholderQuestion
	// PlaceholderDollar numbers markers as $1, $2, … (PostgreSQL).
	PlaceholderDollar
)

func (p PlaceholderStyle) String() string {
	switch p {
	case PlaceholderQuestion:
		return "question"
	case PlaceholderDollar:
		return "dollar"
	default:
		return "default"
	}
}

// PlaceholderFor returns the style used by the named database/sql driver.
func PlaceholderFor(driverName string) PlaceholderStyle {
	switch driverName {
	case "postgres", "pgx":
		return PlaceholderDollar
	default:
		return PlaceholderQuestion
	}
}

// Rebind rewrites the neutral '?' markers of query into style. Markers inside
// single-quoted literals are left alone. For PlaceholderDollar, backtick-quoted
// identifiers are also turned into double-quoted ones.
func Rebind(style PlaceholderStyle, query string) string {
	if style != PlaceholderDollar {
		return query
	}
	if !strings.ContainsAny(query, "?`") {
		return query
	}

	var (
		b       strings.Builder
		n       int
		literal bool
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			literal = !literal
			b.WriteByte(ch)
		case literal:
			b.WriteByte(ch)
		case ch == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		case ch == '`':
			b.WriteByte('"')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
