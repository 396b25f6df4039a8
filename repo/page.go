package repo

import "github.com/Skryldev/sql-orm/orm"

// DefaultPageSize is used when a caller asks for a page size below one.
const DefaultPageSize = 10

// Page describes one page of a listing: which rows to fetch and how the
// page relates to its neighbours.
type Page struct {
	ItemCount   int64 `json:"item_count"`
	PageIndex   int   `json:"page_index"`
	PageSize    int   `json:"page_size"`
	PageCount   int   `json:"page_count"`
	Offset      int   `json:"offset"`
	Limit       int   `json:"limit"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NewPage computes the page pageIndex (1-based) of itemCount items split in
// pages of pageSize. An empty listing or an index past the last page yields
// page 1 with a zero limit.
func NewPage(itemCount int64, pageIndex, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageIndex < 1 {
		pageIndex = 1
	}
	p := Page{
		ItemCount: itemCount,
		PageIndex: pageIndex,
		PageSize:  pageSize,
		PageCount: int((itemCount + int64(pageSize) - 1) / int64(pageSize)),
	}
	if itemCount == 0 || pageIndex > p.PageCount {
		p.PageIndex = 1
	} else {
		p.Offset = pageSize * (pageIndex - 1)
		p.Limit = pageSize
	}
	p.HasNext = p.PageIndex < p.PageCount
	p.HasPrevious = p.PageIndex > 1
	return p
}

// Window returns the LIMIT pair selecting the page's rows.
func (p Page) Window() orm.Window {
	return orm.Window{Offset: p.Offset, Count: p.Limit}
}

// Empty reports whether the page selects no rows.
func (p Page) Empty() bool { return p.Limit == 0 }
