package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// FromContext extracts page/limit query parameters from the echo context.
// Missing or invalid values fall back to page 1 and DefaultLimit.
func FromContext(c echo.Context) Params {
	return Parse(c.QueryParam("page"), c.QueryParam("limit"))
}

// Parse normalizes raw page and limit values.
func Parse(rawPage, rawLimit string) Params {
	page, _ := strconv.Atoi(rawPage)
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(rawLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

// Offset returns the row offset of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Limit < total
}

// Page is the paginated payload placed in the envelope's data field. Items
// are serialized under the key named by the resource (claims, hospitals, tpas).
type Page map[string]interface{}

// NewPage builds the paginated payload.
func NewPage(key string, items interface{}, total int, p Params) Page {
	return Page{
		"total": total,
		"page":  p.Page,
		"limit": p.Limit,
		key:     items,
	}
}
