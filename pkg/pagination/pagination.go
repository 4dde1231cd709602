package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Params holds 1-based page parameters extracted from a request.
type Params struct {
	Page int
	Size int
}

// FromContext extracts page parameters from the echo context.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return Params{Page: page, Size: size}
}

// Offset returns the row offset for SQL queries.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

// Response wraps a paginated API response.
type Response struct {
	Data      interface{} `json:"data"`
	Total     int         `json:"total"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
	PageCount int         `json:"page_count"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:      data,
		Total:     total,
		Page:      p.Page,
		PageSize:  p.Size,
		PageCount: PageCount(total, p.Size),
	}
}

// PageCount derives the number of pages for a total row count.
func PageCount(total, size int) int {
	if total == 0 || size < 1 {
		return 0
	}
	return (total + size - 1) / size
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Size < total
}
