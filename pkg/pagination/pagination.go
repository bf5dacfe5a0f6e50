package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Bounds describes the limit window an endpoint accepts.
type Bounds struct {
	Default int
	Max     int
}

var (
	// Search is the bound for the generic search endpoints.
	Search = Bounds{Default: DefaultLimit, Max: MaxLimit}
	// MyList is used by the caller-scoped history listings.
	MyList = Bounds{Default: 50, Max: 100}
	// Upcoming is used by /my/upcoming style short views.
	Upcoming = Bounds{Default: 10, Max: 50}
	// Active is used by /my/active prescription style views.
	Active = Bounds{Default: 20, Max: 50}
	// Metrics is the bound for health metric listings.
	Metrics = Bounds{Default: 50, Max: 200}
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// Error is returned when limit or offset is outside the accepted range.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Msg
}

// FromContext extracts limit/offset with the search bounds.
func FromContext(c echo.Context) (Params, error) {
	return Parse(c, Search)
}

// Parse extracts limit/offset from the query string. An absent limit takes
// b.Default; a present limit must be within [1, b.Max] and offset must be
// non-negative.
func Parse(c echo.Context, b Bounds) (Params, error) {
	p := Params{Limit: b.Default}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > b.Max {
			return Params{}, &Error{Field: "limit", Msg: fmt.Sprintf("must be an integer between 1 and %d", b.Max)}
		}
		p.Limit = limit
	}

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Params{}, &Error{Field: "offset", Msg: "must be a non-negative integer"}
		}
		p.Offset = offset
	}

	return p, nil
}

// Page converts limit/offset into 1-based page numbers.
type Page struct {
	Page     int
	PageSize int
}

// ParsePage reads page (>=1, default 1) and page_size (1..max, default def).
func ParsePage(c echo.Context, def, max int) (Page, error) {
	pg := Page{Page: 1, PageSize: def}
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, &Error{Field: "page", Msg: "must be an integer >= 1"}
		}
		pg.Page = n
	}
	if raw := c.QueryParam("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > max {
			return Page{}, &Error{Field: "page_size", Msg: fmt.Sprintf("must be an integer between 1 and %d", max)}
		}
		pg.PageSize = n
	}
	return pg, nil
}

func (p Page) Params() Params {
	return Params{Limit: p.PageSize, Offset: (p.Page - 1) * p.PageSize}
}

// TotalPages is ceil(total / page_size).
func (p Page) TotalPages(total int) int {
	if p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}
