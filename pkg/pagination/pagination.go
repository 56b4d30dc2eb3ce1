package pagination

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams returns the first page with the default page size.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: DefaultPerPage,
	}
}

// FromRequest extracts pagination parameters from an HTTP request. Invalid or
// out-of-range values fall back to the defaults.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if perPage := q.Get("per_page"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= MaxPerPage {
			p.PerPage = v
		}
	}

	return p
}

// Apply sets page and per_page on an outgoing query.
func (p Params) Apply(q url.Values) {
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
}

// Page wraps one page of results from an upstream that does not report a
// total count. HasNext is inferred from whether the upstream filled the page.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewPage builds a Page. upstreamCount is the number of records the upstream
// returned before any local filtering.
func NewPage[T any](items []T, upstreamCount int, params Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		Page:    params.Page,
		PerPage: params.PerPage,
		HasNext: upstreamCount >= params.PerPage,
		HasPrev: params.Page > 1,
	}
}
