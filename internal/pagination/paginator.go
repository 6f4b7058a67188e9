// Package pagination slices ordered collections into numbered pages.
//
// Page numbers are 1-indexed. A requested page that is missing, not a
// number, or outside 1..NumPages resolves to the first page, so callers
// never see a pagination error.
package pagination

import (
	"strconv"
	"strings"
)

// Page is one page of an ordered collection plus navigation metadata.
type Page[T any] struct {
	Items    []T
	Number   int
	NumPages int
	Count    int
	PageSize int
}

func (p Page[T]) HasNext() bool     { return p.Number < p.NumPages }
func (p Page[T]) HasPrevious() bool { return p.Number > 1 }
func (p Page[T]) HasOtherPages() bool {
	return p.HasNext() || p.HasPrevious()
}

// NextPageNumber returns the following page number, or the current one on the last page.
func (p Page[T]) NextPageNumber() int {
	if p.HasNext() {
		return p.Number + 1
	}
	return p.Number
}

// PreviousPageNumber returns the preceding page number, or 1 on the first page.
func (p Page[T]) PreviousPageNumber() int {
	if p.HasPrevious() {
		return p.Number - 1
	}
	return 1
}

// PageRange returns 1..NumPages.
func (p Page[T]) PageRange() []int {
	r := make([]int, p.NumPages)
	for i := range r {
		r[i] = i + 1
	}
	return r
}

// Window is a resolved page position inside a collection of Count items.
type Window struct {
	Number   int
	NumPages int
	Count    int
	PageSize int
	Offset   int
	Limit    int
}

// Resolve picks the page for requested within a collection of count items.
// Limit is the number of items actually on that page.
func Resolve(count, pageSize int, requested string) Window {
	if pageSize <= 0 {
		pageSize = 1
	}
	if count < 0 {
		count = 0
	}

	numPages := (count + pageSize - 1) / pageSize
	if numPages == 0 {
		numPages = 1
	}

	number := 1
	if n, err := strconv.Atoi(strings.TrimSpace(requested)); err == nil && n >= 1 && n <= numPages {
		number = n
	}

	offset := (number - 1) * pageSize
	limit := min(pageSize, count-offset)
	if limit < 0 {
		limit = 0
	}

	return Window{
		Number:   number,
		NumPages: numPages,
		Count:    count,
		PageSize: pageSize,
		Offset:   offset,
		Limit:    limit,
	}
}

// FromWindow builds a Page from items already fetched for w.
func FromWindow[T any](w Window, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Number:   w.Number,
		NumPages: w.NumPages,
		Count:    w.Count,
		PageSize: w.PageSize,
	}
}

// Paginate returns the requested page of an in-memory collection.
func Paginate[T any](items []T, pageSize int, requested string) Page[T] {
	w := Resolve(len(items), pageSize, requested)
	return FromWindow(w, items[w.Offset:w.Offset+w.Limit])
}
