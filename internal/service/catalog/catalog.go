// Package catalog answers read-only questions about the inventory: paged
// listing and name search.
package catalog

import (
	"strings"

	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/domain/models"
)

// DefaultPageSize is used when a non-positive size is configured.
const DefaultPageSize = 5

// Page is one page of instruments. Page numbers start at 0; Offset is the
// display rank of the first item minus one.
type Page struct {
	Items  []models.Instrument
	Page   int
	Pages  int
	Total  int
	Offset int
}

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Page > 0 }

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Page+1 < p.Pages }

// Catalog reads from the live table.
type Catalog struct {
	table    inventory.Reader
	pageSize int
}

// New builds a catalog over table.
func New(table inventory.Reader, pageSize int) *Catalog {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Catalog{table: table, pageSize: pageSize}
}

// PageSize returns the configured page size.
func (c *Catalog) PageSize() int {
	return c.pageSize
}

// List returns a page of the visible instruments in table order.
func (c *Catalog) List(page int) Page {
	return Paginate(c.table.Visible(), page, c.pageSize)
}

// Count returns the number of visible instruments.
func (c *Catalog) Count() int {
	return len(c.table.Visible())
}

// Get returns one instrument by number.
func (c *Catalog) Get(number int) (models.Instrument, error) {
	return c.table.Get(number)
}

// Search returns the numbers of the instruments whose name contains term,
// ignoring case, in table order.
func (c *Catalog) Search(term string) []int {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	matches := c.table.FindByName(term, false)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Number)
	}
	return out
}

// Resolve pages over previously found numbers. Instruments deleted since the
// search are left out.
func (c *Catalog) Resolve(numbers []int, page int) Page {
	items := make([]models.Instrument, 0, len(numbers))
	for _, n := range numbers {
		rec, err := c.table.Get(n)
		if err != nil || !rec.Visible() {
			continue
		}
		items = append(items, rec)
	}
	return Paginate(items, page, c.pageSize)
}

// Paginate slices items into fixed-size pages, clamping page into range.
func Paginate(items []models.Instrument, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		return Page{Total: 0, Pages: 0}
	}

	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}

	start := page * size
	end := start + size
	if end > total {
		end = total
	}

	return Page{
		Items:  items[start:end],
		Page:   page,
		Pages:  pages,
		Total:  total,
		Offset: start,
	}
}
