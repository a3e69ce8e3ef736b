// Package inventory holds the in-memory inventory table. The table keeps the
// workbook row order; instruments are addressed by their Number, and a row
// position is only meaningful for display.
package inventory

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mamadbah2/toolstock/internal/domain/models"
)

// ErrNotFound is returned when no instrument carries the requested number or
// a position is out of range.
var ErrNotFound = errors.New("instrument not found")

// Reader is the read-only view of a table handed to components that must not
// mutate it directly.
type Reader interface {
	Len() int
	Rows() []models.Instrument
	Visible() []models.Instrument
	NextNumber() int
	Get(number int) (models.Instrument, error)
	FindByName(text string, caseSensitive bool) []models.Instrument
}

var _ Reader = (*Table)(nil)

// Table is the ordered collection of instruments. It is safe for concurrent
// readers; writers are expected to be serialised by the durable store.
type Table struct {
	mu      sync.RWMutex
	rows    []models.Instrument
	columns []string
	// issued is the highest number ever handed out or removed. It never
	// decreases, so a deleted number is not given to a new record.
	issued int
}

// New builds a table from rows in file order. extraColumns lists workbook
// headers that are carried through untouched.
func New(rows []models.Instrument, extraColumns []string) *Table {
	t := &Table{}
	t.rows = cloneRows(rows)
	t.columns = append([]string(nil), extraColumns...)
	return t
}

// Empty returns a table with no rows.
func Empty() *Table {
	return &Table{}
}

// Len returns the number of rows, placeholders included.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Rows returns a copy of every row in file order.
func (t *Table) Rows() []models.Instrument {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneRows(t.rows)
}

// ExtraColumns returns the unmanaged workbook headers in file order.
func (t *Table) ExtraColumns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.columns...)
}

// Visible returns the named instruments in table order.
func (t *Table) Visible() []models.Instrument {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Instrument, 0, len(t.rows))
	for _, row := range t.rows {
		if row.Visible() {
			out = append(out, row.Clone())
		}
	}
	return out
}

// NextNumber returns one past the highest number the table has ever held,
// including deleted ones.
func (t *Table) NextNumber() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextNumberLocked()
}

func (t *Table) nextNumberLocked() int {
	highest := t.issued
	for _, row := range t.rows {
		if row.Number > highest {
			highest = row.Number
		}
	}
	return highest + 1
}

// HighWater returns the highest number the table has ever held.
func (t *Table) HighWater() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextNumberLocked() - 1
}

// RaiseHighWater makes sure NextNumber stays above n. Lower values are
// ignored.
func (t *Table) RaiseHighWater(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > t.issued {
		t.issued = n
	}
}

// Get returns the instrument with the given number.
func (t *Table) Get(number int) (models.Instrument, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := t.indexLocked(number)
	if idx < 0 {
		return models.Instrument{}, fmt.Errorf("number %d: %w", number, ErrNotFound)
	}
	return t.rows[idx].Clone(), nil
}

// IndexOf returns the row position of the given number, or -1.
func (t *Table) IndexOf(number int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.indexLocked(number)
}

func (t *Table) indexLocked(number int) int {
	if number <= 0 {
		return -1
	}
	for i, row := range t.rows {
		if row.Number == number {
			return i
		}
	}
	return -1
}

// Append adds a record at the end of the table. A record without a number is
// assigned NextNumber; a number already in use is rejected.
func (t *Table) Append(record models.Instrument) (models.Instrument, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record.Number <= 0 {
		record.Number = t.nextNumberLocked()
	} else if t.indexLocked(record.Number) >= 0 {
		return models.Instrument{}, fmt.Errorf("number %d already in use", record.Number)
	}
	if strings.TrimSpace(record.Name) == "" {
		return models.Instrument{}, errors.New("instrument name must not be empty")
	}

	t.rows = append(t.rows, record.Clone())
	return record.Clone(), nil
}

// UpdateQuantity sets the quantity of the instrument with the given number and
// returns the updated record together with the previous quantity.
func (t *Table) UpdateQuantity(number int, quantity float64) (models.Instrument, float64, error) {
	if quantity < 0 {
		return models.Instrument{}, 0, fmt.Errorf("quantity %v must not be negative", quantity)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexLocked(number)
	if idx < 0 {
		return models.Instrument{}, 0, fmt.Errorf("number %d: %w", number, ErrNotFound)
	}
	previous := t.rows[idx].Quantity
	t.rows[idx].Quantity = quantity
	return t.rows[idx].Clone(), previous, nil
}

// RemoveAt deletes the row at the given position; later rows shift up.
func (t *Table) RemoveAt(position int) (models.Instrument, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeAtLocked(position)
}

func (t *Table) removeAtLocked(position int) (models.Instrument, error) {
	if position < 0 || position >= len(t.rows) {
		return models.Instrument{}, fmt.Errorf("position %d: %w", position, ErrNotFound)
	}
	removed := t.rows[position]
	if removed.Number > t.issued {
		t.issued = removed.Number
	}
	t.rows = append(t.rows[:position], t.rows[position+1:]...)
	return removed, nil
}

// Remove deletes the instrument with the given number.
func (t *Table) Remove(number int) (models.Instrument, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexLocked(number)
	if idx < 0 {
		return models.Instrument{}, fmt.Errorf("number %d: %w", number, ErrNotFound)
	}
	return t.removeAtLocked(idx)
}

// FindByName returns visible instruments whose name contains text, in table
// order. Matching is case-insensitive unless caseSensitive is set.
func (t *Table) FindByName(text string, caseSensitive bool) []models.Instrument {
	needle := strings.TrimSpace(text)
	if !caseSensitive {
		needle = strings.ToLower(needle)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.Instrument
	for _, row := range t.rows {
		if !row.Visible() {
			continue
		}
		name := row.Name
		if !caseSensitive {
			name = strings.ToLower(name)
		}
		if strings.Contains(name, needle) {
			out = append(out, row.Clone())
		}
	}
	return out
}

// AssignMissingNumbers gives every named row without a usable number (zero or
// a duplicate of an earlier row) a fresh one, so every visible instrument can
// be addressed by identity. It returns how many rows were renumbered.
func (t *Table) AssignMissingNumbers() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int]bool, len(t.rows))
	var pending []int
	for i, row := range t.rows {
		if !row.Visible() {
			continue
		}
		if row.Number <= 0 || seen[row.Number] {
			pending = append(pending, i)
			continue
		}
		seen[row.Number] = true
	}

	for _, i := range pending {
		t.rows[i].Number = t.nextNumberLocked()
	}
	return len(pending)
}

// Replace swaps the whole content of the table, used after a reload and to
// roll back a failed mutation. The high-water mark is taken from other.
func (t *Table) Replace(other *Table) {
	rows := other.Rows()
	columns := other.ExtraColumns()
	other.mu.RLock()
	issued := other.issued
	other.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = rows
	t.columns = columns
	t.issued = issued
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := New(t.rows, t.columns)
	c.issued = t.issued
	return c
}

func cloneRows(rows []models.Instrument) []models.Instrument {
	out := make([]models.Instrument, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out
}
