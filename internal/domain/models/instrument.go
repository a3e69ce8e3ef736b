package models

import (
	"strconv"
	"strings"
	"time"
)

// Default values applied to the free-form columns of a new instrument.
const (
	DefaultCategory = "Общее"
	DefaultUnit     = "шт."
	DefaultLocation = "Склад"
)

// Instrument is one row of the inventory workbook. Number is the stable
// identity of the row; the row position is only a display rank.
type Instrument struct {
	Number          int
	Name            string
	Model           string
	Manufacturer    string
	Characteristics string
	Quantity        float64
	ImageURL        string
	Category        string
	Unit            string
	Location        string
	Notes           string

	// Extra keeps the values of workbook columns this bot does not manage,
	// keyed by header, so they survive a rewrite.
	Extra map[string]string
}

// Visible reports whether the row is a real instrument rather than a blank
// placeholder row.
func (i Instrument) Visible() bool {
	return strings.TrimSpace(i.Name) != ""
}

// QuantityText renders the quantity without a trailing ".0" for whole values.
func (i Instrument) QuantityText() string {
	return FormatQuantity(i.Quantity)
}

// Clone returns a deep copy of the instrument.
func (i Instrument) Clone() Instrument {
	out := i
	if i.Extra != nil {
		out.Extra = make(map[string]string, len(i.Extra))
		for k, v := range i.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// FormatQuantity renders a quantity the way operators type it.
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// Draft accumulates the fields collected by the add-instrument wizard.
type Draft struct {
	Name            string
	Model           string
	Manufacturer    string
	Quantity        float64
	HasQuantity     bool
	ImageURL        string
	PhotoFileID     string
	Characteristics string
}

// Instrument converts the draft into a record carrying the given number.
func (d Draft) Instrument(number int) Instrument {
	return Instrument{
		Number:          number,
		Name:            d.Name,
		Model:           d.Model,
		Manufacturer:    d.Manufacturer,
		Characteristics: d.Characteristics,
		Quantity:        d.Quantity,
		ImageURL:        d.ImageURL,
		Category:        DefaultCategory,
		Unit:            DefaultUnit,
		Location:        DefaultLocation,
	}
}

// ChangeKind enumerates the inventory mutations recorded in the journal.
type ChangeKind string

const (
	ChangeAdded           ChangeKind = "added"
	ChangeQuantityUpdated ChangeKind = "quantity_updated"
	ChangeDeleted         ChangeKind = "deleted"
)

// ChangeEvent is one journal entry describing a committed mutation.
type ChangeEvent struct {
	ID          string     `bson:"_id" json:"id"`
	Kind        ChangeKind `bson:"kind" json:"kind"`
	Number      int        `bson:"number" json:"number"`
	Name        string     `bson:"name" json:"name"`
	OldQuantity float64    `bson:"old_quantity" json:"old_quantity"`
	NewQuantity float64    `bson:"new_quantity" json:"new_quantity"`
	Synced      bool       `bson:"synced" json:"synced"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
}
