// Package excel converts the inventory table to and from the xlsx workbook
// kept on disk and uploaded to the remote store.
package excel

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v3"

	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/domain/models"
)

// MimeType is the content type of the workbook.
const MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Inventory"

// ErrUnrecognizedLayout is returned when the first row carries no name column.
var ErrUnrecognizedLayout = errors.New("workbook has no recognisable name column")

type field int

const (
	fieldNumber field = iota
	fieldName
	fieldModel
	fieldManufacturer
	fieldCharacteristics
	fieldQuantity
	fieldImageURL
	fieldCategory
	fieldUnit
	fieldLocation
	fieldNotes
)

type column struct {
	field   field
	header  string
	aliases []string
}

// columns lists the managed columns in the order they are written.
var columns = []column{
	{fieldNumber, "№", []string{"no", "number", "#"}},
	{fieldName, "Наименование", []string{"name"}},
	{fieldModel, "Модель", []string{"model"}},
	{fieldManufacturer, "Компания производителя", []string{"manufacturer", "производитель"}},
	{fieldCharacteristics, "Характеристика", []string{"characteristics", "характеристики"}},
	{fieldQuantity, "Количество", []string{"quantity", "amount"}},
	{fieldImageURL, "ImageURL", []string{"image url", "image"}},
	{fieldCategory, "Категория", []string{"category"}},
	{fieldUnit, "Ед. изм.", []string{"unit"}},
	{fieldLocation, "Местоположение", []string{"location"}},
	{fieldNotes, "Примечание", []string{"notes"}},
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func lookupColumn(header string) (field, bool) {
	h := normalizeHeader(header)
	for _, c := range columns {
		if h == normalizeHeader(c.header) {
			return c.field, true
		}
		for _, a := range c.aliases {
			if h == a {
				return c.field, true
			}
		}
	}
	return 0, false
}

// Decode parses workbook bytes into a table. Blank or non-numeric quantity
// cells become 0 and blank text cells become "".
func Decode(data []byte) (*inventory.Table, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	sheet := file.Sheets[0]
	if named, ok := file.Sheet[sheetName]; ok {
		sheet = named
	}

	return decodeGrid(sheet.MaxRow, sheet.MaxCol, func(r, c int) string {
		return cellText(sheet, r, c)
	})
}

// FromValues parses a header-first value grid, such as a range read back
// from the sheet mirror, with the same rules as Decode.
func FromValues(values [][]interface{}) (*inventory.Table, error) {
	cols := 0
	for _, row := range values {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return decodeGrid(len(values), cols, func(r, c int) string {
		if c >= len(values[r]) || values[r][c] == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(values[r][c]))
	})
}

func decodeGrid(rowCount, colCount int, cell func(r, c int) string) (*inventory.Table, error) {
	if rowCount == 0 {
		return inventory.Empty(), nil
	}

	managed := make(map[int]field)
	extras := make(map[int]string)
	var extraOrder []string
	hasName := false

	for col := 0; col < colCount; col++ {
		header := cell(0, col)
		if header == "" {
			continue
		}
		if f, ok := lookupColumn(header); ok {
			managed[col] = f
			if f == fieldName {
				hasName = true
			}
			continue
		}
		extras[col] = header
		extraOrder = append(extraOrder, header)
	}

	if !hasName {
		return nil, ErrUnrecognizedLayout
	}

	var rows []models.Instrument
	for r := 1; r < rowCount; r++ {
		var rec models.Instrument
		blank := true

		for col := 0; col < colCount; col++ {
			raw := cell(r, col)
			if raw != "" {
				blank = false
			}

			if header, ok := extras[col]; ok {
				if raw != "" {
					if rec.Extra == nil {
						rec.Extra = make(map[string]string)
					}
					rec.Extra[header] = raw
				}
				continue
			}

			f, ok := managed[col]
			if !ok {
				continue
			}
			assign(&rec, f, raw)
		}

		if blank {
			continue
		}
		rows = append(rows, rec)
	}

	return inventory.New(rows, extraOrder), nil
}

func assign(rec *models.Instrument, f field, raw string) {
	switch f {
	case fieldNumber:
		rec.Number = int(parseNumber(raw))
	case fieldQuantity:
		rec.Quantity = parseNumber(raw)
	case fieldName:
		rec.Name = cleanText(raw)
	case fieldModel:
		rec.Model = cleanText(raw)
	case fieldManufacturer:
		rec.Manufacturer = cleanText(raw)
	case fieldCharacteristics:
		rec.Characteristics = cleanText(raw)
	case fieldImageURL:
		rec.ImageURL = cleanText(raw)
	case fieldCategory:
		rec.Category = cleanText(raw)
	case fieldUnit:
		rec.Unit = cleanText(raw)
	case fieldLocation:
		rec.Location = cleanText(raw)
	case fieldNotes:
		rec.Notes = cleanText(raw)
	}
}

// cleanText maps the "0" that older spreadsheet exports wrote into empty text
// cells back to an empty string.
func cleanText(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "0" || strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func parseNumber(raw string) float64 {
	v := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return n
}

func cellText(sheet *xlsx.Sheet, row, col int) string {
	cell, err := sheet.Cell(row, col)
	if err != nil || cell == nil {
		return ""
	}
	return strings.TrimSpace(cell.String())
}

// Headers returns the header row written for the table.
func Headers(table *inventory.Table) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, c.header)
	}
	return append(out, table.ExtraColumns()...)
}

// Values renders the table as a header row followed by one row per record,
// the shape used by both the workbook writer and the sheet mirror.
func Values(table *inventory.Table) [][]interface{} {
	extras := table.ExtraColumns()
	headers := Headers(table)

	out := make([][]interface{}, 0, table.Len()+1)
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	out = append(out, headerRow)

	for _, rec := range table.Rows() {
		row := make([]interface{}, 0, len(headers))
		for _, c := range columns {
			row = append(row, value(rec, c.field))
		}
		for _, h := range extras {
			row = append(row, rec.Extra[h])
		}
		out = append(out, row)
	}
	return out
}

func value(rec models.Instrument, f field) interface{} {
	switch f {
	case fieldNumber:
		if rec.Number <= 0 {
			return ""
		}
		return rec.Number
	case fieldQuantity:
		return rec.Quantity
	case fieldName:
		return rec.Name
	case fieldModel:
		return rec.Model
	case fieldManufacturer:
		return rec.Manufacturer
	case fieldCharacteristics:
		return rec.Characteristics
	case fieldImageURL:
		return rec.ImageURL
	case fieldCategory:
		return rec.Category
	case fieldUnit:
		return rec.Unit
	case fieldLocation:
		return rec.Location
	case fieldNotes:
		return rec.Notes
	}
	return ""
}

// Encode serialises the whole table into workbook bytes. The caller writes
// the result in one go.
func Encode(table *inventory.Table) ([]byte, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	for _, values := range Values(table) {
		row := sheet.AddRow()
		for _, v := range values {
			cell := row.AddCell()
			switch typed := v.(type) {
			case int:
				cell.SetInt(typed)
			case float64:
				cell.SetFloat(typed)
			case string:
				cell.SetString(typed)
			default:
				cell.SetString(fmt.Sprint(typed))
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
