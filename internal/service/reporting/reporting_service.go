// Package reporting compares the sheet mirror with the workbook so an
// operator can tell whether the mirror is stale.
package reporting

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/repository/excel"
)

// RangeReader reads a range back from the sheet mirror.
type RangeReader interface {
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
	SheetName() string
}

// Service reads the mirror back and diffs it against the table.
type Service struct {
	table  inventory.Reader
	mirror RangeReader
	logger *zap.Logger
}

// NewService wires a new reporting service instance. mirror may be nil.
func NewService(table inventory.Reader, mirror RangeReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{table: table, mirror: mirror, logger: logger}
}

// Drift lists the differences between the sheet mirror and the table.
type Drift struct {
	MissingInMirror []int
	ExtraInMirror   []int
	QuantityDiffers []int
}

// Clean reports whether the mirror matches the table.
func (d Drift) Clean() bool {
	return len(d.MissingInMirror) == 0 && len(d.ExtraInMirror) == 0 && len(d.QuantityDiffers) == 0
}

func (d Drift) String() string {
	if d.Clean() {
		return "Sheet mirror matches the workbook."
	}
	var parts []string
	if len(d.MissingInMirror) > 0 {
		parts = append(parts, fmt.Sprintf("missing in mirror: %v", d.MissingInMirror))
	}
	if len(d.ExtraInMirror) > 0 {
		parts = append(parts, fmt.Sprintf("only in mirror: %v", d.ExtraInMirror))
	}
	if len(d.QuantityDiffers) > 0 {
		parts = append(parts, fmt.Sprintf("quantity differs: %v", d.QuantityDiffers))
	}
	return "Sheet mirror is out of date: " + strings.Join(parts, "; ") + "."
}

// CheckMirror reads the mirror tab back and compares it with the table by
// instrument number.
func (s *Service) CheckMirror(ctx context.Context) (Drift, error) {
	if s.mirror == nil {
		return Drift{}, fmt.Errorf("no sheet mirror is configured")
	}

	rows, err := s.mirror.ReadRange(ctx, s.mirror.SheetName())
	if err != nil {
		return Drift{}, fmt.Errorf("load mirror range: %w", err)
	}

	mirrored, err := excel.FromValues(rows)
	if err != nil {
		return Drift{}, fmt.Errorf("parse mirror range: %w", err)
	}

	var drift Drift
	seen := make(map[int]bool)
	for _, rec := range s.table.Visible() {
		seen[rec.Number] = true
		other, err := mirrored.Get(rec.Number)
		if err != nil {
			drift.MissingInMirror = append(drift.MissingInMirror, rec.Number)
			continue
		}
		if other.Quantity != rec.Quantity {
			drift.QuantityDiffers = append(drift.QuantityDiffers, rec.Number)
		}
	}
	for _, rec := range mirrored.Visible() {
		if !seen[rec.Number] {
			drift.ExtraInMirror = append(drift.ExtraInMirror, rec.Number)
		}
	}

	s.logger.Debug("mirror checked",
		zap.Int("missing", len(drift.MissingInMirror)),
		zap.Int("extra", len(drift.ExtraInMirror)),
		zap.Int("quantity", len(drift.QuantityDiffers)))
	return drift, nil
}
