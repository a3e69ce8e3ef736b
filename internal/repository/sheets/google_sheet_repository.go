package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/repository/excel"
)

// Repository mirrors the inventory table into a Google spreadsheet.
type Repository interface {
	Mirror(ctx context.Context, table *inventory.Table) error
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
	SheetName() string
	Link() string
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	sheetRange    string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id must be provided")
	}

	opts = append([]option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}, opts...)
	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	sheetRange := cfg.Range
	if sheetRange == "" {
		sheetRange = "Inventory!A1"
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetRange:    sheetRange,
		logger:        logger,
	}, nil
}

// Mirror clears the target sheet and writes the whole table, header first.
func (r *GoogleSheetRepository) Mirror(ctx context.Context, table *inventory.Table) error {
	sheetName := r.SheetName()
	if _, err := r.service.Spreadsheets.Values.Clear(r.spreadsheetID, sheetName, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheetName, err)
	}

	payload := &sheetsapi.ValueRange{Values: excel.Values(table)}
	call := r.service.Spreadsheets.Values.Update(r.spreadsheetID, r.sheetRange, payload).
		ValueInputOption("RAW").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("update range %s: %w", r.sheetRange, err)
	}

	r.logger.Debug("table mirrored to sheet", zap.String("range", r.sheetRange), zap.Int("rows", table.Len()))
	return nil
}

// SheetName returns the tab the mirror is written to.
func (r *GoogleSheetRepository) SheetName() string {
	if idx := strings.Index(r.sheetRange, "!"); idx >= 0 {
		return r.sheetRange[:idx]
	}
	return r.sheetRange
}

// ReadRange fetches a rectangular data range from the spreadsheet.
func (r *GoogleSheetRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("sheetRange must not be empty")
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}

	return resp.Values, nil
}

// Link returns the browser URL of the spreadsheet.
func (r *GoogleSheetRepository) Link() string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", r.spreadsheetID)
}
