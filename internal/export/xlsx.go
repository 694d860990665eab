package export

import (
	"context"
	"fmt"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"firmscout/internal/scout"
)

// XLSX writes records to a single-sheet workbook.
type XLSX struct {
	path   string
	logger *zap.Logger
}

// NewXLSX builds an XLSX exporter targeting path.
func NewXLSX(path string, logger *zap.Logger) *XLSX {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSX{path: path, logger: logger}
}

// Export writes the workbook. The file is replaced wholesale on every run.
func (x *XLSX) Export(ctx context.Context, records []scout.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("jobs")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, col := range header {
		headerRow.AddCell().SetString(col)
	}
	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.Firm)
		row.AddCell().SetString(rec.Role)
		row.AddCell().SetString(rec.Phone)
		row.AddCell().SetString(rec.Website)
	}

	if err := file.Save(x.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", x.path, err)
	}
	x.logger.Info("exported workbook", zap.String("path", x.path), zap.Int("records", len(records)))
	return nil
}
