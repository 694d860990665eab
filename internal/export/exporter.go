// Package export writes the final record set to a spreadsheet, CSV file, or
// Postgres table.
package export

import (
	"fmt"

	"go.uber.org/zap"

	"firmscout/internal/config"
	"firmscout/internal/scout"
)

// header is the column order shared by every sink.
var header = [4]string{"firm_name", "role_title", "phone", "website"}

// New builds the Exporter selected by the export configuration.
func New(cfg config.ExportConfig, logger *zap.Logger) (scout.Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Format {
	case config.FormatXLSX:
		return NewXLSX(cfg.Path, logger), nil
	case config.FormatCSV:
		return NewCSV(cfg.Path, logger), nil
	case config.FormatPostgres:
		return NewPostgres(cfg.PostgresDSN, cfg.Table, logger)
	default:
		return nil, fmt.Errorf("unknown export format %q", cfg.Format)
	}
}
