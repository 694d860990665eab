package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"go.uber.org/zap"

	"firmscout/internal/scout"
)

// CSV writes records to a comma-separated file with a header row.
type CSV struct {
	path   string
	logger *zap.Logger
}

// NewCSV builds a CSV exporter targeting path.
func NewCSV(path string, logger *zap.Logger) *CSV {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSV{path: path, logger: logger}
}

// Export writes the file, replacing any previous contents.
func (c *CSV) Export(ctx context.Context, records []scout.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.path, err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(header[:])
	for _, rec := range records {
		if writeErr != nil {
			break
		}
		writeErr = w.Write([]string{rec.Firm, rec.Role, rec.Phone, rec.Website})
	}
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", c.path, writeErr)
	}
	c.logger.Info("exported csv", zap.String("path", c.path), zap.Int("records", len(records)))
	return nil
}
