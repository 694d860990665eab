package export

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"firmscout/internal/scout"
)

// execer is the slice of pgxpool.Pool the exporter needs; pgxmock satisfies
// it in tests.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var tablePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Postgres appends records to a table, creating it on first use.
type Postgres struct {
	pool   execer
	table  string
	logger *zap.Logger
}

// NewPostgres connects lazily to the given DSN.
func NewPostgres(dsn, table string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	return NewPostgresWithPool(pool, table, logger)
}

// NewPostgresWithPool is the injectable constructor used by tests.
func NewPostgresWithPool(pool execer, table string, logger *zap.Logger) (*Postgres, error) {
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, table: table, logger: logger}, nil
}

// Export ensures the table exists and inserts one row per record. Rows from
// earlier runs are kept; exported_at distinguishes them.
func (p *Postgres) Export(ctx context.Context, records []scout.JobRecord) error {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		firm_name text NOT NULL,
		role_title text NOT NULL,
		phone text NOT NULL DEFAULT '',
		website text NOT NULL DEFAULT '',
		exported_at timestamptz NOT NULL DEFAULT now()
	)`, p.table)
	if _, err := p.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("ensure table %s: %w", p.table, err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (firm_name, role_title, phone, website) VALUES ($1, $2, $3, $4)",
		p.table,
	)
	for _, rec := range records {
		if _, err := p.pool.Exec(ctx, insert, rec.Firm, rec.Role, rec.Phone, rec.Website); err != nil {
			return fmt.Errorf("insert record for %s: %w", rec.Firm, err)
		}
	}
	p.logger.Info("exported to postgres", zap.String("table", p.table), zap.Int("records", len(records)))
	return nil
}
