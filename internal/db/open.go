package db

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/models"
)

// MemoryDSN selects the in-process repository instead of Postgres.
const MemoryDSN = "memory://"

// ReportStore is implemented by ReportRepository and MemoryReports.
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	Update(ctx context.Context, id string, changes models.ReportChanges) (*models.Report, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Report, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Handle owns the repository a process runs against.
type Handle struct {
	Reports ReportStore
	pg      *Postgres
}

// Open connects the repository named by dsn. Postgres schemas are migrated
// when migrate is set.
func Open(ctx context.Context, dsn string, pool PoolConfig, migrate bool, logger *zap.Logger) (*Handle, error) {
	if strings.HasPrefix(dsn, MemoryDSN) {
		logger.Warn("using in-memory report repository; data is lost on exit")
		return &Handle{Reports: NewMemoryReports(clockwork.NewRealClock())}, nil
	}

	pg, err := InitPostgres(ctx, dsn, pool, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
	}
	return &Handle{Reports: NewReportRepository(pg.Gorm, nil), pg: pg}, nil
}

// Ping checks the database. The in-memory repository is always reachable.
func (h *Handle) Ping(ctx context.Context) error {
	if h.pg == nil {
		return nil
	}
	return h.pg.Ping(ctx)
}

// Close releases the database connection.
func (h *Handle) Close() {
	if h != nil {
		h.pg.Close()
	}
}
