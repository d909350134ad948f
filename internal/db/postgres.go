package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/patrickwarner/floodwatch/internal/models"
)

// PoolConfig sizes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Postgres holds the traced connection pool and the gorm handle built on it.
type Postgres struct {
	SQL  *sql.DB
	Gorm *gorm.DB
}

// InitPostgres connects to Postgres through an otelsql-wrapped lib/pq driver
// and hands the pool to gorm.
func InitPostgres(ctx context.Context, dsn string, pool PoolConfig, logger *zap.Logger) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	gdb, err := OpenGorm(sqlDB, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("Connected to Postgres",
		zap.Int("max_open_conns", pool.MaxOpenConns),
		zap.Int("max_idle_conns", pool.MaxIdleConns),
		zap.Duration("conn_max_lifetime", pool.ConnMaxLifetime))
	return &Postgres{SQL: sqlDB, Gorm: gdb}, nil
}

// OpenGorm wraps an existing pool in a gorm handle. Slow queries and errors
// are written to logger; missing rows are not.
func OpenGorm(sqlDB *sql.DB, logger *zap.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return gdb, nil
}

// Migrate creates or alters the users and reports tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.Gorm.WithContext(ctx).AutoMigrate(&models.User{}, &models.Report{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.SQL.PingContext(ctx)
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.SQL != nil {
		if err := p.SQL.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}
