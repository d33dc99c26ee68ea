package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cp-path-builder/backend/internal/domain"
)

// Database wraps the GORM connection
type Database struct {
	*gorm.DB
	logger *zap.Logger
}

// NewDatabase connects to Postgres and configures the connection pool
func NewDatabase(config *DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	db, err := OpenGorm(config.DSN(), zapLogger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	zapLogger.Info("Database connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.DBName),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)

	return &Database{DB: db, logger: zapLogger}, nil
}

// OpenGorm opens a GORM handle for dsn with queries logged through zap
func OpenGorm(dsn string, zapLogger *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		&zapLogAdapter{zapLogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema for every persisted entity
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Problem{},
		&domain.PracticePath{},
		&domain.PathProblem{},
		&domain.UserProgress{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// tag overlap queries (&&, @>) need a GIN index to stay fast
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_problems_tags ON problems USING GIN (tags)").Error; err != nil {
		return fmt.Errorf("failed to create tag index: %w", err)
	}
	return nil
}

// AutoMigrate runs database migrations
func (d *Database) AutoMigrate() error {
	d.logger.Info("Running database migrations...")
	if err := Migrate(d.DB); err != nil {
		return err
	}
	d.logger.Info("Database migrations completed successfully")
	return nil
}

// HealthCheck verifies the database connection is healthy
func (d *Database) HealthCheck(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// zapLogAdapter adapts zap logger to GORM's logger interface
type zapLogAdapter struct {
	logger *zap.Logger
}

func (z *zapLogAdapter) Printf(format string, args ...interface{}) {
	z.logger.Sugar().Infof(format, args...)
}
