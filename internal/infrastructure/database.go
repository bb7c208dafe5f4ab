package infrastructure

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prephub/contests/internal/domain"
)

// models lists every table in creation order. Submissions reference
// participants and problems, so those come first.
var models = []interface{}{
	&domain.User{},
	&domain.Contest{},
	&domain.Problem{},
	&domain.TestCase{},
	&domain.Participant{},
	&domain.Submission{},
	&domain.ProblemSolve{},
}

// Database wraps the GORM connection pool to postgres
type Database struct {
	*gorm.DB
	config *DatabaseConfig
	logger *zap.Logger
}

// NewDatabase opens the pool and verifies the server answers
func NewDatabase(config *DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	log := zapLogger.Named("gorm")

	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{
		Logger: logger.New(&zapLogAdapter{log}, logger.Config{
			SlowThreshold:             config.SlowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		// Writes that need atomicity open explicit transactions
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		// Unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
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
		zap.Duration("slow_query", config.SlowQuery),
	)

	return &Database{
		DB:     db,
		config: config,
		logger: zapLogger,
	}, nil
}

// AutoMigrate creates the tables along with the unique indexes that back
// registration and the attempt cap
func (d *Database) AutoMigrate() error {
	if err := d.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	d.logger.Info("Database migrations completed", zap.Int("tables", len(models)))
	return nil
}

// HealthCheck pings the server through the pool
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

// zapLogAdapter routes gorm's printf logging into zap. gorm only prints at
// Warn and above with the config in NewDatabase.
type zapLogAdapter struct {
	logger *zap.Logger
}

func (z *zapLogAdapter) Printf(format string, args ...interface{}) {
	z.logger.Sugar().Warnf(format, args...)
}
