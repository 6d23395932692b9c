package infra

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/usdledger/internal/migrations"
	"github.com/amirasaad/usdledger/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDBConnection opens the postgres pool described by cnf. SQL is logged
// only in development.
func NewDBConnection(
	cnf *config.DB,
	appEnv string,
) (*gorm.DB, error) {
	if cnf == nil || cnf.Url == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	var logMode logger.LogLevel
	if appEnv == "development" {
		logMode = logger.Info
	} else {
		logMode = logger.Silent
	}

	connection, err := gorm.Open(postgres.Open(cnf.Url), GormConfig(logMode))
	if err != nil {
		return nil, err
	}

	sqlDB, err := connection.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cnf.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cnf.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cnf.ConnMaxLifetime)

	if cnf.AutoMigrate {
		if err := migrations.Up(sqlDB); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return connection, nil
}

// GormConfig is shared by the server, the CLI and tests.
func GormConfig(logMode logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}
