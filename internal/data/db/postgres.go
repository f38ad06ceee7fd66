package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/graphrag-core/internal/platform/envutil"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver        string
	DSN           string
	SlowThreshold time.Duration
}

// ConfigFromEnv builds a postgres DSN from POSTGRES_* or, for sqlite, takes the path from
// SQLITE_PATH falling back to path.
func ConfigFromEnv(driver, path string) Config {
	cfg := Config{
		Driver:        strings.ToLower(strings.TrimSpace(driver)),
		SlowThreshold: envutil.Duration("DB_SLOW_THRESHOLD", time.Second),
	}
	switch cfg.Driver {
	case DriverSQLite:
		cfg.DSN = envutil.String("SQLITE_PATH", path)
		if strings.TrimSpace(cfg.DSN) == "" {
			cfg.DSN = "graphrag.db"
		}
	default:
		cfg.Driver = DriverPostgres
		cfg.DSN = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			envutil.String("POSTGRES_USER", "postgres"),
			envutil.String("POSTGRES_PASSWORD", ""),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "graphrag"),
			envutil.String("POSTGRES_SSLMODE", "disable"),
		)
	}
	return cfg
}

func Open(cfg Config, logg *logger.Logger) (*gorm.DB, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = time.Second
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Driver, err)
	}
	logg.Info("database connected", "driver", cfg.Driver)
	return db, nil
}
