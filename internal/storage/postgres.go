package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shishlyannikovvv/dealflow/internal/config"
	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger sends gorm's slow-query and error lines to log at warn level.
// Misses are expected on every upsert and are not logged.
func gormLogger(log *slog.Logger) logger.Interface {
	if log == nil {
		log = slog.Default()
	}
	return logger.New(slog.NewLogLogger(log.With("component", "gorm").Handler(), slog.LevelWarn), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func gormConfig(log *slog.Logger) *gorm.Config {
	return &gorm.Config{
		// Dialect constraint errors come back as gorm.ErrDuplicatedKey / ErrForeignKeyViolated.
		TranslateError: true,
		Logger:         gormLogger(log),
	}
}

func NewPostgresDB(host, user, password, dbname, port string, log *slog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, password, dbname, port)

	db, err := gorm.Open(postgres.Open(dsn), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewSQLiteDB opens an embedded database. path may be a file path or a
// "file:name?mode=memory&cache=shared" URI.
func NewSQLiteDB(path string, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
	}
	// SQLite has a single writer; one connection serializes transactions instead of SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Open selects the backend from configuration, then migrates and seeds it.
func Open(ctx context.Context, cfg config.Database, log *slog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = NewPostgresDB(cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, log)
	case config.DriverSQLite:
		db, err = NewSQLiteDB(cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	log.Info("database ready", "driver", cfg.Driver)
	return db, nil
}

// Migrate creates the tables, the active-row uniqueness backstops and the
// reference roles with their permissions. Safe to run repeatedly.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	// Автомиграция - создает таблицы на основе структур из domain/models.go
	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// У сделки не больше одного активного лида, даже при конкурентной записи
	const activeLeadIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_deal_lead_active
		ON deal_lead_mappings (deal_id) WHERE is_deleted = false`
	if err := db.Exec(activeLeadIndex).Error; err != nil {
		return fmt.Errorf("failed to create active lead index: %w", err)
	}

	for _, name := range []string{domain.RoleSystemAdmin, domain.RoleDealLead, domain.RoleResource} {
		role := domain.Role{Name: name}
		if err := db.Where(domain.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}
		for _, action := range domain.RolePermissions[name] {
			perm := domain.Permission{RoleID: role.ID, Action: action}
			if err := db.Where(perm).FirstOrCreate(&perm).Error; err != nil {
				return fmt.Errorf("failed to seed permission %s for %s: %w", action, name, err)
			}
		}
	}
	return nil
}
