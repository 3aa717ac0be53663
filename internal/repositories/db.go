package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rohits-web03/fileinpic/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	msqlite "modernc.org/sqlite"
)

// foldFunc is a SQL function that lowercases with full Unicode rules.
// SQLite's built-in LOWER only folds ASCII.
const foldFunc = "unicode_lower"

func init() {
	msqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// OpenDatabase connects to the catalog database and migrates the schema.
// driver is "sqlite" (dsn is a file path) or "postgres" (dsn is a URL).
func OpenDatabase(ctx context.Context, driver, dsn string, lg *slog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	gcfg := &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			slog.NewLogLogger(lg.Handler(), slog.LevelWarn),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = openSQLite(dsn, gcfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.FileRecord{}, &models.ShareLink{}, &models.BlobChunk{}); err != nil {
		_ = CloseDatabase(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	lg.Info("database ready", "driver", driver)
	return db, nil
}

func openSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; callers must not touch db while holding a tx.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: conn}), gcfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func CloseDatabase(db *gorm.DB) error {
	s, err := db.DB()
	if err != nil {
		return err
	}
	return s.Close()
}
