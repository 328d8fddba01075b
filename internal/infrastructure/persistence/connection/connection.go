package connection

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/BizNestAI/bizzy-sub000/pkg/config"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	*gorm.DB
	driver string
}

// Driver returns the SQL dialect in use.
func (db *Database) Driver() string {
	return db.driver
}

// Ping verifies the underlying connection.
func (db *Database) Ping() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Close releases the connection pool.
func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC() // Standardize time
		},
	}
}

// NewDatabase opens the database selected by cfg.Database.Driver.
func NewDatabase(cfg *config.Config) (*Database, error) {
	switch cfg.Database.Driver {
	case DriverSQLite:
		return OpenSQLite(cfg.Database.Path, logger.Warn)
	case "", DriverPostgres:
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// OpenSQLite opens a SQLite database file, or an in-memory one for ":memory:".
func OpenSQLite(path string, level logger.LogLevel) (*Database, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	// SQLite allows a single writer, and each in-memory connection is its own database.
	sqlDB.SetMaxOpenConns(1)

	return &Database{DB: db, driver: DriverSQLite}, nil
}

func openPostgres(cfg *config.Config) (*Database, error) {
	dsn := cfg.Database.DSN()

	// First try to establish a basic SQL connection to verify connectivity
	var pingErr error
	attempts := cfg.Database.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if pingErr = pingPostgres(dsn); pingErr == nil {
			break
		}
		if i < attempts-1 {
			time.Sleep(cfg.Database.RetryDelay)
		}
	}
	if pingErr != nil {
		return nil, pingErr
	}

	gcfg := gormConfig(logger.Warn)
	gcfg.PrepareStmt = true // Enables prepared statement caching

	db, err := gorm.Open(postgres.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database with GORM: %w", err)
	}

	// Get the underlying *sql.DB to configure the connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	// Configure connection pool with reasonable defaults if not specified
	maxIdleConns := 10
	maxOpenConns := 100
	connMaxLifetime := time.Hour

	if cfg.Database.MaxIdleConns > 0 {
		maxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.MaxOpenConns > 0 {
		maxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		connMaxLifetime = cfg.Database.ConnMaxLifetime
	}

	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping connection pool: %w", err)
	}

	return &Database{DB: db, driver: DriverPostgres}, nil
}

func pingPostgres(dsn string) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to create sql.DB: %w", err)
	}
	defer sqlDB.Close()

	sqlDB.SetConnMaxLifetime(10 * time.Second)
	if err := sqlDB.Ping(); err != nil {
		if sqlErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("postgres error: code=%s, message=%s, detail=%s", sqlErr.Code, sqlErr.Message, sqlErr.Detail)
		}
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
