package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type connectionConfig struct {
	driver string
	server string
	debug  bool
}

func (c connectionConfig) GetDebug() bool {
	return c.debug
}

func (c connectionConfig) GetDriver() string {
	return c.driver
}

func (c connectionConfig) GetServer() string {
	return c.server
}

func (c connectionConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c connectionConfig) GetOtelIdentifier() string {
	return "go-authflow"
}

// OpenSQLite opens (or creates) the embedded credential database. The
// single-connection limit serializes writers, which is what sqlite wants.
func OpenSQLite(dsn string) (*persistence.Client, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: sqlite dsn is required")
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(connectionConfig{driver: "sqlite3", server: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new sqlite persistence client: %w", err)
	}
	return client, nil
}

// OpenPostgres connects to a shared credential database for hosts that run
// multiple instances against one backing store.
func OpenPostgres(dsn string) (*persistence.Client, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}

	client, err := persistence.New(connectionConfig{driver: "postgres", server: dsn}, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new postgres persistence client: %w", err)
	}
	return client, nil
}
