package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jhoicas/bodega-agent/internal/domain/entity"
	"github.com/jhoicas/bodega-agent/pkg/config"
)

// MemoryDatabase nombre de base que abre sqlite/duckdb en memoria.
const MemoryDatabase = ":memory:"

// Backend describe cómo abrir y parametrizar un tipo de almacén.
type Backend struct {
	Kind   string
	Driver string
	Bind   int // sqlx.QUESTION, sqlx.DOLLAR, ...
	open   func(ctx context.Context, cfg config.StoreConfig, database string) (*sql.DB, func(), error)
}

// Rebind adapta los placeholders '?' al dialecto del backend.
func (b Backend) Rebind(query string) string {
	return sqlx.Rebind(b.Bind, query)
}

var backends = map[string]Backend{
	entity.BackendMySQL:    {Kind: entity.BackendMySQL, Driver: "mysql", Bind: sqlx.QUESTION, open: openMySQL},
	entity.BackendPostgres: {Kind: entity.BackendPostgres, Driver: "pgx", Bind: sqlx.DOLLAR, open: openPostgres},
	entity.BackendSQLite:   {Kind: entity.BackendSQLite, Driver: "sqlite3", Bind: sqlx.QUESTION, open: openSQLite},
	entity.BackendDuckDB:   {Kind: entity.BackendDuckDB, Driver: "duckdb", Bind: sqlx.QUESTION, open: openDuckDB},
}

// LookupBackend devuelve el backend registrado para kind (sin distinguir mayúsculas).
func LookupBackend(kind string) (Backend, bool) {
	b, ok := backends[strings.ToLower(strings.TrimSpace(kind))]
	return b, ok
}

// SupportedBackends lista los tipos registrados.
func SupportedBackends() []string {
	return []string{entity.BackendMySQL, entity.BackendPostgres, entity.BackendSQLite, entity.BackendDuckDB}
}

var databaseNameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-]{0,63}$`)

// validDatabaseName evita rutas arbitrarias en los backends de archivo y nombres raros en los DSN.
func validDatabaseName(name string) error {
	if name == MemoryDatabase || databaseNameRe.MatchString(name) {
		return nil
	}
	return fmt.Errorf("nombre de base de datos inválido %q", name)
}

func openMySQL(ctx context.Context, cfg config.StoreConfig, database string) (*sql.DB, func(), error) {
	if database == MemoryDatabase {
		return nil, nil, fmt.Errorf("mysql no soporta bases en memoria")
	}
	mc := mysql.NewConfig()
	mc.User = cfg.MySQL.User
	mc.Passwd = cfg.MySQL.Password
	mc.Net = "tcp"
	mc.Addr = cfg.MySQL.Addr()
	mc.DBName = database
	mc.ParseTime = true

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("abrir mysql: %w", err)
	}
	configurePool(db, cfg)
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, nil, nil
}

func openSQLite(ctx context.Context, cfg config.StoreConfig, database string) (*sql.DB, func(), error) {
	dsn := "file::memory:?_foreign_keys=on"
	if database != MemoryDatabase {
		path, err := storePath(cfg.SQLite.Dir, database, ".db")
		if err != nil {
			return nil, nil, err
		}
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("abrir sqlite: %w", err)
	}
	// Un solo escritor; en memoria además la base vive mientras viva la conexión.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, nil, nil
}

func openDuckDB(ctx context.Context, cfg config.StoreConfig, database string) (*sql.DB, func(), error) {
	dsn := ""
	if database != MemoryDatabase {
		path, err := storePath(cfg.DuckDB.Dir, database, ".duckdb")
		if err != nil {
			return nil, nil, err
		}
		dsn = path
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("abrir duckdb: %w", err)
	}
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, nil, nil
}

func storePath(dir, database, ext string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("crear directorio %q: %w", dir, err)
	}
	return filepath.Join(dir, database+ext), nil
}

func configurePool(db *sql.DB, cfg config.StoreConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

func ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
