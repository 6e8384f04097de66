package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
)

// Schema devuelve el DDL idempotente (CREATE ... IF NOT EXISTS) del backend, en orden de ejecución.
func Schema(kind string) ([]string, error) {
	switch strings.ToLower(kind) {
	case entity.BackendSQLite:
		return []string{
			`CREATE TABLE IF NOT EXISTS products (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	price NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
	stock_current INTEGER NOT NULL DEFAULT 0 CHECK (stock_current >= 0),
	stock_minimum INTEGER NOT NULL DEFAULT 0 CHECK (stock_minimum >= 0),
	location TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
			`CREATE TABLE IF NOT EXISTS movements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_reference TEXT NOT NULL REFERENCES products(code),
	kind TEXT NOT NULL CHECK (kind IN ('entry', 'exit')),
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	reason TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
			`CREATE INDEX IF NOT EXISTS idx_movements_product ON movements (product_reference)`,
		}, nil
	case entity.BackendPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS products (
	code VARCHAR(64) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category VARCHAR(100) NOT NULL DEFAULT '',
	price NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
	stock_current BIGINT NOT NULL DEFAULT 0 CHECK (stock_current >= 0),
	stock_minimum BIGINT NOT NULL DEFAULT 0 CHECK (stock_minimum >= 0),
	location VARCHAR(100) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
			`CREATE TABLE IF NOT EXISTS movements (
	id BIGSERIAL PRIMARY KEY,
	product_reference VARCHAR(64) NOT NULL REFERENCES products(code),
	kind VARCHAR(10) NOT NULL CHECK (kind IN ('entry', 'exit')),
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	reason TEXT NOT NULL DEFAULT '',
	"timestamp" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
			`CREATE INDEX IF NOT EXISTS idx_movements_product ON movements (product_reference)`,
		}, nil
	case entity.BackendMySQL:
		return []string{
			"CREATE TABLE IF NOT EXISTS products (\n" +
				"\tcode VARCHAR(64) NOT NULL PRIMARY KEY,\n" +
				"\tname VARCHAR(255) NOT NULL,\n" +
				"\tdescription VARCHAR(1024) NOT NULL DEFAULT '',\n" +
				"\tcategory VARCHAR(100) NOT NULL DEFAULT '',\n" +
				"\tprice DECIMAL(12,2) NOT NULL DEFAULT 0,\n" +
				"\tstock_current BIGINT NOT NULL DEFAULT 0,\n" +
				"\tstock_minimum BIGINT NOT NULL DEFAULT 0,\n" +
				"\tlocation VARCHAR(100) NOT NULL DEFAULT '',\n" +
				"\tcreated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
				"\tCONSTRAINT chk_products_price CHECK (price >= 0),\n" +
				"\tCONSTRAINT chk_products_stock CHECK (stock_current >= 0),\n" +
				"\tCONSTRAINT chk_products_minimum CHECK (stock_minimum >= 0)\n" +
				") ENGINE=InnoDB",
			"CREATE TABLE IF NOT EXISTS movements (\n" +
				"\tid BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
				"\tproduct_reference VARCHAR(64) NOT NULL,\n" +
				"\tkind VARCHAR(10) NOT NULL,\n" +
				"\tquantity BIGINT NOT NULL,\n" +
				"\treason VARCHAR(1024) NOT NULL DEFAULT '',\n" +
				"\t`timestamp` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
				"\tINDEX idx_movements_product (product_reference),\n" +
				"\tCONSTRAINT fk_movements_product FOREIGN KEY (product_reference) REFERENCES products (code),\n" +
				"\tCONSTRAINT chk_movements_kind CHECK (kind IN ('entry', 'exit')),\n" +
				"\tCONSTRAINT chk_movements_quantity CHECK (quantity > 0)\n" +
				") ENGINE=InnoDB",
		}, nil
	case entity.BackendDuckDB:
		return []string{
			`CREATE SEQUENCE IF NOT EXISTS movements_id_seq`,
			`CREATE TABLE IF NOT EXISTS products (
	code VARCHAR PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR NOT NULL DEFAULT '',
	category VARCHAR NOT NULL DEFAULT '',
	price DECIMAL(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
	stock_current BIGINT NOT NULL DEFAULT 0 CHECK (stock_current >= 0),
	stock_minimum BIGINT NOT NULL DEFAULT 0 CHECK (stock_minimum >= 0),
	location VARCHAR NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
			`CREATE TABLE IF NOT EXISTS movements (
	id BIGINT PRIMARY KEY DEFAULT nextval('movements_id_seq'),
	product_reference VARCHAR NOT NULL REFERENCES products(code),
	kind VARCHAR NOT NULL CHECK (kind IN ('entry', 'exit')),
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	reason VARCHAR NOT NULL DEFAULT '',
	"timestamp" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		}, nil
	}
	return nil, fmt.Errorf("backend no soportado %q", kind)
}

// EnsureSchema crea las tablas products y movements si no existen.
func (e *Executor) EnsureSchema(ctx context.Context, conn entity.ConnectionDescriptor) error {
	ddl, err := Schema(conn.BackendKind)
	if err != nil {
		return domain.NewError(domain.KindConnection, err.Error(), nil)
	}
	for _, stmt := range ddl {
		if _, err := e.Execute(ctx, []entity.Statement{{SQL: stmt}}, conn); err != nil {
			return fmt.Errorf("crear esquema: %w", err)
		}
	}
	return nil
}
