// Package testutil builds throwaway in-memory databases carrying the
// comex schema, so repository and service tests run without a MySQL
// instance.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/brandatta/comex-vicomx/internal/database"
)

// schemaStatements mirrors db/migrations/sql/00001_create_comex_tables.sql,
// translated to SQLite types. pedidos_meta_id keeps a monotonically
// increasing id because the ledger breaks timestamp ties by id.
var schemaStatements = []string{
	`CREATE TABLE sap_comex (
		NUMERO     TEXT NOT NULL,
		CLIENTE    TEXT,
		COD_ALFA   TEXT,
		CANTIDAD   REAL,
		PRECIO     REAL,
		rs         TEXT,
		ITEM       INTEGER NOT NULL,
		app        TEXT,
		proc_sap   INTEGER DEFAULT 0,
		sap_ready  TEXT DEFAULT 'N',
		user_email TEXT,
		TS         TEXT,
		PRIMARY KEY (NUMERO, ITEM)
	)`,
	`CREATE TABLE pedidos_meta_id (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		pedido TEXT NOT NULL,
		estado TEXT NOT NULL,
		ts     TEXT NOT NULL,
		usr    TEXT
	)`,
	`CREATE INDEX idx_pedidos_meta_pedido ON pedidos_meta_id (pedido, ts, id)`,
	`CREATE TABLE comex_estados (
		id     INTEGER PRIMARY KEY,
		estado TEXT NOT NULL
	)`,
	`CREATE TABLE articulos_comex (
		cod_alfa  TEXT PRIMARY KEY,
		proveedor INTEGER,
		nombre    TEXT
	)`,
}

// NewDB opens an in-memory database with the comex schema applied. The
// single connection keeps the :memory: database alive for the whole test.
func NewDB(t *testing.T) *database.Connections {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	return &database.Connections{Writer: db, Reader: db}
}

// SeedEstados inserts the status vocabulary used across tests.
func SeedEstados(t *testing.T, conns *database.Connections, estados map[int]string) {
	t.Helper()
	for id, texto := range estados {
		if _, err := conns.Writer.Exec(
			`INSERT INTO comex_estados (id, estado) VALUES (?, ?)`, id, texto,
		); err != nil {
			t.Fatalf("seed comex_estados: %v", err)
		}
	}
}

// SeedArticulo inserts one supplier mapping row.
func SeedArticulo(t *testing.T, conns *database.Connections, codAlfa string, proveedor int64, nombre string) {
	t.Helper()
	if _, err := conns.Writer.Exec(
		`INSERT INTO articulos_comex (cod_alfa, proveedor, nombre) VALUES (?, ?, ?)`,
		codAlfa, proveedor, nombre,
	); err != nil {
		t.Fatalf("seed articulos_comex: %v", err)
	}
}
