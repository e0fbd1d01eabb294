package entity

import "github.com/uptrace/bun"

// StatusEntry is one append-only record of an order's status. The current
// status of an order is the entry with the latest ts, ties broken by the
// highest id. Entries are never updated or deleted.
type StatusEntry struct {
	bun.BaseModel `bun:"table:pedidos_meta_id"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Pedido string `bun:"pedido"`
	Estado string `bun:"estado"`
	TS     string `bun:"ts"`
	Usr    string `bun:"usr"`
}

// StatusDefinition is one row of the fixed status vocabulary
// (comex_estados). The table is owned elsewhere and read-only here;
// the lowest reserved id is the default initial status.
type StatusDefinition struct {
	bun.BaseModel `bun:"table:comex_estados"`

	ID     int    `bun:"id,pk"`
	Estado string `bun:"estado"`
}
