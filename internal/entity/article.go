package entity

import "github.com/uptrace/bun"

// Article maps an item code to its supplier. The articulos_comex table is
// owned by another system; this service only reads from it. An absent row
// means the item code is unmapped.
type Article struct {
	bun.BaseModel `bun:"table:articulos_comex"`

	CodAlfa   string `bun:"cod_alfa,pk"`
	Proveedor int64  `bun:"proveedor"`
	Nombre    string `bun:"nombre"`
}
