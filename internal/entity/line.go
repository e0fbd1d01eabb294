package entity

import "github.com/uptrace/bun"

// OrderLine is one row of a generated order, stored in sap_comex.
// (Numero, Item) is the unique key; re-submitting the same key overwrites
// the mutable columns instead of duplicating the line.
type OrderLine struct {
	bun.BaseModel `bun:"table:sap_comex"`

	Numero    string  `bun:"NUMERO"`
	Cliente   string  `bun:"CLIENTE"`
	CodAlfa   string  `bun:"COD_ALFA"`
	Cantidad  float64 `bun:"CANTIDAD"`
	Precio    float64 `bun:"PRECIO"`
	RS        string  `bun:"rs"`
	Item      int     `bun:"ITEM"`
	App       string  `bun:"app"`
	ProcSAP   int     `bun:"proc_sap"`
	SAPReady  string  `bun:"sap_ready"`
	UserEmail string  `bun:"user_email"`
	TS        string  `bun:"TS"`
}

// SourceTag marks lines created through this application.
const SourceTag = "CX"
