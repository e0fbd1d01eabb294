package dto

// MergedRow is an ingested line joined against the supplier lookup.
// Proveedor and Nombre are nil when the item code has no mapping.
type MergedRow struct {
	CodAlfa   string  `json:"COD_ALFA"`
	Precio    float64 `json:"PRECIO"`
	Cantidad  float64 `json:"CANTIDAD"`
	Proveedor *int64  `json:"proveedor"`
	Nombre    *string `json:"nombre"`
}

// UnresolvedItem identifies a row whose item code has no supplier mapping.
type UnresolvedItem struct {
	CodAlfa string `json:"COD_ALFA"`
}

// SummaryRow aggregates merged rows per supplier for the preview screen.
type SummaryRow struct {
	Proveedor     *int64  `json:"PROVEEDOR"`
	RazonSocial   *string `json:"RAZON SOCIAL"`
	Items         int     `json:"ITEMS"`
	CantidadTotal float64 `json:"CANTIDAD_TOTAL"`
	STUSD         float64 `json:"ST_USD"`
}

// CreatedOrder reports one order produced by a generation request.
type CreatedOrder struct {
	Pedido      string `json:"PEDIDO"`
	Proveedor   int64  `json:"PROVEEDOR"`
	RazonSocial string `json:"RAZON SOCIAL"`
	Estado      string `json:"ESTADO"`
}

// IndexRow is one derived order summary: supplier, latest line timestamp
// and the current status text (nil when the order has no status entry).
type IndexRow struct {
	Pedido      string  `json:"pedido"`
	Proveedor   string  `json:"proveedor"`
	RS          string  `json:"rs"`
	LastTS      string  `json:"last_ts"`
	EstadoTexto *string `json:"estado_texto"`
}

// LineRow is a persisted order line as exposed to the editor grid.
type LineRow struct {
	Item      int     `json:"ITEM"`
	CodAlfa   string  `json:"COD_ALFA"`
	Cantidad  float64 `json:"CANTIDAD"`
	Precio    float64 `json:"PRECIO"`
	RS        string  `json:"rs"`
	TS        string  `json:"TS"`
	UserEmail string  `json:"user_email"`
	SAPReady  string  `json:"sap_ready"`
	ProcSAP   int     `json:"proc_sap"`
}

// LineEdit is one edited line in a save request.
type LineEdit struct {
	Item     int `json:"ITEM"`
	Cantidad any `json:"CANTIDAD"`
	Precio   any `json:"PRECIO"`
}

// Estado is one row of the status vocabulary.
type Estado struct {
	ID     int    `json:"id"`
	Estado string `json:"estado"`
}

// StatusRow is one audit-trail entry of an order.
type StatusRow struct {
	ID     int64  `json:"id"`
	Pedido string `json:"pedido"`
	Estado string `json:"estado"`
	TS     string `json:"ts"`
	Usr    string `json:"usr"`
}
