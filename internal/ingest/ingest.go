// Package ingest reads order lines from an uploaded spreadsheet. The first
// sheet is treated as a header row plus one record per row; headers are
// normalized through an alias map so the rest of the system only ever sees
// the canonical row shape.
package ingest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brandatta/comex-vicomx/pkg/errorbank"
	"github.com/brandatta/comex-vicomx/pkg/numparse"
)

// Row is one validated spreadsheet record.
type Row struct {
	CodAlfa  string
	Precio   float64
	Cantidad float64
}

// BadRow reports a spreadsheet row that failed validation, with the raw
// cell text so the user can locate it.
type BadRow struct {
	Fila     int    `json:"fila"`
	CodAlfa  string `json:"COD_ALFA"`
	Precio   string `json:"PRECIO"`
	Cantidad string `json:"CANTIDAD"`
}

// header aliases accepted for each canonical column.
var columnAliases = map[string]string{
	"cod_alfa":   "cod_alfa",
	"codigo":     "cod_alfa",
	"item_code":  "cod_alfa",
	"price":      "price",
	"precio":     "price",
	"unit_price": "price",
	"quantity":   "quantity",
	"cantidad":   "quantity",
	"qty":        "quantity",
}

var requiredColumns = []string{"cod_alfa", "price", "quantity"}

// Parse reads the first sheet of an xlsx payload and returns its validated
// rows. Ingestion is all-or-nothing: a missing required column or any row
// with an empty code or a non-positive numeric value fails the whole batch.
func Parse(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errorbank.BadRequest("no se pudo leer el archivo .xlsx", errorbank.WithCause(err))
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errorbank.BadRequest("el archivo no tiene hojas")
	}
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, errorbank.BadRequest("no se pudo leer la hoja", errorbank.WithCause(err))
	}
	if len(raw) == 0 {
		return nil, missingColumnsErr(requiredColumns)
	}

	cols := mapHeader(raw[0])
	if missing := missingColumns(cols); len(missing) > 0 {
		return nil, missingColumnsErr(missing)
	}

	var (
		rows []Row
		bad  []BadRow
	)
	for i, cells := range raw[1:] {
		cod := strings.TrimSpace(cell(cells, cols["cod_alfa"]))
		priceText := cell(cells, cols["price"])
		qtyText := cell(cells, cols["quantity"])
		if cod == "" && strings.TrimSpace(priceText) == "" && strings.TrimSpace(qtyText) == "" {
			continue
		}

		price, priceOK := numparse.Parse(priceText)
		qty, qtyOK := numparse.Parse(qtyText)
		if cod == "" || !priceOK || !qtyOK || price <= 0 || qty <= 0 {
			bad = append(bad, BadRow{
				Fila:     i + 2, // 1-based, after the header
				CodAlfa:  cod,
				Precio:   priceText,
				Cantidad: qtyText,
			})
			continue
		}

		rows = append(rows, Row{CodAlfa: cod, Precio: price, Cantidad: qty})
	}

	if len(bad) > 0 {
		return nil, errorbank.BadRequest(
			"Hay valores inválidos (price/quantity deben ser numéricos y > 0).",
			errorbank.WithDetail("bad", bad),
		)
	}

	return rows, nil
}

// Codes returns the distinct item codes of rows, in first-seen order.
func Codes(rows []Row) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.CodAlfa]; ok {
			continue
		}
		seen[r.CodAlfa] = struct{}{}
		out = append(out, r.CodAlfa)
	}
	return out
}

func mapHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		canonical, ok := columnAliases[name]
		if !ok {
			continue
		}
		if _, dup := cols[canonical]; !dup {
			cols[canonical] = i
		}
	}
	return cols
}

func missingColumns(cols map[string]int) []string {
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

func missingColumnsErr(missing []string) error {
	return errorbank.BadRequest(
		fmt.Sprintf("Faltan columnas: %s", strings.Join(missing, ", ")),
		errorbank.WithDetail("missing", missing),
	)
}

// cell reads a cell by index with blank-default for short rows.
func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
