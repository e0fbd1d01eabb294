package order

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/brandatta/comex-vicomx/internal/clock"
	"github.com/brandatta/comex-vicomx/internal/config"
	"github.com/brandatta/comex-vicomx/internal/database"
	"github.com/brandatta/comex-vicomx/internal/dto"
	"github.com/brandatta/comex-vicomx/internal/entity"
	"github.com/brandatta/comex-vicomx/internal/messaging"
	articlerepo "github.com/brandatta/comex-vicomx/internal/repository/article"
	repo "github.com/brandatta/comex-vicomx/internal/repository/order"
	statusrepo "github.com/brandatta/comex-vicomx/internal/repository/status"
	"github.com/brandatta/comex-vicomx/internal/testutil"
	"github.com/brandatta/comex-vicomx/pkg/errorbank"
)

// capturingClient records published events in place of a broker.
type capturingClient struct {
	mu     sync.Mutex
	events [][]byte
}

func (c *capturingClient) Publish(_ context.Context, _ []byte, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, append([]byte(nil), value...))
	return nil
}

func (c *capturingClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *capturingClient) Topic() string { return "comex.pedidos.events" }

func testConfig() config.Config {
	cfg := config.Config{}
	cfg.Comex = config.Comex{
		OrderPrefix:       "COMEX",
		DefaultStatusID:   1,
		Timezone:          "America/Argentina/Buenos_Aires",
		IndexDefaultLimit: 2000,
		NumberRetries:     5,
	}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "comex.pedidos.events"
	return cfg
}

func newTestService(t *testing.T, conns *database.Connections, publisher messaging.Client) *Service {
	t.Helper()

	fixed := clock.Fixed(time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC))
	return NewService(Params{
		Orders:    repo.NewRepository(conns),
		Articles:  articlerepo.NewRepository(conns),
		Statuses:  statusrepo.NewRepository(conns),
		Clock:     fixed,
		Config:    testConfig(),
		Logger:    zap.NewNop(),
		Publisher: publisher,
	})
}

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func seedSuppliers(t *testing.T, conns *database.Connections) {
	t.Helper()
	testutil.SeedEstados(t, conns, map[int]string{1: "Generado", 2: "Aprobado"})
	testutil.SeedArticulo(t, conns, "ART-0001", 1001, "Proveedor Uno SA")
	testutil.SeedArticulo(t, conns, "ART-0002", 1001, "Proveedor Uno SA")
	testutil.SeedArticulo(t, conns, "ART-0003", 2002, "Proveedor Dos SRL")
}

func TestPreviewMergesAndSummarizes(t *testing.T) {
	conns := testutil.NewDB(t)
	seedSuppliers(t, conns)
	svc := newTestService(t, conns, &capturingClient{})

	buf := buildWorkbook(t, [][]any{
		{"cod_alfa", "price", "quantity"},
		{"ART-0001", "10", "2"},
		{"ART-0003", "5", "4"},
		{"ART-9999", "1", "1"},
	})

	result, err := svc.Preview(context.Background(), buf)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if len(result.Merged) != 3 {
		t.Fatalf("merged = %d rows, want 3", len(result.Merged))
	}
	if result.Merged[0].Proveedor == nil || *result.Merged[0].Proveedor != 1001 {
		t.Fatalf("first merged row supplier = %v", result.Merged[0].Proveedor)
	}

	if len(result.Sin) != 1 || result.Sin[0].CodAlfa != "ART-9999" {
		t.Fatalf("sin = %+v, want the unmapped code", result.Sin)
	}

	// Unresolved group sorts first, then suppliers ascending.
	if len(result.Resumen) != 3 {
		t.Fatalf("resumen = %d rows, want 3", len(result.Resumen))
	}
	if result.Resumen[0].Proveedor != nil {
		t.Fatalf("first summary row should be the unresolved group, got %+v", result.Resumen[0])
	}
	if *result.Resumen[1].Proveedor != 1001 || *result.Resumen[2].Proveedor != 2002 {
		t.Fatalf("summary order = %+v", result.Resumen)
	}
	if result.Resumen[1].Items != 1 || result.Resumen[1].CantidadTotal != 2 || result.Resumen[1].STUSD != 20 {
		t.Fatalf("supplier 1001 summary = %+v", result.Resumen[1])
	}
}

func TestPreviewEmptySinIsNotNil(t *testing.T) {
	conns := testutil.NewDB(t)
	seedSuppliers(t, conns)
	svc := newTestService(t, conns, &capturingClient{})

	buf := buildWorkbook(t, [][]any{
		{"cod_alfa", "price", "quantity"},
		{"ART-0001", "10", "2"},
	})

	result, err := svc.Preview(context.Background(), buf)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if result.Sin == nil || len(result.Sin) != 0 {
		t.Fatalf("sin = %#v, want empty non-nil slice", result.Sin)
	}
}

func TestGenerateGroupsPerSupplier(t *testing.T) {
	conns := testutil.NewDB(t)
	seedSuppliers(t, conns)
	publisher := &capturingClient{}
	svc := newTestService(t, conns, publisher)

	buf := buildWorkbook(t, [][]any{
		{"cod_alfa", "price", "quantity"},
		{"ART-0001", "10", "2"},
		{"ART-0002", "1.234,56", "1"},
		{"ART-0003", "5", "4"},
	})

	result, err := svc.Generate(context.Background(), buf, "ana@vicomx.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if result.Message != "Pedidos Generados y registrados en vicomx" {
		t.Fatalf("message = %q", result.Message)
	}
	if len(result.Created) != 2 {
		t.Fatalf("created = %d orders, want 2", len(result.Created))
	}
	if result.Created[0].Proveedor != 1001 || result.Created[1].Proveedor != 2002 {
		t.Fatalf("created order suppliers = %+v", result.Created)
	}
	for _, c := range result.Created {
		if !strings.HasPrefix(c.Pedido, "COMEX-P") {
			t.Fatalf("order number %q lacks prefix", c.Pedido)
		}
		if c.Estado != "Generado" {
			t.Fatalf("initial estado = %q", c.Estado)
		}
	}

	var lines []entity.OrderLine
	if err := conns.Reader.NewSelect().Model(&lines).
		Where("NUMERO = ?", result.Created[0].Pedido).
		Order("ITEM ASC").Scan(context.Background()); err != nil {
		t.Fatalf("load lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("supplier 1001 lines = %d, want 2", len(lines))
	}
	for i, l := range lines {
		if l.Item != i+1 {
			t.Fatalf("line %d has ITEM %d", i, l.Item)
		}
		if l.App != entity.SourceTag || l.ProcSAP != 0 || l.SAPReady != "N" {
			t.Fatalf("line flags = %+v", l)
		}
		if l.UserEmail != "ana@vicomx.com" {
			t.Fatalf("line actor = %q", l.UserEmail)
		}
	}
	if lines[1].Precio != 1234.56 {
		t.Fatalf("locale-parsed price = %v", lines[1].Precio)
	}

	var entries []entity.StatusEntry
	if err := conns.Reader.NewSelect().Model(&entries).Scan(context.Background()); err != nil {
		t.Fatalf("load status entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("status entries = %d, want one per order", len(entries))
	}
	for _, e := range entries {
		if e.Estado != "Generado" || e.Usr != "ana@vicomx.com" {
			t.Fatalf("status entry = %+v", e)
		}
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.events) != 2 {
		t.Fatalf("published events = %d, want 2", len(publisher.events))
	}
}

func TestGenerateBlockedByUnresolved(t *testing.T) {
	conns := testutil.NewDB(t)
	seedSuppliers(t, conns)
	svc := newTestService(t, conns, &capturingClient{})

	buf := buildWorkbook(t, [][]any{
		{"cod_alfa", "price", "quantity"},
		{"ART-0001", "10", "2"},
		{"ART-9999", "1", "1"},
	})

	_, err := svc.Generate(context.Background(), buf, "ana@vicomx.com")
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) || appErr.Kind() != errorbank.KindBadRequest {
		t.Fatalf("want bad_request, got %v", err)
	}
	sin, ok := appErr.Details()["sin"].([]dto.UnresolvedItem)
	if !ok || len(sin) != 1 || sin[0].CodAlfa != "ART-9999" {
		t.Fatalf("sin detail = %v", appErr.Details()["sin"])
	}

	count, err := conns.Reader.NewSelect().Model((*entity.OrderLine)(nil)).Count(context.Background())
	if err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if count != 0 {
		t.Fatalf("lines persisted despite unresolved items: %d", count)
	}
}

func TestGenerateRequiresUser(t *testing.T) {
	conns := testutil.NewDB(t)
	svc := newTestService(t, conns, &capturingClient{})

	_, err := svc.Generate(context.Background(), bytes.NewBuffer(nil), "")
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) || appErr.Kind() != errorbank.KindBadRequest {
		t.Fatalf("want bad_request, got %v", err)
	}
}

func TestGenerateFailsWithoutDefaultStatus(t *testing.T) {
	conns := testutil.NewDB(t)
	// Suppliers mapped, but the estado vocabulary row is missing.
	testutil.SeedArticulo(t, conns, "ART-0001", 1001, "Proveedor Uno SA")
	svc := newTestService(t, conns, &capturingClient{})

	buf := buildWorkbook(t, [][]any{
		{"cod_alfa", "price", "quantity"},
		{"ART-0001", "10", "2"},
	})

	_, err := svc.Generate(context.Background(), buf, "ana@vicomx.com")
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) || appErr.Kind() != errorbank.KindInternal {
		t.Fatalf("want internal error, got %v", err)
	}

	count, err := conns.Reader.NewSelect().Model((*entity.OrderLine)(nil)).Count(context.Background())
	if err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if count != 0 {
		t.Fatalf("transaction leaked %d lines", count)
	}
}

func TestSaveLinesRejectsInvalidBatch(t *testing.T) {
	conns := testutil.NewDB(t)
	seedSuppliers(t, conns)
	svc := newTestService(t, conns, &capturingClient{})

	buf := buildWorkbook(t, [][]any{
		{"cod_alfa", "price", "quantity"},
		{"ART-0001", "10", "2"},
		{"ART-0002", "20", "3"},
	})
	result, err := svc.Generate(context.Background(), buf, "ana@vicomx.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	numero := result.Created[0].Pedido

	err = svc.SaveLines(context.Background(), numero, []dto.LineEdit{
		{Item: 1, Cantidad: 5.0, Precio: 11.0},
		{Item: 2, Cantidad: "abc", Precio: 22.0},
	})
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) || appErr.Kind() != errorbank.KindBadRequest {
		t.Fatalf("want bad_request, got %v", err)
	}

	lines, err := svc.Lines(context.Background(), numero)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if lines[0].Cantidad != 2 || lines[0].Precio != 10 {
		t.Fatalf("rejected batch still mutated line 1: %+v", lines[0])
	}
}

func TestSaveLinesAppliesEdits(t *testing.T) {
	conns := testutil.NewDB(t)
	seedSuppliers(t, conns)
	svc := newTestService(t, conns, &capturingClient{})

	buf := buildWorkbook(t, [][]any{
		{"cod_alfa", "price", "quantity"},
		{"ART-0001", "10", "2"},
	})
	result, err := svc.Generate(context.Background(), buf, "ana@vicomx.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	numero := result.Created[0].Pedido

	err = svc.SaveLines(context.Background(), numero, []dto.LineEdit{
		{Item: 1, Cantidad: "7,5", Precio: "1.200,50"},
	})
	if err != nil {
		t.Fatalf("SaveLines: %v", err)
	}

	lines, err := svc.Lines(context.Background(), numero)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if lines[0].Cantidad != 7.5 || lines[0].Precio != 1200.50 {
		t.Fatalf("edited line = %+v", lines[0])
	}
}

func TestSaveLinesRejectsEmptyPayload(t *testing.T) {
	conns := testutil.NewDB(t)
	svc := newTestService(t, conns, &capturingClient{})

	err := svc.SaveLines(context.Background(), "COMEX-P1-X", nil)
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) || appErr.Kind() != errorbank.KindBadRequest {
		t.Fatalf("want bad_request, got %v", err)
	}
}

func TestIndexJoinsCurrentStatus(t *testing.T) {
	conns := testutil.NewDB(t)
	seedSuppliers(t, conns)
	svc := newTestService(t, conns, &capturingClient{})

	ctx := context.Background()
	insertLine := func(numero, cliente, rs, ts string, item int) {
		t.Helper()
		if _, err := conns.Writer.NewInsert().Model(&entity.OrderLine{
			Numero: numero, Cliente: cliente, CodAlfa: "ART-0001",
			Cantidad: 1, Precio: 1, RS: rs, Item: item,
			App: entity.SourceTag, SAPReady: "N", UserEmail: "ana@vicomx.com", TS: ts,
		}).Exec(ctx); err != nil {
			t.Fatalf("insert line: %v", err)
		}
	}

	insertLine("PED-A", "1001", "Proveedor Uno SA", "2025-03-14 10:00:00", 1)
	insertLine("PED-B", "2002", "Proveedor Dos SRL", "2025-03-14 12:00:00", 1)

	// Two entries with the same ts: the higher id must win.
	for _, estado := range []string{"Generado", "Aprobado"} {
		if _, err := conns.Writer.NewInsert().Model(&entity.StatusEntry{
			Pedido: "PED-B", Estado: estado, TS: "2025-03-14 12:00:00", Usr: "ana@vicomx.com",
		}).Exec(ctx); err != nil {
			t.Fatalf("insert status: %v", err)
		}
	}

	rows, err := svc.Index(ctx, 0)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("index rows = %d, want 2", len(rows))
	}
	if rows[0].Pedido != "PED-B" {
		t.Fatalf("most recent order first, got %+v", rows)
	}
	if rows[0].EstadoTexto == nil || *rows[0].EstadoTexto != "Aprobado" {
		t.Fatalf("tie-break picked %v, want Aprobado", rows[0].EstadoTexto)
	}
	if rows[1].EstadoTexto != nil {
		t.Fatalf("order without ledger entry must have nil estado, got %v", *rows[1].EstadoTexto)
	}
}

func TestSummarizeAggregates(t *testing.T) {
	prov := int64(1001)
	nombre := "Proveedor Uno SA"
	merged := []dto.MergedRow{
		{CodAlfa: "A", Precio: 10, Cantidad: 2, Proveedor: &prov, Nombre: &nombre},
		{CodAlfa: "B", Precio: 5, Cantidad: 1, Proveedor: &prov, Nombre: &nombre},
		{CodAlfa: "C", Precio: 3, Cantidad: 4},
	}

	rows := summarize(merged)
	if len(rows) != 2 {
		t.Fatalf("summary rows = %d, want 2", len(rows))
	}
	if rows[0].Proveedor != nil {
		t.Fatalf("nil-supplier group must sort first: %+v", rows)
	}
	got := rows[1]
	want := dto.SummaryRow{Proveedor: &prov, RazonSocial: &nombre, Items: 2, CantidadTotal: 3, STUSD: 25}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("supplier summary = %+v, want %+v", got, want)
	}
}

func TestGroupBySupplierPreservesRowOrder(t *testing.T) {
	p1, p2 := int64(1001), int64(2002)
	n1, n2 := "Uno", "Dos"
	merged := []dto.MergedRow{
		{CodAlfa: "A", Proveedor: &p1, Nombre: &n1},
		{CodAlfa: "B", Proveedor: &p2, Nombre: &n2},
		{CodAlfa: "C", Proveedor: &p1, Nombre: &n1},
	}

	groups := groupBySupplier(merged)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].cliente != p1 || len(groups[0].rows) != 2 {
		t.Fatalf("first group = %+v", groups[0])
	}
	if groups[0].rows[0].CodAlfa != "A" || groups[0].rows[1].CodAlfa != "C" {
		t.Fatalf("row order not preserved: %+v", groups[0].rows)
	}
}
