package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/brandatta/comex-vicomx/internal/clock"
	"github.com/brandatta/comex-vicomx/internal/config"
	statusrepo "github.com/brandatta/comex-vicomx/internal/repository/status"
	service "github.com/brandatta/comex-vicomx/internal/service/status"
	"github.com/brandatta/comex-vicomx/internal/testutil"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()

	conns := testutil.NewDB(t)
	testutil.SeedEstados(t, conns, map[int]string{1: "Generado", 2: "Aprobado"})

	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute

	svc := service.NewService(service.Params{
		Repository: statusrepo.NewRepository(conns),
		Cache:      nil,
		Clock:      clock.Fixed(time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)),
		Config:     cfg,
		Logger:     zap.NewNop(),
	})

	e := echo.New()
	Register(e, NewHandler(svc))
	return e
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func postEstado(e *echo.Echo, pedido, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/pedidos/"+pedido+"/estado", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestEstadosEndpoint(t *testing.T) {
	e := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/estados", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	estados, ok := decode(t, rec)["estados"].([]any)
	if !ok || len(estados) != 2 {
		t.Fatalf("estados = %v", estados)
	}
	first := estados[0].(map[string]any)
	if first["id"].(float64) != 1 || first["estado"] != "Generado" {
		t.Fatalf("first estado = %v", first)
	}
}

func TestRecordEstadoEndpoint(t *testing.T) {
	e := newServer(t)

	rec := postEstado(e, "PED-A", `{"estado_texto":"Aprobado","usr":"ana@vicomx.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["ok"] != true {
		t.Fatalf("ok = %v", body["ok"])
	}
	if _, dup := body["unchanged"]; dup {
		t.Fatalf("fresh transition flagged unchanged: %v", body)
	}

	// Recording the same estado again is an informational no-op.
	rec = postEstado(e, "PED-A", `{"estado_texto":"Aprobado","usr":"ana@vicomx.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body = decode(t, rec)
	if body["unchanged"] != true || body["message"] != "El pedido ya está en ese estado." {
		t.Fatalf("no-op body = %v", body)
	}
}

func TestRecordEstadoValidation(t *testing.T) {
	e := newServer(t)

	rec := postEstado(e, "PED-A", `{"estado_texto":"Aprobado"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing usr status = %d", rec.Code)
	}

	rec = postEstado(e, "PED-A", `{"usr":"ana@vicomx.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing estado_texto status = %d", rec.Code)
	}
}

func TestTrazabilidadEndpoint(t *testing.T) {
	e := newServer(t)

	for _, estado := range []string{"Generado", "Aprobado"} {
		rec := postEstado(e, "PED-A", `{"estado_texto":"`+estado+`","usr":"ana@vicomx.com"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("record %s status = %d", estado, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pedidos/PED-A/trazabilidad", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rows, ok := decode(t, rec)["trazabilidad"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("trazabilidad = %v", rows)
	}
	first := rows[0].(map[string]any)
	if first["estado"] != "Generado" {
		t.Fatalf("chronological order broken: %v", rows)
	}
}

func TestTrazabilidadEmptyForUnknownOrder(t *testing.T) {
	e := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/pedidos/NOPE/trazabilidad", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rows, ok := decode(t, rec)["trazabilidad"].([]any)
	if !ok || len(rows) != 0 {
		t.Fatalf("trazabilidad = %v", rows)
	}
}
