package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/brandatta/comex-vicomx/pkg/errorbank"
)

func run(t *testing.T, build func(b *Builder) error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := build(New(c)); err != nil {
		t.Fatalf("build: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestBuildSuccessEmitsDataAsIs(t *testing.T) {
	rec, body := run(t, func(b *Builder) error {
		return b.WithData(map[string]any{"ok": true, "rows": []int{1, 2}}).Build()
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
	if _, enveloped := body["data"]; enveloped {
		t.Fatalf("payload was enveloped: %v", body)
	}
}

func TestBuildErrorMergesDetails(t *testing.T) {
	rec, body := run(t, func(b *Builder) error {
		return b.WithError(errorbank.BadRequest("Faltan columnas: price",
			errorbank.WithDetail("missing", []string{"price"}))).Build()
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["error"] != "Faltan columnas: price" {
		t.Fatalf("error = %v", body["error"])
	}
	missing, ok := body["missing"].([]any)
	if !ok || len(missing) != 1 || missing[0] != "price" {
		t.Fatalf("missing detail = %v", body["missing"])
	}
}

func TestBuildErrorDetailCannotShadowMessage(t *testing.T) {
	_, body := run(t, func(b *Builder) error {
		return b.WithError(errorbank.BadRequest("mensaje",
			errorbank.WithDetail("error", "shadow"))).Build()
	})
	if body["error"] != "mensaje" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestBuildUnknownErrorIsInternal(t *testing.T) {
	rec, body := run(t, func(b *Builder) error {
		return b.WithError(errorbank.Internal("DB error")).Build()
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["error"] != "DB error" {
		t.Fatalf("error = %v", body["error"])
	}
}
