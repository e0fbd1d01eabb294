package article

import (
	"context"
	"testing"

	"github.com/brandatta/comex-vicomx/internal/testutil"
)

func TestLoadByCodes(t *testing.T) {
	conns := testutil.NewDB(t)
	testutil.SeedArticulo(t, conns, "ART-0001", 1001, "Proveedor Uno SA")
	testutil.SeedArticulo(t, conns, "ART-0002", 2002, "Proveedor Dos SRL")

	r := NewRepository(conns)
	got, err := r.LoadByCodes(context.Background(), []string{"ART-0001", "ART-9999"})
	if err != nil {
		t.Fatalf("LoadByCodes: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("resolved = %d codes, want 1", len(got))
	}
	a, ok := got["ART-0001"]
	if !ok || a.Proveedor != 1001 || a.Nombre != "Proveedor Uno SA" {
		t.Fatalf("article = %+v", a)
	}
	if _, ok := got["ART-9999"]; ok {
		t.Fatal("unmapped code must be absent from the map")
	}
}

func TestLoadByCodesEmptyInput(t *testing.T) {
	conns := testutil.NewDB(t)

	r := NewRepository(conns)
	got, err := r.LoadByCodes(context.Background(), nil)
	if err != nil {
		t.Fatalf("LoadByCodes: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got = %#v, want empty non-nil map", got)
	}
}
