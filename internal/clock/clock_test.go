package clock

import (
	"testing"
	"time"

	"github.com/brandatta/comex-vicomx/internal/config"
)

func TestFixedFormats(t *testing.T) {
	c := Fixed(time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC))

	if got := c.SQL(); got != "2025-03-14 15:09:26" {
		t.Fatalf("SQL() = %q", got)
	}
	if got := c.Compact(); got != "20250314-150926" {
		t.Fatalf("Compact() = %q", got)
	}
}

func TestNewConvertsToConfiguredTimezone(t *testing.T) {
	cfg := config.Config{}
	cfg.Comex.Timezone = "America/Argentina/Buenos_Aires"

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Now().Location().String(); got != "America/Argentina/Buenos_Aires" {
		t.Fatalf("location = %q", got)
	}
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	cfg := config.Config{}
	cfg.Comex.Timezone = "Mars/Olympus_Mons"

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
