// Package clock provides the organizational-timezone clock used for order
// timestamps and order-number generation. Timestamps are stored as DATETIME
// strings, so both formats here must stay stable.
package clock

import (
	"time"

	"go.uber.org/fx"

	"github.com/brandatta/comex-vicomx/internal/config"
)

const (
	sqlLayout     = "2006-01-02 15:04:05"
	compactLayout = "20060102-150405"
)

// Clock yields wall-clock time in the configured organizational timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// Module provides the Clock to the Fx graph.
var Module = fx.Provide(New)

// New builds a Clock for the configured timezone.
func New(cfg config.Config) (*Clock, error) {
	loc, err := time.LoadLocation(cfg.Comex.Timezone)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// Fixed returns a Clock pinned to a single instant, for tests.
func Fixed(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Now returns the current time in the organizational timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// SQL formats the current time as a MySQL DATETIME string.
func (c *Clock) SQL() string {
	return c.Now().Format(sqlLayout)
}

// Compact formats the current time for embedding in order numbers.
func (c *Clock) Compact() string {
	return c.Now().Format(compactLayout)
}
