package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brandatta/comex-vicomx/pkg/errorbank"
)

// Builder helps construct consistent HTTP responses. Success payloads are
// emitted as-is (the UI consumes the original wire shapes); errors become
// an {"error": ...} object with any error details merged at the top level.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches the success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.ctx.JSON(b.status, b.data)
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}

	payload := map[string]any{"error": appErr.Message()}
	for k, v := range appErr.Details() {
		if k == "error" {
			continue
		}
		payload[k] = v
	}

	return b.ctx.JSON(status, payload)
}
