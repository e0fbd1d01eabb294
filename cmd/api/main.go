package main

import (
	"go.uber.org/fx"

	"github.com/brandatta/comex-vicomx/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
