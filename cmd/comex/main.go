package main

import (
	"os"

	"github.com/brandatta/comex-vicomx/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
