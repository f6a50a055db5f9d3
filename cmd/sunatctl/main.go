package main

import (
	"os"

	"github.com/jhoicas/facturacion-sunat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
