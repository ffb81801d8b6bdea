package main

import (
	"os"

	"clientes-service/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
