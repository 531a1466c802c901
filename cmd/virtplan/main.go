package main

import (
	"os"

	"github.com/roach88/virtplan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
