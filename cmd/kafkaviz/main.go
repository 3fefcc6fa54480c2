package main

import (
	"os"

	"kafkaviz/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
