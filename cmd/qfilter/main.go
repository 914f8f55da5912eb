package main

import (
	"os"

	"github.com/nonibytes/qfilter/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
