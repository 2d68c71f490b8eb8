package main

import (
	"os"

	"github.com/koltyakov/snare/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
