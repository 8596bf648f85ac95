package main

import (
	"os"

	"github.com/karvarun/karva/internal/karvacli"
)

func main() {
	os.Exit(karvacli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
