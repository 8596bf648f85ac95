package main

import (
	"os"

	"github.com/karvarun/karva/internal/workercli"
)

func main() {
	os.Exit(workercli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
