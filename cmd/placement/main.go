// Package main is the entry point for the placement CLI.
package main

import (
	"context"
	"os"
	_ "time/tzdata"

	"github.com/roach88/placement/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
