// Package main provides the ragctl command-line client.
package main

import (
	"os"

	"github.com/aweiler/ragserve/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
