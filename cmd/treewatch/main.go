// Package main provides the entry point for the treewatch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/treewatch/cmd/treewatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
