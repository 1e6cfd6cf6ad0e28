// Command vesting manages token vesting pools on a local SQLite ledger.
package main

import (
	"os"

	"github.com/roach88/vesting/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
