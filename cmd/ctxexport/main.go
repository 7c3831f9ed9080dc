// Command ctxexport exports labelled Confluence pages and Jira issues.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/custodia-labs/ctxexport/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_, _ = maxprocs.Set()

	// Credentials may live in a .env file next to the working directory.
	_ = godotenv.Load()

	cli.SetVersion(version)
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
