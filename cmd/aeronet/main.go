// Command aeronet queries the AERONET web service with CQL2 filters.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/terradue/aeronet-go/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
