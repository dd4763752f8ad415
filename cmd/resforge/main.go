// Command resforge generates Go, SQL and OpenAPI artifacts from resource
// specs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "resforge/internal/profile/gogin"
	_ "resforge/internal/profile/openapi"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
