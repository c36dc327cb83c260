package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/goalboard/internal/buildinfo"
	"github.com/dmitrijs2005/goalboard/internal/server"
)

func main() {
	ctx := context.Background()

	cmd := server.NewCommand()
	cmd.Version = buildinfo.String()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
