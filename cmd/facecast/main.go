// cmd/facecast/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Set at build time:
//
//	go build -ldflags "-X main.defaultAPIKey=... -X main.version=1.2.0" ./cmd/facecast
var (
	defaultAPIKey string
	version       = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, a.banner(root, err))
		a.close()
		os.Exit(1)
	}
	a.close()
}
