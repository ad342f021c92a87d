// Command modpack-uploader publishes a modpack directory to object storage,
// or uploads individual files.
//
// Usage:
//
//	modpack-uploader [flags] publish
//	modpack-uploader [flags] upload <file>...
//
// Exit status is 0 on success (a partial upload counts as success), 1 when the
// run failed and 2 on configuration errors.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
