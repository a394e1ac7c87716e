// File: cmd/numabench/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// numabench drives a numapool with a matrix-multiply workload and reports
// throughput together with scheduler counters.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
