// Unix signal handling for graceful shutdown.

//go:build !windows

package main

import (
	"os"
	"syscall"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// shutdownSignals are the signals that stop the daemon. SIGTERM is what
// systemd and container runtimes send.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
