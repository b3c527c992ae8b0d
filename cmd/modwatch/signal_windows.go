// Windows signal handling for graceful shutdown.

//go:build windows

package main

import "os"

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// shutdownSignals are the signals that stop the daemon. Windows has no
// SIGTERM; the runtime maps Ctrl+Break and console close to os.Interrupt.
var shutdownSignals = []os.Signal{os.Interrupt}
