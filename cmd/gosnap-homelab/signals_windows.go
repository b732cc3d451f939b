//go:build windows

package main

import (
	"os"
	"syscall"
)

var (
	shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	reloadSignals   []os.Signal
	forceSignals    []os.Signal
)
