//go:build !windows

package main

import (
	"os"
	"syscall"
)

var (
	shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	reloadSignals   = []os.Signal{syscall.SIGHUP}
	forceSignals    = []os.Signal{syscall.SIGUSR1}
)
