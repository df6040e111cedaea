package main

import (
	"os"
	"os/signal"
	"syscall"
)

// signals multiplexes the daemon's signal contract (SPEC_FULL.md 6)
// onto a single channel. Delivery is deferred to the event loop's
// select, not handled inline, so no signal handler ever touches state
// directly — matching preload.c's deferred-dispatch model.
func newSignalChan() chan os.Signal {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch,
		syscall.SIGHUP,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	signal.Ignore(syscall.SIGPIPE)
	return ch
}

// handleSignal applies one received signal's effect and reports whether
// the event loop should stop afterward.
func (d *daemon) handleSignal(sig os.Signal) (stop bool) {
	switch sig {
	case syscall.SIGHUP:
		d.reloadConfig(d.configPath)
	case syscall.SIGUSR1:
		d.dumpStats()
	case syscall.SIGUSR2:
		d.save()
	case syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
		d.save()
		return true
	}
	return false
}
