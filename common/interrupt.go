package common

import (
	"os"
	"os/signal"
	"syscall"
)

// Interrupted returns a channel that receives on SIGINT, SIGTERM, or
// SIGQUIT. Daemon run loops select on it for shutdown.
func Interrupted() <-chan os.Signal {
	interrupt := make(chan os.Signal, 2)
	signal.Notify(interrupt,
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGQUIT,
	)
	return interrupt
}
