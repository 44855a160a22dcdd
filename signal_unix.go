//go:build unix

package fibers

import (
	"os"

	"golang.org/x/sys/unix"
)

// defaultInterruptSignal is the signal armed by [WithInterrupt].
var defaultInterruptSignal os.Signal = unix.SIGINT
