//go:build windows

package fibers

import (
	"os"
)

// defaultInterruptSignal is the signal armed by [WithInterrupt].
var defaultInterruptSignal os.Signal = os.Interrupt
