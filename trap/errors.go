package trap

import (
	"errors"
	"fmt"

	"omibyte.io/rvk/arch"
)

var (
	ErrBadEPC       = errors.New("invalid trap program counter")
	ErrReentrant    = errors.New("re-entrant trap")
	ErrException    = errors.New("unrecoverable exception")
	ErrUnhandledIRQ = errors.New("unhandled interrupt")
)

// Fault is the panic value of a fatal trap. The kernel has no fault domain to
// recover into, so nothing is expected to catch it outside of tests and the
// host machine model.
type Fault struct {
	Hart  uint32
	Cause arch.Cause
	EPC   uint32
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("hart %d: %v (%s, epc %#08x)", f.Hart, f.Err, f.Cause, f.EPC)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
