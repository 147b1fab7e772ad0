// Package cos provides low-level shared types and utilities: error
// classification, unsafe byte/string conversions and ID generation used
// across the client, the pipeline and the server.
package cos

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/SpaceCafe/julea/cmn/debug"
)

// ErrNotFound is returned where a backend fails to locate its target
// (missing object, delete of an absent key).
type ErrNotFound struct {
	what string
}

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// Errs accumulates up to maxErrs distinct errors produced while executing
// the runs of a batch, so batch failure can be reported without losing
// every individual cause.
type Errs struct {
	mu   sync.Mutex
	errs []error
}

const maxErrs = 8

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return errors.Join(e.errs...)
}

// socket error classification. The connection pool discards whatever
// connection its caller pushes back as broken; of these it only uses
// IsErrConnectionReset, to keep an expected close error out of the log.

func IsRetriableConnErr(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

func IsErrConnectionReset(err error) bool   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) bool        { return errors.Is(err, syscall.EPIPE) }
func IsErrConnectionRefused(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }
