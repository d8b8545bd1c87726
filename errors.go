package lazyarray

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Domain error kinds (spec §7). All are sentinels so callers can compare
// with errors.Is; none are retried internally.
var (
	ErrIndexOutOfRange         = errors.New("lazyarray: index out of range")
	ErrIncompatibleVersion     = errors.New("lazyarray: incompatible version")
	ErrBadHeader               = errors.New("lazyarray: bad header")
	ErrBadRecord               = errors.New("lazyarray: bad record")
	ErrReadChunkLimitExceeded  = errors.New("lazyarray: read chunk limit exceeded")
	ErrWriteChunkLimitExceeded = errors.New("lazyarray: write chunk limit exceeded")
	ErrUnsupportedLayout       = errors.New("lazyarray: unsupported layout")
)

// IOFailure wraps an underlying filesystem error encountered while
// performing op. The wrapped error carries a stack trace captured at the
// point of failure (via github.com/pkg/errors), which %+v formatting on Err
// will print.
type IOFailure struct {
	Op  string
	Err error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("lazyarray: %s: %v", e.Op, e.Err)
}

func (e *IOFailure) Unwrap() error {
	return e.Err
}

func wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOFailure{Op: op, Err: pkgerrors.WithStack(err)}
}
