package transport

import (
	"context"
	"fmt"
)

// Client is the file-drop protocol contract. Implementations are selected
// once at construction: MockClient for development and tests, SFTPClient for
// the regulator's drop box. Callers never branch on the mode.
type Client interface {
	Upload(ctx context.Context, filename string, payload []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, filename string) ([]byte, error)
	Name() string
}

// Error wraps connectivity, auth, and timeout failures. Transport errors are
// retried a bounded number of times and never advance submission status past
// queued.
type Error struct {
	Op    string
	cause error
}

func NewError(op string, cause error) *Error {
	return &Error{Op: op, cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Response artifact filename suffixes in the outbound directory. The first
// artifact acknowledges the batch; the second carries confirmation ids.
const (
	AckSuffix          = ".STATUS"
	ConfirmationSuffix = ".CONFIRMED"
)
