package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
)

// FailureKind is the closed set of ways a probe run can end early. Callers
// branch on the kind instead of parsing error strings.
type FailureKind int

const (
	KindOther FailureKind = iota
	KindConnectionRefused
	KindConnectionClosed
	KindDecode
	KindTimeout
)

func (k FailureKind) String() string {
	switch k {
	case KindConnectionRefused:
		return "connection refused"
	case KindConnectionClosed:
		return "connection closed"
	case KindDecode:
		return "decode error"
	case KindTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Failure is the terminal error of a probe run.
type Failure struct {
	Kind FailureKind
	Err  error
}

var _ error = (*Failure)(nil)

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure classifies err and wraps it.
func NewFailure(err error) *Failure {
	return &Failure{Kind: Classify(err), Err: err}
}

// Classify maps transport, decode and socket errors into the failure kinds.
// Exported so tests can assert on the mapping directly.
func Classify(err error) FailureKind {
	if err == nil {
		return KindOther
	}
	var closeErr *websocket.CloseError
	var netErr net.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return KindDecode
	case errors.As(err, &closeErr):
		// Covers both clean close frames and gorilla's synthesized 1006
		// for connections dropped without a close handshake.
		return KindConnectionClosed
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return KindConnectionClosed
	default:
		return KindOther
	}
}
