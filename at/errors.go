package at

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates the operation's wall-clock budget expired before the
// expected token or terminator arrived. The control channel may still hold
// unread bytes of the abandoned reply; callers typically re-probe with
// IsReady before issuing further commands.
var ErrTimeout = errors.New("deadline expired waiting for module response")

// ErrResponseFailed indicates the module answered with an explicit failure
// terminator (ERROR, or FAIL for CWJAP) within the deadline.
var ErrResponseFailed = errors.New("module reported failure")

// ProtocolError reports a syntactically malformed module reply, such as an
// unparsable access-point tuple or an unknown enum wire code.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Msg
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}
