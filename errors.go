package fastagi

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrHangup is a sentinel error for a hung-up channel. Connection does
// not return or store it: an observed HANGUP line sets a sticky flag
// instead, which Connection.Send does not treat as an error; see
// Connection.Hungup.
var ErrHangup = errors.New("hangup")

// ErrUnsolicitedStatus is returned when a Status line arrives on a
// connection before any command has been sent. Open Question 3 of
// SPEC_FULL.md decides this is a protocol error.
var ErrUnsolicitedStatus = errors.New("status reply received before any command was sent")

// ErrNoRoute indicates the router found no handler matching the
// handshake's request URI.
var ErrNoRoute = errors.New("no route for request")

// NotAStatusError indicates a line was expected to be a command reply
// (Status) but did not match the status grammar and was not a Hangup.
// It carries the offending decoded line for diagnostics.
type NotAStatusError struct {
	Message string
}

func (e *NotAStatusError) Error() string {
	return fmt.Sprintf("not a status reply: %q", e.Message)
}

// NotAVariableDumpError indicates a block of lines terminated by a blank
// line did not parse as a valid agi_* variable dump.
type NotAVariableDumpError struct {
	Reason string
}

func (e *NotAVariableDumpError) Error() string {
	return fmt.Sprintf("not a variable dump: %s", e.Reason)
}

// NotAnAGIMessageError indicates a line matched none of NetworkStart,
// Status, or Hangup.
type NotAnAGIMessageError struct {
	Line string
}

func (e *NotAnAGIMessageError) Error() string {
	return fmt.Sprintf("not an AGI message: %q", e.Line)
}

// VariableDumpWithoutRequestError indicates a variable dump was missing
// both agi_network_script and agi_request, either of which is required
// to identify the handler to dispatch to.
type VariableDumpWithoutRequestError struct{}

func (e *VariableDumpWithoutRequestError) Error() string {
	return "variable dump has neither agi_network_script nor agi_request"
}

// NetworkStartAfterOtherMessageError indicates a NetworkStart line
// arrived after the handshake had already progressed past it, which
// violates the sequencing invariant in spec.md §3.3.
type NetworkStartAfterOtherMessageError struct{}

func (e *NetworkStartAfterOtherMessageError) Error() string {
	return "agi_network: yes received after handshake had already progressed"
}

// ReadError wraps a failure to read a complete message from the
// underlying socket, including EOF observed mid-message.
type ReadError struct {
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read error: %v", e.Cause)
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}

// AGIError is the handler-level error of spec.md §7. It either carries
// a wrapped cause (InnerError) or marks a reply whose status code was
// not the expected 200 (Not200). The Connection methods return Not200
// replies as AGIError; parse and I/O failures reach the handler as
// their own types (ReadError, NotAStatusError, ...), which a handler
// may wrap with InnerError.
type AGIError struct {
	// Inner is the wrapped cause set by InnerError.
	Inner error

	// Status, when non-nil, is the unexpected reply that triggered
	// Not200.
	Status *Status
}

func (e *AGIError) Error() string {
	switch {
	case e.Status != nil:
		return fmt.Sprintf("agi: expected 200, got %d result=%d", e.Status.Code, e.Status.Result)
	case e.Inner != nil:
		return fmt.Sprintf("agi: %v", e.Inner)
	default:
		return "agi: unknown error"
	}
}

func (e *AGIError) Unwrap() error {
	return e.Inner
}

// Not200 builds an AGIError marking an unexpected (non-200) reply.
func Not200(s Status) error {
	return &AGIError{Status: &s}
}

// InnerError wraps a handler-supplied fault as an AGIError.
func InnerError(cause error) error {
	return &AGIError{Inner: cause}
}
