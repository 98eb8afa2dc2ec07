package rft

import "errors"

// Sentinel errors returned by the codec and by callers that need to
// distinguish "malformed frame" from other I/O failures with errors.Is.
var (
	// ErrShortFrame is returned by Decode when the buffer is shorter than
	// the fixed header.
	ErrShortFrame = errors.New("rft: frame shorter than header")

	// ErrConnRefused marks a transport error that should be treated like a
	// timeout during handshake retry (see spec section 4.3): the peer isn't
	// listening yet, so the caller just resends.
	ErrConnRefused = errors.New("rft: connection refused")
)

// ProtocolError signals that an incoming segment must be rejected and the
// caller should keep looping rather than treat the condition as fatal. It
// always carries a short, loggable reason.
type ProtocolError struct {
	reason string
}

func newProtocolError(reason string) *ProtocolError {
	return &ProtocolError{reason: reason}
}

func (e *ProtocolError) Error() string { return "rft: reject segment: " + e.reason }

// Reject errors produced by packet validation, named so the handshake,
// sender and receiver packages can log a consistent reason for every
// silently-dropped packet rather than a one-off string each.
var (
	ErrUnexpectedFlags = newProtocolError("unexpected flag combination")
	ErrSeqOutOfWindow  = newProtocolError("sequence number outside forward window")
	ErrBadWindowSize   = newProtocolError("advertised window exceeds SeqHalf")
)
