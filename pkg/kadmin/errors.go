package kadmin

import (
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kerr"
)

var (
	// ErrCoreShuttingDown is returned synchronously by Submit once the
	// submission queue has been sealed by Close.
	ErrCoreShuttingDown = errors.New("admin core is shutting down; the submission queue is sealed")

	// ErrUnknownCorrelationID is logged (and the owning connection is
	// disconnected) when the NetworkClient reports a response for a
	// correlation id the Worker never issued. This indicates protocol
	// corruption or a NetworkClient bug, never a Call bug.
	ErrUnknownCorrelationID = errors.New("response carried a correlation id that was never issued")

	// ErrRequestBuildFailed wraps a panic-free failure of Call.CreateRequest.
	ErrRequestBuildFailed = errors.New("internal error building request")

	// ErrDowngradeLadderExhausted is delivered when a Call has already
	// spent its allotted unsupported-version downgrades (see
	// downgradeBudget) and hits another UnsupportedVersion error, or
	// when its OnUnsupportedVersion hook declines to downgrade.
	ErrDowngradeLadderExhausted = errors.New("exhausted the known protocol downgrade ladder")
)

// TimeoutError is the terminal error delivered when a Call's deadline
// passes, whether it was still pending, queued to a node, or aborted
// in flight.
type TimeoutError struct {
	CallName string
	Reason   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out (%s)", e.CallName, e.Reason)
}

// DisconnectError is delivered when a Call's connection closes while a
// response is outstanding and no AuthenticationException explains why.
type DisconnectError struct {
	CallName      string
	CorrelationID int32
	NodeID        int32
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("cancelled %s (correlation id %d) because node %d disconnected",
		e.CallName, e.CorrelationID, e.NodeID)
}

// ShutdownError is delivered to every Call still outstanding when the
// hard-shutdown deadline trips.
type ShutdownError struct{ CallName string }

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("%s: admin core shut down before a response arrived", e.CallName)
}

// UnsupportedVersionError is delivered when the negotiated protocol
// version for a Call's request key is lower than every version the Call
// knows how to speak, or when a server explicitly rejects the version
// used.
type UnsupportedVersionError struct {
	CallName string
	Key      int16
	Version  int16
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("%s: unsupported version %d for request key %d", e.CallName, e.Version, e.Key)
}

// retriable reports whether err should be retried per §7's taxonomy:
// transient network errors, disconnects, and any *kerr.Error flagged
// Retriable are retriable; everything else (auth failures, timeouts,
// shutdown, internal errors) is terminal.
func retriable(err error) bool {
	if err == nil {
		return false
	}
	var kerrErr *kerr.Error
	if errors.As(err, &kerrErr) {
		return kerrErr.Retriable
	}
	var disc *DisconnectError
	if errors.As(err, &disc) {
		return true
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return false
	}
	var shutdown *ShutdownError
	if errors.As(err, &shutdown) {
		return false
	}
	if errors.Is(err, ErrUnknownCorrelationID) || errors.Is(err, ErrRequestBuildFailed) {
		return false
	}
	if errors.Is(err, ErrConnDead) || errors.Is(err, ErrBrokerUnavailable) {
		return true
	}
	return false
}

var (
	// ErrConnDead is a retriable error a NetworkClient implementation
	// may return from Send/Poll when a connection died mid-write.
	ErrConnDead = errors.New("connection is dead")
	// ErrBrokerUnavailable is a retriable error for a node the
	// NetworkClient cannot currently reach.
	ErrBrokerUnavailable = errors.New("broker currently unavailable")
)
