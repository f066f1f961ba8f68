package kadmin

import (
	"strconv"
	"time"
)

// Node is a member of the cluster the core can route a Call to.
type Node struct {
	ID   int32
	Addr string
	Port int32
	Rack *string
}

func (n Node) String() string {
	if n.Rack != nil {
		return n.Addr + " (rack " + *n.Rack + ")"
	}
	return n.Addr
}

// ClientResponse is one completed (or failed) attempt as reported by
// NetworkClient.Poll. Exactly one of Body, VersionMismatch, or
// Disconnected describes the outcome.
type ClientResponse struct {
	CorrelationID int32
	NodeID        int32

	Body Response

	// VersionMismatch is set when the destination rejected the
	// negotiated protocol version. kadmintransport's Pool also sets it
	// when a response body fails to decode; the Worker handles both as
	// an unsupported-version failure.
	VersionMismatch error

	// Disconnected is true when the connection closed before (or while)
	// a response arrived; CorrelationID still identifies which request
	// was cancelled.
	Disconnected bool
}

// NetworkClient is the external collaborator that owns sockets,
// connection pooling, and wire-level send/receive. The Worker only ever
// calls these methods from its own goroutine and never concurrently, so
// implementations need no internal locking against the Worker itself
// (they may of course need locking against their own background I/O).
//
// This mirrors Kafka's KafkaClient contract as consumed by
// AdminClientRunnable; see pkg/kadmintransport for a concrete
// implementation and any test's fakeNetworkClient for a minimal one.
type NetworkClient interface {
	// Ready reports whether node is connected and not backing off.
	Ready(node Node, now time.Time) bool
	// PollDelayMs reports how long until node will next be Ready, for
	// Calls that found it not ready.
	PollDelayMs(node Node, now time.Time) int64
	// Send hands off request to be written to node; the call returns
	// without waiting for the response, which (or whose failure)
	// surfaces from a later Poll tagged with correlationID.
	Send(node Node, correlationID int32, request Request, now time.Time) error
	// Poll blocks up to timeoutMs waiting for at least one response,
	// returning immediately if one is already available or if Wakeup
	// was called. now is the time the Worker last observed; Poll may
	// use it to avoid a redundant clock read.
	Poll(timeoutMs int64, now time.Time) []ClientResponse
	// LeastLoadedNode returns the known node with the fewest
	// outstanding in-flight requests, or false if none are known.
	LeastLoadedNode(now time.Time) (Node, bool)
	// Disconnect forcibly closes the connection to the given node id.
	// Used both to cancel an aborted in-flight Call and to force a
	// fresh connection after an authentication change.
	Disconnect(nodeID int32)
	// Wakeup guarantees a concurrent or subsequent Poll returns
	// promptly, regardless of timeoutMs.
	Wakeup()
	// AuthenticationException returns the error that made the last
	// connection attempt to node fail authentication, or nil if the
	// node's most recent connection attempt didn't fail that way.
	AuthenticationException(node Node) error
	// ConnectionFailed reports whether node's connection has failed
	// since the Worker last checked (used to unassign unsent Calls).
	ConnectionFailed(node Node) bool
}

// AuthenticationError is terminal and never retried; see §7.
type AuthenticationError struct {
	NodeID int32
	Err    error
}

func (e *AuthenticationError) Error() string {
	return "authentication failed with node " + strconv.FormatInt(int64(e.NodeID), 10) + ": " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }
