package kadmin

// Call is one user-initiated administrative operation, possibly retried
// across multiple wire attempts. It is the central entity of the core:
// at any instant a Call occupies exactly one of the submission queue,
// the pending set, a per-node send queue, the in-flight registry, or is
// terminal (its Future completed).
//
// Per spec.md §9's design note, a single record carrying four function
// values plus configuration fields stands in for the teacher's
// polymorphic Call subclasses; a façade package builds one Call value
// per logical operation.
type Call struct {
	// Name is a stable diagnostic label, used in logs and in error
	// messages; it is not otherwise interpreted.
	Name string

	// Internal is true only for the Worker's own metadata-refresh Call.
	// Internal Calls do not keep the shutdown drain (§4.5) alive.
	Internal bool

	// DeadlineMs is the absolute monotonic deadline (per Clock.NowMs),
	// fixed at creation and never extended.
	DeadlineMs int64

	// Selector picks this Call's destination node every time it is
	// (re)considered in the pending set.
	Selector NodeSelector

	// CreateRequest builds this attempt's wire-level request, given the
	// timeout (ms, clamped to int32 range) the Worker computed as the
	// remaining time to deadline. Called once per attempt, right before
	// handing the request to the NetworkClient.
	CreateRequest func(timeoutMs int32) (Request, error)

	// OnResponse consumes a successfully decoded response. Returning nil
	// tells the Worker the Call is done; it completes the Future with
	// resp itself. Returning an error drives a retry — for instance a
	// controller-moved response should clear any cached controller in
	// MetadataManager and then return a retriable error, per §7.
	// OnResponse cannot complete the Future itself (Future.complete is
	// unexported); the Worker does.
	OnResponse func(resp Response) error

	// OnFailure is the terminal-failure side-effect hook: called at
	// most once, whenever the Worker fails the Call terminally — the
	// retry policy gave up, the deadline passed while pending or queued,
	// CreateRequest failed, or shutdown drain failed a non-internal Call.
	// It is not called for a Call rejected by Submit. It exists for
	// bookkeeping (e.g. MetadataManager.UpdateFailed) — the Worker
	// completes the Future with the terminal error immediately after.
	OnFailure func(err error)

	// OnUnsupportedVersion is the optional protocol-downgrade hook. If
	// non-nil and it returns true, the Call has reconfigured itself
	// (e.g. lowered the version it will ask CreateRequest for next
	// time) and should be retried without spending an attempt. A nil
	// hook means this Call cannot downgrade.
	OnUnsupportedVersion func(err *UnsupportedVersionError) bool

	// future is completed exactly once: by the Worker, or by
	// Client.Submit for a Call rejected after shutdown.
	future *Future

	// --- fields mutated only by the Worker goroutine ---

	tries            int
	nextAllowedTryMs int64
	currentNode      Node
	hasCurrentNode   bool
	aborted          bool
	correlationID    int32
	downgradesUsed   int
	startedAtMs      int64
}

// NewCall allocates a Call with a fresh, pending Future. Callers (almost
// always a façade package, not end users) still need to set
// CreateRequest, OnResponse, and OnFailure before Submit-ting it.
func NewCall(name string, internal bool, deadlineMs int64, selector NodeSelector) *Call {
	return &Call{
		Name:       name,
		Internal:   internal,
		DeadlineMs: deadlineMs,
		Selector:   selector,
		future:     NewFuture(),
	}
}

// Future returns the handle external observers can Wait on.
func (c *Call) Future() *Future { return c.future }

// CurNode returns the node assigned to this Call's live attempt, or the
// zero Node and false if none is assigned (pending or terminal).
func (c *Call) CurNode() (Node, bool) { return c.currentNode, c.hasCurrentNode }

// Tries returns the number of failed attempts charged against this
// Call's retry budget so far. A successful attempt is not counted, and
// neither is an attempt that ended in an accepted protocol downgrade.
func (c *Call) Tries() int { return c.tries }
