package kadmin

import (
	"sync"
	"time"
)

// ClusterSnapshot is the whole-cluster view delivered by a successful
// internal metadata Call. The core never mutates it; MetadataManager
// replaces its held view with exactly what it is given.
type ClusterSnapshot struct {
	Nodes        []Node
	ControllerID int32 // -1 if no controller is known
}

// MetadataManager holds the current cluster view (nodes, controller,
// per-partition leaders are left to higher layers that need them) and
// is consumed read-only by the Worker. The Worker only ever calls these
// methods from its own goroutine.
type MetadataManager interface {
	// IsReady reports whether a snapshot has ever been successfully
	// applied. Selectors that need topology refuse to pick a node
	// until this is true.
	IsReady() bool
	// Controller returns the current controller node, if known.
	Controller() (Node, bool)
	// NodeByID looks up a known node by id.
	NodeByID(id int32) (Node, bool)
	// Nodes returns every currently known node.
	Nodes() []Node

	// MetadataFetchDelayMs returns how long until a refresh is due; 0
	// means due now.
	MetadataFetchDelayMs(now int64) int64
	// RequestUpdate is a hint from a selector that could not produce a
	// node: please refresh sooner than the max-age schedule would.
	RequestUpdate()
	// TransitionToUpdatePending marks that the Worker is about to issue
	// (or has just issued) a refresh Call, so MetadataFetchDelayMs does
	// not report "due" again until the attempt resolves.
	TransitionToUpdatePending(now int64)
	// Update applies a freshly fetched snapshot.
	Update(snap ClusterSnapshot, now int64)
	// UpdateFailed records that the in-flight refresh attempt failed
	// and schedules a retry.
	UpdateFailed(err error)
	// ClearController drops the cached controller, forcing
	// SelectController to request a fresh one on the next pending-set
	// pass. Call implementations for controller-moved responses (§7)
	// call this before returning the retriable error from OnResponse,
	// which runs on the Worker's own goroutine, so this is always
	// called from the same goroutine that owns the MetadataManager.
	ClearController()
}

// metadataManager is the default MetadataManager. It is safe for
// concurrent use, though in practice only the Worker goroutine calls it.
type metadataManager struct {
	mu sync.Mutex

	ready        bool
	nodes        map[int32]Node
	controllerID int32

	minAgeMs int64
	maxAgeMs int64

	lastUpdateMs       int64
	nextAllowedFetchMs int64
	updatePending      bool

	consecutiveFailures int
	retryBackoff        func(failures int) time.Duration
}

// newMetadataManager builds the default MetadataManager. minAge/maxAge
// mirror kgo's metadataMinAge/metadataMaxAge: minAge throttles
// back-to-back refreshes triggered by RequestUpdate, maxAge is the
// unconditional refresh period.
func newMetadataManager(minAge, maxAge time.Duration, retryBackoff func(int) time.Duration) *metadataManager {
	if retryBackoff == nil {
		retryBackoff = func(int) time.Duration { return 100 * time.Millisecond }
	}
	return &metadataManager{
		nodes:        make(map[int32]Node),
		controllerID: -1,
		minAgeMs:     minAge.Milliseconds(),
		maxAgeMs:     maxAge.Milliseconds(),
		retryBackoff: retryBackoff,
	}
}

func (m *metadataManager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *metadataManager) Controller() (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.controllerID < 0 {
		return Node{}, false
	}
	n, ok := m.nodes[m.controllerID]
	return n, ok
}

func (m *metadataManager) NodeByID(id int32) (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	return n, ok
}

func (m *metadataManager) Nodes() []Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out
}

func (m *metadataManager) MetadataFetchDelayMs(now int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updatePending {
		return safetyPollCeilingMs
	}
	due := m.nextAllowedFetchMs
	if !m.ready {
		return 0
	}
	if now >= due {
		return 0
	}
	return due - now
}

func (m *metadataManager) RequestUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updatePending {
		return
	}
	// Pull the next allowed fetch no later than minAge from the last
	// successful update, same as kgo's waitmeta/triggerUpdateMetadata.
	earliest := m.lastUpdateMs + m.minAgeMs
	if earliest < m.nextAllowedFetchMs {
		m.nextAllowedFetchMs = earliest
	}
}

func (m *metadataManager) TransitionToUpdatePending(now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePending = true
}

func (m *metadataManager) Update(snap ClusterSnapshot, now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[int32]Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		m.nodes[n.ID] = n
	}
	m.controllerID = snap.ControllerID
	m.ready = true
	m.updatePending = false
	m.consecutiveFailures = 0
	m.lastUpdateMs = now
	m.nextAllowedFetchMs = now + m.maxAgeMs
}

func (m *metadataManager) UpdateFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePending = false
	m.consecutiveFailures++
	backoff := m.retryBackoff(m.consecutiveFailures).Milliseconds()
	m.nextAllowedFetchMs = m.lastUpdateMs + backoff
}

// ClearController drops the cached controller, forcing SelectController
// to request a fresh one on the next pending-set pass. Call
// implementations for controller-moved responses (§7) call this before
// returning a retriable error from OnResponse.
func (m *metadataManager) ClearController() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllerID = -1
}

// newMetadataRefreshCall builds the Worker's internal metadata Call
// (spec.md §4.4): MetadataBootstrap selector, node-topology-only
// request, and on success it applies the snapshot and asks the Worker
// to move every queued-but-unsent Call back to pending (since new
// metadata may prefer different destinations) via requeueAll. The
// Worker completes the Call's Future after OnResponse/OnFailure return,
// per the package-wide single-completer rule.
func newMetadataRefreshCall(
	nowMs int64,
	timeoutMs int64,
	buildRequest func(timeoutMs int32) (Request, error),
	decode func(Response) (ClusterSnapshot, error),
	mm MetadataManager,
	requeueAll func(),
) *Call {
	deadline := nowMs + timeoutMs
	call := NewCall("metadata-refresh", true, deadline, MetadataBootstrap())
	call.CreateRequest = buildRequest
	call.OnResponse = func(resp Response) error {
		snap, err := decode(resp)
		if err != nil {
			return err
		}
		mm.Update(snap, nowMs)
		requeueAll()
		return nil
	}
	call.OnFailure = func(err error) {
		mm.UpdateFailed(err)
	}
	return call
}

const safetyPollCeilingMs = 20 * 60 * 1000
