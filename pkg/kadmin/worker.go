package kadmin

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// worker is the single event-loop thread described in spec.md §4.1. It
// owns the pending set, per-node send queues, and in-flight registry
// outright; the submission queue is the one structure shared with
// external goroutines, and it owns that under its own mutex (see
// submission.go). Grounded on AdminClientRunnable.run in
// KafkaAdminClient.java.
type worker struct {
	cfg    cfg
	nc     NetworkClient
	mm     MetadataManager
	clock  Clock
	logger *wrappedLogger
	hooks  hooks

	submissions *submissionQueue

	pending               []*Call
	sendQueues            map[int32][]*Call
	inFlightByCorrelation map[int32]*Call
	inFlightByNode        map[int32]map[int32]*Call

	nextCorrelationID int32

	hardDeadline *hardDeadlineCell

	// metadataCall tracks the single in-flight internal refresh Call, if
	// any, so metadataTick never issues a second one concurrently.
	metadataCall *Call

	done chan struct{}
}

func newWorker(c cfg) *worker {
	mm := c.mm
	if mm == nil {
		mm = newMetadataManager(c.metadataMinAge, c.metadataMaxAge, c.retryBackoff)
	}
	return &worker{
		cfg:                   c,
		nc:                    c.nc,
		mm:                    mm,
		clock:                 newSystemClock(),
		logger:                &wrappedLogger{inner: c.logger},
		hooks:                 c.hooks,
		submissions:           &submissionQueue{},
		sendQueues:            make(map[int32][]*Call),
		inFlightByCorrelation: make(map[int32]*Call),
		inFlightByNode:        make(map[int32]map[int32]*Call),
		hardDeadline:          newHardDeadlineCell(),
		done:                  make(chan struct{}),
	}
}

// submit hands call to the submission queue, per spec.md §6's submit
// contract. It synchronously returns ErrCoreShuttingDown (without
// touching call) once the queue is sealed; the caller is expected to
// complete call's Future itself in that case, since the Worker never
// saw it.
func (w *worker) submit(call *Call) error {
	if err := w.submissions.push(call); err != nil {
		return err
	}
	w.nc.Wakeup()
	return nil
}

// requestShutdown sets the hard-shutdown deadline (earliest-wins) and
// wakes the Worker so it observes the new deadline promptly.
func (w *worker) requestShutdown(deadlineMs int64) {
	w.hardDeadline.set(deadlineMs)
	w.nc.Wakeup()
}

// run drives the loop until shutdown drain completes, then closes done.
func (w *worker) run() {
	defer close(w.done)
	w.logger.Log(LogLevelInfo, "worker starting")
	for {
		now := w.clock.NowMs()

		w.drainSubmissions(now)

		if deadlineMs, active := w.hardDeadline.get(); active {
			if !w.hasNonInternalWork() || now >= deadlineMs {
				w.drainShutdown()
				w.logger.Log(LogLevelInfo, "worker stopped")
				return
			}
		}

		now = w.clock.NowMs()
		w.evictTimeouts(now)
		w.assignPending(now)
		w.metadataTick(now)
		nextNodeReadyMs := w.drainSendQueues(now)

		pollTimeoutMs := w.computePollTimeout(now, nextNodeReadyMs)
		responses := w.nc.Poll(pollTimeoutMs, msToTime(now))

		w.handleNodeLoss()

		now = w.clock.NowMs()
		w.handleResponses(responses, now)
	}
}

func (w *worker) drainSubmissions(now int64) {
	for _, c := range w.submissions.drain() {
		c.startedAtMs = now
		w.pending = append(w.pending, c)
		w.hooks.each(func(h Hook) {
			if hh, ok := h.(HookCallSubmitted); ok {
				hh.OnCallSubmitted(c.Name, c.Internal)
			}
		})
	}
}

func (w *worker) hasNonInternalWork() bool {
	for _, c := range w.pending {
		if !c.Internal {
			return true
		}
	}
	for _, q := range w.sendQueues {
		for _, c := range q {
			if !c.Internal {
				return true
			}
		}
	}
	for _, c := range w.inFlightByCorrelation {
		if !c.Internal {
			return true
		}
	}
	return false
}

// evictTimeouts implements spec.md §4.1 step 3: pending and queued Calls
// past their deadline are terminated outright; in-flight Calls cannot be
// safely removed (a response may still be coming), so they are marked
// aborted and their node is disconnected, surfacing as a disconnected
// response on a later poll.
func (w *worker) evictTimeouts(now int64) {
	var stillPending []*Call
	for _, c := range w.pending {
		if now >= c.DeadlineMs {
			w.terminalFail(c, &TimeoutError{CallName: c.Name, Reason: "deadline exceeded while pending"})
			continue
		}
		stillPending = append(stillPending, c)
	}
	w.pending = stillPending

	for nodeID, q := range w.sendQueues {
		var keep []*Call
		for _, c := range q {
			if now >= c.DeadlineMs {
				w.terminalFail(c, &TimeoutError{CallName: c.Name, Reason: "deadline exceeded while queued"})
				continue
			}
			keep = append(keep, c)
		}
		if len(keep) == 0 {
			delete(w.sendQueues, nodeID)
		} else {
			w.sendQueues[nodeID] = keep
		}
	}

	disconnected := make(map[int32]bool)
	for _, c := range w.inFlightByCorrelation {
		if c.aborted || now < c.DeadlineMs {
			continue
		}
		c.aborted = true
		if node, ok := c.CurNode(); ok && !disconnected[node.ID] {
			w.nc.Disconnect(node.ID)
			disconnected[node.ID] = true
		}
	}
}

// assignPending implements spec.md §4.1 step 4.
func (w *worker) assignPending(now int64) {
	var stillPending []*Call
	for _, c := range w.pending {
		if c.nextAllowedTryMs > now {
			stillPending = append(stillPending, c)
			continue
		}
		node, ok, err := selectNode(c.Selector, w.mm, w.nc, msToTime(now))
		if err != nil {
			if requeue, ferr := w.routeFailure(c, err, now); requeue {
				stillPending = append(stillPending, c)
			} else {
				w.terminalFail(c, ferr)
			}
			continue
		}
		if !ok {
			stillPending = append(stillPending, c)
			continue
		}
		c.currentNode = node
		c.hasCurrentNode = true
		w.sendQueues[node.ID] = append(w.sendQueues[node.ID], c)
		w.hooks.each(func(h Hook) {
			if hh, ok := h.(HookCallAssigned); ok {
				hh.OnCallAssigned(c.Name, node.ID)
			}
		})
	}
	w.pending = stillPending
}

// metadataTick implements spec.md §4.1 step 5 / §4.4.
func (w *worker) metadataTick(now int64) {
	if w.metadataCall != nil {
		return
	}
	if w.cfg.metadataRequestBuilder == nil {
		return
	}
	if w.mm.MetadataFetchDelayMs(now) > 0 {
		return
	}
	w.mm.TransitionToUpdatePending(now)
	call := newMetadataRefreshCall(now, w.cfg.defaultTimeoutMs, w.cfg.metadataRequestBuilder, w.cfg.metadataDecoder, w.mm, w.requeueUnsent)
	w.metadataCall = call
	w.pending = append(w.pending, call)
	w.hooks.each(func(h Hook) {
		if hh, ok := h.(HookCallSubmitted); ok {
			hh.OnCallSubmitted(call.Name, true)
		}
	})
}

// requeueUnsent moves every Call still sitting in a per-node send queue
// back to the pending set, unassigning its node. Used when fresh
// metadata arrives and previously-chosen destinations may no longer be
// the best ones.
func (w *worker) requeueUnsent() {
	for nodeID, q := range w.sendQueues {
		for _, c := range q {
			c.currentNode = Node{}
			c.hasCurrentNode = false
			w.pending = append(w.pending, c)
		}
		delete(w.sendQueues, nodeID)
	}
}

// drainSendQueues implements spec.md §4.1 step 6 and returns the
// smallest PollDelayMs reported by any node found not ready, or -1 if
// every node with queued work was ready or no node was queued.
func (w *worker) drainSendQueues(now int64) int64 {
	nowT := msToTime(now)
	nextReady := int64(-1)

	for nodeID, q := range w.sendQueues {
		if len(q) == 0 {
			delete(w.sendQueues, nodeID)
			continue
		}
		node := q[0].currentNode
		if !w.nc.Ready(node, nowT) {
			if d := w.nc.PollDelayMs(node, nowT); nextReady == -1 || d < nextReady {
				nextReady = d
			}
			continue
		}

		c := q[0]
		if len(q) == 1 {
			delete(w.sendQueues, nodeID)
		} else {
			w.sendQueues[nodeID] = q[1:]
		}

		req, err := c.CreateRequest(clampInt32(remainingMs(c.DeadlineMs, now)))
		if err != nil {
			w.terminalFail(c, fmt.Errorf("%w: %s: %v", ErrRequestBuildFailed, c.Name, err))
			continue
		}

		correlationID := w.nextCorrelationID
		w.nextCorrelationID++

		if err := w.nc.Send(node, correlationID, req, nowT); err != nil {
			c.currentNode = Node{}
			c.hasCurrentNode = false
			if requeue, ferr := w.routeFailure(c, err, now); requeue {
				w.pending = append(w.pending, c)
			} else {
				w.terminalFail(c, ferr)
			}
			continue
		}

		c.correlationID = correlationID
		w.inFlightByCorrelation[correlationID] = c
		byNode := w.inFlightByNode[node.ID]
		if byNode == nil {
			byNode = make(map[int32]*Call)
			w.inFlightByNode[node.ID] = byNode
		}
		byNode[correlationID] = c

		w.hooks.each(func(h Hook) {
			if hh, ok := h.(HookCallSent); ok {
				hh.OnCallSent(c.Name, node.ID, c.tries+1)
			}
		})
	}
	return nextReady
}

// handleNodeLoss implements spec.md §4.1 step 9.
func (w *worker) handleNodeLoss() {
	for nodeID, q := range w.sendQueues {
		if len(q) == 0 {
			delete(w.sendQueues, nodeID)
			continue
		}
		if !w.nc.ConnectionFailed(q[0].currentNode) {
			continue
		}
		for _, c := range q {
			c.currentNode = Node{}
			c.hasCurrentNode = false
			w.pending = append(w.pending, c)
		}
		delete(w.sendQueues, nodeID)
	}
}

// handleResponses implements spec.md §4.1 step 10 / §4.6.
func (w *worker) handleResponses(responses []ClientResponse, now int64) {
	for _, resp := range responses {
		call, ok := w.inFlightByCorrelation[resp.CorrelationID]
		if !ok {
			w.logger.Log(LogLevelError, "response for unknown correlation id", "correlationId", resp.CorrelationID, "nodeId", resp.NodeID)
			w.nc.Disconnect(resp.NodeID)
			continue
		}
		delete(w.inFlightByCorrelation, resp.CorrelationID)
		if byNode := w.inFlightByNode[resp.NodeID]; byNode != nil {
			delete(byNode, resp.CorrelationID)
			if len(byNode) == 0 {
				delete(w.inFlightByNode, resp.NodeID)
			}
		}

		switch {
		case resp.VersionMismatch != nil:
			var uve *UnsupportedVersionError
			if !errors.As(resp.VersionMismatch, &uve) {
				uve = &UnsupportedVersionError{CallName: call.Name}
			}
			w.finishAttempt(call, uve, now)

		case resp.Disconnected:
			var err error
			if authErr := w.nc.AuthenticationException(call.currentNode); authErr != nil {
				err = &AuthenticationError{NodeID: call.currentNode.ID, Err: authErr}
			} else {
				err = &DisconnectError{CallName: call.Name, CorrelationID: resp.CorrelationID, NodeID: resp.NodeID}
			}
			w.finishAttempt(call, err, now)

		default:
			if call.OnResponse == nil {
				w.completeSuccess(call, resp.Body)
				continue
			}
			if err := call.OnResponse(resp.Body); err != nil {
				w.finishAttempt(call, err, now)
			} else {
				w.completeSuccess(call, resp.Body)
			}
		}
	}
}

// finishAttempt routes a failed attempt through the §4.3 retry policy
// and either re-queues call or terminates it.
func (w *worker) finishAttempt(call *Call, err error, now int64) {
	call.currentNode = Node{}
	call.hasCurrentNode = false
	if requeue, ferr := w.routeFailure(call, err, now); requeue {
		w.pending = append(w.pending, call)
	} else {
		w.terminalFail(call, ferr)
	}
}

// routeFailure runs fail (§4.3) for one attempt error and fires the
// retry hook on a requeue outcome. It never mutates w.pending itself;
// callers decide where the Call lands.
func (w *worker) routeFailure(call *Call, err error, now int64) (requeue bool, finalErr error) {
	pol := retryPolicy{
		maxRetries: w.cfg.maxRetries,
		backoffMs:  func(tries int) int64 { return w.cfg.retryBackoff(tries).Milliseconds() },
		nowMs:      now,
	}
	oc, ferr := fail(call, err, pol)
	if oc == outcomeRequeue {
		w.hooks.each(func(h Hook) {
			if hh, ok := h.(HookCallRetried); ok {
				hh.OnCallRetried(call.Name, call.tries, err)
			}
		})
		return true, nil
	}
	return false, ferr
}

// completeSuccess completes call's Future with resp and fires the
// completion hook.
func (w *worker) completeSuccess(call *Call, resp Response) {
	call.future.complete(resp, nil)
	w.onCallTerminal(call, nil)
}

// terminalFail invokes OnFailure for side effects, then completes
// call's Future with err and fires the completion hook.
func (w *worker) terminalFail(call *Call, err error) {
	if call.OnFailure != nil {
		call.OnFailure(err)
	}
	call.future.complete(nil, err)
	w.onCallTerminal(call, err)
}

func (w *worker) onCallTerminal(call *Call, err error) {
	if call == w.metadataCall {
		w.metadataCall = nil
		nodeCount := len(w.mm.Nodes())
		w.hooks.each(func(h Hook) {
			if hh, ok := h.(HookMetadataRefresh); ok {
				hh.OnMetadataRefresh(nodeCount, err)
			}
		})
	}
	took := time.Duration(w.clock.NowMs()-call.startedAtMs) * time.Millisecond
	w.hooks.each(func(h Hook) {
		if hh, ok := h.(HookCallCompleted); ok {
			hh.OnCallCompleted(call.Name, call.tries, took, err)
		}
	})
}

// drainShutdown implements spec.md §4.5's terminal phase: the
// submission queue is sealed, and every Call anywhere in the core
// (including whatever the seal caught still sitting in the backlog) is
// failed with a ShutdownError. Internal Calls are discarded silently, as
// spec'd, rather than running their OnFailure side effects.
func (w *worker) drainShutdown() {
	shutdownErr := func(c *Call) *ShutdownError { return &ShutdownError{CallName: c.Name} }

	leftover := w.submissions.seal()
	all := append(leftover, w.pending...)
	for _, q := range w.sendQueues {
		all = append(all, q...)
	}
	for _, c := range w.inFlightByCorrelation {
		all = append(all, c)
	}

	for _, c := range all {
		if c.Internal {
			c.future.complete(nil, shutdownErr(c))
			continue
		}
		w.terminalFail(c, shutdownErr(c))
	}

	w.pending = nil
	w.sendQueues = make(map[int32][]*Call)
	w.inFlightByCorrelation = make(map[int32]*Call)
	w.inFlightByNode = make(map[int32]map[int32]*Call)

	if closer, ok := w.nc.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			w.logger.Log(LogLevelWarn, "error closing network client", "err", err)
		}
	}
	if closer, ok := w.mm.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			w.logger.Log(LogLevelWarn, "error closing metadata manager", "err", err)
		}
	}
}

// computePollTimeout implements spec.md §4.1 step 7.
func (w *worker) computePollTimeout(now, nextNodeReadyMs int64) int64 {
	best := w.cfg.safetyPollCeilingMs

	consider := func(delta int64) {
		if delta >= 0 && delta < best {
			best = delta
		}
	}

	for _, c := range w.pending {
		consider(remainingMs(c.DeadlineMs, now))
		consider(remainingMs(c.nextAllowedTryMs, now))
	}
	for _, q := range w.sendQueues {
		for _, c := range q {
			consider(remainingMs(c.DeadlineMs, now))
		}
	}
	for _, c := range w.inFlightByCorrelation {
		consider(remainingMs(c.DeadlineMs, now))
	}

	if nextNodeReadyMs >= 0 {
		consider(nextNodeReadyMs)
	}

	consider(w.mm.MetadataFetchDelayMs(now))

	if deadlineMs, active := w.hardDeadline.get(); active {
		consider(remainingMs(deadlineMs, now))
	}

	if len(w.pending) > 0 {
		consider(w.cfg.retryBackoff(1).Milliseconds())
	}

	if best < 0 {
		best = 0
	}
	return best
}

func remainingMs(deadlineMs, now int64) int64 {
	d := deadlineMs - now
	if d < 0 {
		return 0
	}
	return d
}

func clampInt32(ms int64) int32 {
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(ms)
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms) }

// hardDeadlineCell is the atomic "moves only earlier" cell spec.md §4.5
// requires: multiple racing Close callers must agree on the earliest
// requested deadline, never a later one.
type hardDeadlineCell struct {
	v atomic.Int64
}

func newHardDeadlineCell() *hardDeadlineCell {
	c := &hardDeadlineCell{}
	c.v.Store(math.MaxInt64)
	return c
}

func (c *hardDeadlineCell) set(deadlineMs int64) {
	for {
		cur := c.v.Load()
		if deadlineMs >= cur {
			return
		}
		if c.v.CompareAndSwap(cur, deadlineMs) {
			return
		}
	}
}

func (c *hardDeadlineCell) get() (deadlineMs int64, active bool) {
	v := c.v.Load()
	return v, v != math.MaxInt64
}
