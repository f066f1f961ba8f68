package kadmin

import "time"

// Hook is a hook to be called when something happens in the Worker.
//
// The base Hook interface is useless; wherever a hook point exists, the
// Worker checks whether your hook implements the matching narrow
// interface below and calls it if so. This lets observers (a metrics
// plugin, say) opt into only the events they care about.
//
// All hook interfaces in this package have Hook in the name. Hooks must
// be safe for concurrent use, though in practice every hook here is
// called from the single Worker goroutine. Hooks are expected to be
// fast; do real work asynchronously.
type Hook interface{}

type hooks []Hook

func (hs hooks) each(fn func(Hook)) {
	for _, h := range hs {
		fn(h)
	}
}

// HookCallSubmitted is called when the Worker drains a newly submitted
// Call from the submission queue into the pending set, and when the
// Worker creates its internal metadata-refresh Call.
type HookCallSubmitted interface {
	OnCallSubmitted(name string, internal bool)
}

// HookCallAssigned is called when a pending Call is assigned a
// destination node.
type HookCallAssigned interface {
	OnCallAssigned(name string, nodeID int32)
}

// HookCallSent is called after a Call's request has been handed to the
// NetworkClient.
type HookCallSent interface {
	OnCallSent(name string, nodeID int32, tries int)
}

// HookCallRetried is called when the retry/deadline policy re-queues a
// Call instead of terminating it.
type HookCallRetried interface {
	OnCallRetried(name string, tries int, err error)
}

// HookCallCompleted is called once per Call when the Worker completes
// its future, successfully or not. It is not called for a Call rejected
// by Submit after shutdown, nor for an internal Call discarded by the
// shutdown drain.
type HookCallCompleted interface {
	OnCallCompleted(name string, tries int, took time.Duration, err error)
}

// HookMetadataRefresh is called when the in-band metadata-refresh Call
// completes, successfully or with a terminal error; attempts that are
// retried are not reported.
type HookMetadataRefresh interface {
	OnMetadataRefresh(nodeCount int, err error)
}
