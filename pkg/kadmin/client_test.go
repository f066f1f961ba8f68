package kadmin_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

func deadline(d time.Duration) int64 { return time.Now().Add(d).UnixMilli() }

func TestClientSubmitAndComplete(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	nc.respond = func(req kadmin.Request, correlationID int32) kadmin.ClientResponse {
		return kadmin.ClientResponse{
			CorrelationID: correlationID,
			NodeID:        node.ID,
			Body:          &fakeResponse{key: req.Key(), value: "ok"},
		}
	}

	mm := newFakeMetadataManager(node.ID, node)
	cl, err := kadmin.NewClient(kadmin.WithNetworkClient(nc), kadmin.WithMetadataManager(mm))
	require.NoError(t, err)
	defer cl.Close(time.Second)

	call := kadmin.NewCall("test-call", false, deadline(5*time.Second), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 42}, nil }

	require.NoError(t, cl.Submit(call))

	resp, err := call.Future().Wait()
	require.NoError(t, err)
	require.Equal(t, "ok", resp.(*fakeResponse).value)
}

func TestClientRetriesRetriableErrorThenSucceeds(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)

	var attempts int
	nc.respond = func(req kadmin.Request, correlationID int32) kadmin.ClientResponse {
		attempts++
		if attempts == 1 {
			return kadmin.ClientResponse{CorrelationID: correlationID, NodeID: node.ID, Disconnected: true}
		}
		return kadmin.ClientResponse{CorrelationID: correlationID, NodeID: node.ID, Body: &fakeResponse{key: req.Key(), value: "recovered"}}
	}

	mm := newFakeMetadataManager(node.ID, node)
	cl, err := kadmin.NewClient(
		kadmin.WithNetworkClient(nc),
		kadmin.WithMetadataManager(mm),
		kadmin.WithRetryBackoff(func(int) time.Duration { return time.Millisecond }),
	)
	require.NoError(t, err)
	defer cl.Close(time.Second)

	call := kadmin.NewCall("retry-call", false, deadline(5*time.Second), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 7}, nil }

	require.NoError(t, cl.Submit(call))

	resp, err := call.Future().Wait()
	require.NoError(t, err)
	require.Equal(t, "recovered", resp.(*fakeResponse).value)
	require.GreaterOrEqual(t, attempts, 2)
}

func TestClientHandleNodeLossRequeuesQueuedCalls(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	nc.mu.Lock()
	nc.ready = false // the Call sits queued, never sent, until Ready flips true
	nc.mu.Unlock()
	nc.respond = func(req kadmin.Request, correlationID int32) kadmin.ClientResponse {
		return kadmin.ClientResponse{CorrelationID: correlationID, NodeID: node.ID, Body: &fakeResponse{key: req.Key(), value: "recovered"}}
	}

	mm := newFakeMetadataManager(node.ID, node)
	cl, err := kadmin.NewClient(kadmin.WithNetworkClient(nc), kadmin.WithMetadataManager(mm))
	require.NoError(t, err)
	defer cl.Close(time.Second)

	call := kadmin.NewCall("node-loss-call", false, deadline(2*time.Second), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 9}, nil }
	require.NoError(t, cl.Submit(call))

	// Give the Worker a moment to assign the Call into its per-node send
	// queue, where it sits blocked on Ready() being false.
	time.Sleep(20 * time.Millisecond)

	// Simulate the connection dying while the Call is still queued (never
	// sent): handleNodeLoss (spec.md §4.1 step 9) must notice this via
	// ConnectionFailed and move the Call back to pending, rather than
	// leaving it stuck in a dead node's send queue forever.
	nc.mu.Lock()
	nc.connFail = true
	nc.mu.Unlock()
	nc.Wakeup()

	time.Sleep(20 * time.Millisecond)

	// The connection recovers: clear connFail and mark the node ready so
	// the requeued Call can actually be sent.
	nc.mu.Lock()
	nc.connFail = false
	nc.ready = true
	nc.mu.Unlock()
	nc.Wakeup()

	resp, err := call.Future().Wait()
	require.NoError(t, err)
	require.Equal(t, "recovered", resp.(*fakeResponse).value)
}

func TestClientDeadlineExceededWhilePending(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	nc.mu.Lock()
	nc.ready = false // Call never gets a chance to send
	nc.mu.Unlock()

	mm := newFakeMetadataManager(node.ID, node)
	cl, err := kadmin.NewClient(kadmin.WithNetworkClient(nc), kadmin.WithMetadataManager(mm))
	require.NoError(t, err)
	defer cl.Close(time.Second)

	call := kadmin.NewCall("timeout-call", false, deadline(20*time.Millisecond), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 1}, nil }

	require.NoError(t, cl.Submit(call))

	_, err = call.Future().Wait()
	var timeoutErr *kadmin.TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
}

func TestClientOnResponseCanDriveRetry(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	nc.respond = func(req kadmin.Request, correlationID int32) kadmin.ClientResponse {
		return kadmin.ClientResponse{CorrelationID: correlationID, NodeID: node.ID, Body: &fakeResponse{key: req.Key(), value: "controller-moved"}}
	}

	mm := newFakeMetadataManager(node.ID, node)
	cl, err := kadmin.NewClient(
		kadmin.WithNetworkClient(nc),
		kadmin.WithMetadataManager(mm),
		kadmin.WithRetryBackoff(func(int) time.Duration { return time.Millisecond }),
		kadmin.WithMaxRetries(1),
	)
	require.NoError(t, err)
	defer cl.Close(time.Second)

	var onResponseCalls int
	call := kadmin.NewCall("controller-call", false, deadline(2*time.Second), kadmin.ToController())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 3}, nil }
	call.OnResponse = func(resp kadmin.Response) error {
		onResponseCalls++
		if onResponseCalls == 1 {
			return errConnDeadForTest
		}
		return nil
	}

	require.NoError(t, cl.Submit(call))

	_, err = call.Future().Wait()
	require.NoError(t, err)
	require.Equal(t, 2, onResponseCalls)
}

var errConnDeadForTest = kadmin.ErrConnDead

func TestClientUnsupportedVersionDowngradeRetriesWithoutSpendingTry(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)

	// fakeRequest's key (999) deliberately doesn't match any real Kafka
	// API key, so downgradeBudget's kversion.Stable() lookup misses and
	// grants exactly one blind downgrade attempt.
	const unknownKey = 999

	var built []int16
	nc.respond = func(req kadmin.Request, correlationID int32) kadmin.ClientResponse {
		r := req.(*fakeRequest)
		built = append(built, r.version)
		if r.version > 3 {
			return kadmin.ClientResponse{
				CorrelationID:   correlationID,
				NodeID:          node.ID,
				VersionMismatch: &kadmin.UnsupportedVersionError{CallName: "downgrade-call", Key: unknownKey, Version: r.version},
			}
		}
		return kadmin.ClientResponse{CorrelationID: correlationID, NodeID: node.ID, Body: &fakeResponse{key: req.Key(), value: "ok"}}
	}

	mm := newFakeMetadataManager(node.ID, node)
	cl, err := kadmin.NewClient(kadmin.WithNetworkClient(nc), kadmin.WithMetadataManager(mm))
	require.NoError(t, err)
	defer cl.Close(time.Second)

	version := int16(4)
	call := kadmin.NewCall("downgrade-call", false, deadline(2*time.Second), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: unknownKey, version: version}, nil }
	call.OnUnsupportedVersion = func(*kadmin.UnsupportedVersionError) bool {
		version--
		return true
	}

	require.NoError(t, cl.Submit(call))

	resp, err := call.Future().Wait()
	require.NoError(t, err)
	require.Equal(t, "ok", resp.(*fakeResponse).value)
	require.Equal(t, 0, call.Tries(), "a downgrade retry must not spend an ordinary try")
	require.Equal(t, []int16{4, 3}, built, "the rejected version-4 attempt must precede the accepted downgrade to version 3")
}

func TestClientShutdownDrainFailsOutstandingCalls(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	nc.mu.Lock()
	nc.ready = false
	nc.mu.Unlock()

	mm := newFakeMetadataManager(node.ID, node)
	cl, err := kadmin.NewClient(kadmin.WithNetworkClient(nc), kadmin.WithMetadataManager(mm))
	require.NoError(t, err)

	call := kadmin.NewCall("stuck-call", false, deadline(time.Minute), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 1}, nil }
	require.NoError(t, cl.Submit(call))

	cl.Close(50 * time.Millisecond)

	_, err = call.Future().Wait()
	var shutdownErr *kadmin.ShutdownError
	require.True(t, errors.As(err, &shutdownErr))
}

// alwaysDueMetadataManager is a fakeMetadataManager that always reports
// its next fetch as due, so metadataTick issues the Worker's internal
// refresh Call on the very first iteration.
type alwaysDueMetadataManager struct {
	*fakeMetadataManager
}

func (m *alwaysDueMetadataManager) MetadataFetchDelayMs(int64) int64 { return 0 }

func TestClientShutdownDiscardsInternalMetadataCallWithoutPropagatingError(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	nc.mu.Lock()
	nc.ready = false // neither the external nor the internal call ever gets a response
	nc.mu.Unlock()

	mm := &alwaysDueMetadataManager{newFakeMetadataManager(node.ID, node)}
	cl, err := kadmin.NewClient(
		kadmin.WithNetworkClient(nc),
		kadmin.WithMetadataManager(mm),
		kadmin.WithMetadataRefresh(
			func(int32) (kadmin.Request, error) { return &fakeRequest{key: 3}, nil },
			func(kadmin.Response) (kadmin.ClusterSnapshot, error) { return kadmin.ClusterSnapshot{}, nil },
		),
	)
	require.NoError(t, err)

	call := kadmin.NewCall("external-call", false, deadline(time.Minute), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 1}, nil }
	require.NoError(t, cl.Submit(call))

	require.NotPanics(t, func() { cl.Close(50 * time.Millisecond) })

	_, err = call.Future().Wait()
	var shutdownErr *kadmin.ShutdownError
	require.True(t, errors.As(err, &shutdownErr))
}

func TestClientSubmitAfterCloseFailsSynchronously(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)

	cl, err := kadmin.NewClient(kadmin.WithNetworkClient(nc))
	require.NoError(t, err)
	cl.Close(time.Second)

	call := kadmin.NewCall("late-call", false, deadline(time.Second), kadmin.LeastLoaded())
	call.CreateRequest = func(int32) (kadmin.Request, error) { return &fakeRequest{key: 1}, nil }

	err = cl.Submit(call)
	require.ErrorIs(t, err, kadmin.ErrCoreShuttingDown)
}
