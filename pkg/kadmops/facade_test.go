package kadmops

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

// fakeNetworkClient is a single-node NetworkClient double that answers
// every Send synchronously through a per-test respond hook, in the same
// spirit as pkg/kadmin's own fakeNetworkClient: no sockets, no wire
// bytes, just the Request/Response values the core hands around.
type fakeNetworkClient struct {
	mu      sync.Mutex
	node    kadmin.Node
	respond func(req kadmin.Request) kadmin.Response
	pending []kadmin.ClientResponse
	wake    chan struct{}
}

func newFakeNetworkClient(node kadmin.Node) *fakeNetworkClient {
	return &fakeNetworkClient{node: node, wake: make(chan struct{}, 1)}
}

func (f *fakeNetworkClient) Ready(kadmin.Node, time.Time) bool         { return true }
func (f *fakeNetworkClient) PollDelayMs(kadmin.Node, time.Time) int64  { return 0 }
func (f *fakeNetworkClient) LeastLoadedNode(time.Time) (kadmin.Node, bool) {
	return f.node, true
}
func (f *fakeNetworkClient) Disconnect(int32)                {}
func (f *fakeNetworkClient) AuthenticationException(kadmin.Node) error { return nil }
func (f *fakeNetworkClient) ConnectionFailed(kadmin.Node) bool         { return false }

func (f *fakeNetworkClient) Wakeup() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *fakeNetworkClient) Send(node kadmin.Node, correlationID int32, req kadmin.Request, _ time.Time) error {
	f.mu.Lock()
	f.pending = append(f.pending, kadmin.ClientResponse{
		CorrelationID: correlationID,
		NodeID:        node.ID,
		Body:          f.respond(req),
	})
	f.mu.Unlock()
	f.Wakeup()
	return nil
}

func (f *fakeNetworkClient) Poll(timeoutMs int64, _ time.Time) []kadmin.ClientResponse {
	f.mu.Lock()
	if len(f.pending) > 0 {
		out := f.pending
		f.pending = nil
		f.mu.Unlock()
		return out
	}
	f.mu.Unlock()

	select {
	case <-f.wake:
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

// fakeMetadataManager is ready from construction with one fixed
// node/controller, so ToController()/LeastLoaded() selectors resolve
// without a real metadata-refresh Call ever running.
type fakeMetadataManager struct {
	node                 kadmin.Node
	clearControllerCalls int
}

func (m *fakeMetadataManager) IsReady() bool                          { return true }
func (m *fakeMetadataManager) Controller() (kadmin.Node, bool)        { return m.node, true }
func (m *fakeMetadataManager) NodeByID(id int32) (kadmin.Node, bool) {
	if id == m.node.ID {
		return m.node, true
	}
	return kadmin.Node{}, false
}
func (m *fakeMetadataManager) Nodes() []kadmin.Node                    { return []kadmin.Node{m.node} }
func (m *fakeMetadataManager) MetadataFetchDelayMs(int64) int64        { return int64(time.Hour / time.Millisecond) }
func (m *fakeMetadataManager) RequestUpdate()                          {}
func (m *fakeMetadataManager) TransitionToUpdatePending(int64)         {}
func (m *fakeMetadataManager) Update(kadmin.ClusterSnapshot, int64)    {}
func (m *fakeMetadataManager) UpdateFailed(error)                      {}
func (m *fakeMetadataManager) ClearController()                       { m.clearControllerCalls++ }

func newTestClient(t *testing.T, respond func(req kadmin.Request) kadmin.Response) *Client {
	t.Helper()
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	nc.respond = respond
	mm := &fakeMetadataManager{node: node}

	core, err := kadmin.NewClient(kadmin.WithNetworkClient(nc), kadmin.WithMetadataManager(mm))
	require.NoError(t, err)
	t.Cleanup(func() { core.Close(time.Second) })

	return NewClient(core)
}

func TestCreateTopicsRoundTrip(t *testing.T) {
	cl := newTestClient(t, func(req kadmin.Request) kadmin.Response {
		r := req.(*createTopicsRequest)
		require.Equal(t, []string{"orders", "payments"}, r.topics)
		require.Equal(t, int32(3), r.partitions)
		require.Equal(t, int16(2), r.replicationFactor)

		return &createTopicsResponse{results: []CreateTopicResult{
			{Topic: "orders"},
			{Topic: "payments", Err: errForCode(36)}, // TOPIC_ALREADY_EXISTS
		}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, err := cl.CreateTopics(ctx, 3, 2, nil, "orders", "payments")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "orders", results[0].Topic)
	require.NoError(t, results[0].Err)
	require.Equal(t, "payments", results[1].Topic)
	require.Error(t, results[1].Err)
}

func TestDeleteTopicsRoundTrip(t *testing.T) {
	cl := newTestClient(t, func(req kadmin.Request) kadmin.Response {
		r := req.(*deleteTopicsRequest)
		require.Equal(t, []string{"stale-topic"}, r.topics)
		return &deleteTopicsResponse{results: []DeleteTopicResult{{Topic: "stale-topic"}}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, err := cl.DeleteTopics(ctx, "stale-topic")
	require.NoError(t, err)
	require.Equal(t, []DeleteTopicResult{{Topic: "stale-topic"}}, results)
}

// TestCreateTopicsRetriesOnControllerMoved verifies that a NOT_CONTROLLER
// response clears the cached controller and is retried transparently,
// rather than surfacing as CreateTopics' returned error.
func TestCreateTopicsRetriesOnControllerMoved(t *testing.T) {
	node := kadmin.Node{ID: 1, Addr: "broker-1:9092"}
	nc := newFakeNetworkClient(node)
	mm := &fakeMetadataManager{node: node}

	var mu sync.Mutex
	attempts := 0
	nc.respond = func(req kadmin.Request) kadmin.Response {
		mu.Lock()
		attempts++
		attempt := attempts
		mu.Unlock()
		if attempt == 1 {
			return &createTopicsResponse{results: []CreateTopicResult{
				{Topic: "orders", Err: errForCode(41)}, // NOT_CONTROLLER
			}}
		}
		r := req.(*createTopicsRequest)
		require.Equal(t, []string{"orders"}, r.topics)
		return &createTopicsResponse{results: []CreateTopicResult{{Topic: "orders"}}}
	}

	core, err := kadmin.NewClient(kadmin.WithNetworkClient(nc), kadmin.WithMetadataManager(mm))
	require.NoError(t, err)
	t.Cleanup(func() { core.Close(time.Second) })
	cl := NewClient(core)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, err := cl.CreateTopics(ctx, 3, 2, nil, "orders")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "orders", results[0].Topic)
	require.NoError(t, results[0].Err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, mm.clearControllerCalls)
}

func TestCreateTopicsEmptyArgsSkipsCall(t *testing.T) {
	called := false
	cl := newTestClient(t, func(req kadmin.Request) kadmin.Response {
		called = true
		return &createTopicsResponse{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, err := cl.CreateTopics(ctx, -1, -1, nil)
	require.NoError(t, err)
	require.Nil(t, results)
	require.False(t, called)
}
