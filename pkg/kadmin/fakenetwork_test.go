package kadmin_test

import (
	"sync"
	"time"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

// fakeNetworkClient is a minimal in-memory NetworkClient: one always-on
// node, synchronous "wire" delivery, and a per-test respond hook that
// decides what a Send should produce. It never opens a socket, mirroring
// the style of pkg/kgo/helpers_test.go's issue3199Client and friends,
// which fake the collaborator rather than talk to a real broker.
type fakeNetworkClient struct {
	mu       sync.Mutex
	node     kadmin.Node
	ready    bool
	respond  func(req kadmin.Request, correlationID int32) kadmin.ClientResponse
	buffered []kadmin.ClientResponse
	wake     chan struct{}
	sent     []sentRequest
	failSend error
	authErr  error
	connFail bool
}

type sentRequest struct {
	NodeID        int32
	CorrelationID int32
	Request       kadmin.Request
}

func newFakeNetworkClient(node kadmin.Node) *fakeNetworkClient {
	return &fakeNetworkClient{
		node:  node,
		ready: true,
		wake:  make(chan struct{}, 1),
	}
}

func (f *fakeNetworkClient) Ready(kadmin.Node, time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeNetworkClient) PollDelayMs(kadmin.Node, time.Time) int64 { return 0 }

func (f *fakeNetworkClient) Send(node kadmin.Node, correlationID int32, req kadmin.Request, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return f.failSend
	}
	f.sent = append(f.sent, sentRequest{NodeID: node.ID, CorrelationID: correlationID, Request: req})
	if f.respond != nil {
		f.buffered = append(f.buffered, f.respond(req, correlationID))
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeNetworkClient) Poll(timeoutMs int64, _ time.Time) []kadmin.ClientResponse {
	f.mu.Lock()
	if len(f.buffered) > 0 {
		out := f.buffered
		f.buffered = nil
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
	out := f.buffered
	f.buffered = nil
	return out
}

func (f *fakeNetworkClient) LeastLoadedNode(time.Time) (kadmin.Node, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.node, true
}

func (f *fakeNetworkClient) Disconnect(int32) {}

func (f *fakeNetworkClient) Wakeup() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *fakeNetworkClient) AuthenticationException(kadmin.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authErr
}

func (f *fakeNetworkClient) ConnectionFailed(kadmin.Node) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connFail
}

func (f *fakeNetworkClient) push(resp kadmin.ClientResponse) {
	f.mu.Lock()
	f.buffered = append(f.buffered, resp)
	f.mu.Unlock()
	f.Wakeup()
}

// fakeRequest/fakeResponse are the simplest possible Request/Response
// pair, standing in for a kadmops-built request in tests that don't care
// about wire encoding at all.
type fakeRequest struct {
	key     int16
	version int16
}

func (r *fakeRequest) Key() int16                    { return r.key }
func (r *fakeRequest) MaxVersion() int16             { return 9 }
func (r *fakeRequest) SetVersion(v int16)            { r.version = v }
func (r *fakeRequest) ResponseKind() kadmin.Response { return &fakeResponse{key: r.key} }

type fakeResponse struct {
	key   int16
	value string
}

func (r *fakeResponse) Key() int16 { return r.key }

// fakeMetadataManager is a MetadataManager double that is ready from
// construction with a fixed node set and controller, so tests exercising
// SelectLeastLoaded/SelectController/SelectConstantID don't need to wire
// up a real metadata-refresh Call.
type fakeMetadataManager struct {
	mu           sync.Mutex
	nodes        map[int32]kadmin.Node
	controllerID int32
	updates      int
}

func newFakeMetadataManager(controllerID int32, nodes ...kadmin.Node) *fakeMetadataManager {
	m := &fakeMetadataManager{nodes: make(map[int32]kadmin.Node, len(nodes)), controllerID: controllerID}
	for _, n := range nodes {
		m.nodes[n.ID] = n
	}
	return m
}

func (m *fakeMetadataManager) IsReady() bool { return true }

func (m *fakeMetadataManager) Controller() (kadmin.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[m.controllerID]
	return n, ok
}

func (m *fakeMetadataManager) NodeByID(id int32) (kadmin.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	return n, ok
}

func (m *fakeMetadataManager) Nodes() []kadmin.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]kadmin.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out
}

// MetadataFetchDelayMs reports a large delay so computePollTimeout never
// shortens its poll window chasing a refresh this fake will never serve.
func (m *fakeMetadataManager) MetadataFetchDelayMs(int64) int64 { return int64(time.Hour / time.Millisecond) }

func (m *fakeMetadataManager) RequestUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
}

func (m *fakeMetadataManager) TransitionToUpdatePending(int64)      {}
func (m *fakeMetadataManager) Update(kadmin.ClusterSnapshot, int64) {}
func (m *fakeMetadataManager) UpdateFailed(error)                   {}

func (m *fakeMetadataManager) ClearController() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllerID = -1
}
