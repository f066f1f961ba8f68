package kadmintransport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

// Pool is a kadmin.NetworkClient backed by one lazily-dialed TCP
// connection per node, adapted from pkg/kgo's broker/brokerCxn split:
// where broker.go spreads produce/fetch/normal traffic across three
// connection classes per node, Pool keeps exactly one class since every
// administrative request is equally latency-insensitive.
type Pool struct {
	cfg poolCfg

	mu    sync.Mutex
	conns map[int32]*nodeConn

	responses chan kadmin.ClientResponse
	wake      chan struct{}
}

// NewPool constructs a Pool. WithSeeds should usually be given so
// LeastLoadedNode has something to return before any metadata has been
// fetched.
func NewPool(opts ...PoolOpt) *Pool {
	cfg := defaultPoolCfg()
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.dial == nil {
		d := &net.Dialer{Timeout: cfg.dialTimeout}
		cfg.dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}

	p := &Pool{
		cfg:       cfg,
		conns:     make(map[int32]*nodeConn),
		responses: make(chan kadmin.ClientResponse, 4096),
		wake:      make(chan struct{}, 1),
	}
	for _, seed := range cfg.seeds {
		p.getOrCreate(seed)
	}
	return p
}

type pendingReq struct {
	kind kadmin.Response // zero value from Request.ResponseKind()
}

type nodeConn struct {
	pool *Pool
	node kadmin.Node

	mu               sync.Mutex
	conn             net.Conn
	dialing          bool
	connected        bool
	authErr          error
	failCount        int
	nextAttemptMs    int64
	failedSinceCheck bool
	pending          map[int32]pendingReq
	inflight         int
}

func (p *Pool) getOrCreate(node kadmin.Node) *nodeConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if nc, ok := p.conns[node.ID]; ok {
		return nc
	}
	nc := &nodeConn{pool: p, node: node, pending: make(map[int32]pendingReq)}
	p.conns[node.ID] = nc
	return nc
}

func (p *Pool) lookup(nodeID int32) (*nodeConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	nc, ok := p.conns[nodeID]
	return nc, ok
}

// Ready implements kadmin.NetworkClient.
func (p *Pool) Ready(node kadmin.Node, now time.Time) bool {
	nc := p.getOrCreate(node)
	nc.mu.Lock()
	ready := nc.connected
	shouldDial := !nc.connected && !nc.dialing && now.UnixMilli() >= nc.nextAttemptMs
	if shouldDial {
		nc.dialing = true
	}
	nc.mu.Unlock()

	if shouldDial {
		go nc.dial(context.Background())
	}
	return ready
}

// PollDelayMs implements kadmin.NetworkClient.
func (p *Pool) PollDelayMs(node kadmin.Node, now time.Time) int64 {
	nc := p.getOrCreate(node)
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.connected {
		return 0
	}
	delay := nc.nextAttemptMs - now.UnixMilli()
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Send implements kadmin.NetworkClient.
func (p *Pool) Send(node kadmin.Node, correlationID int32, request kadmin.Request, now time.Time) error {
	wireReq, ok := request.(WireRequest)
	if !ok {
		return errors.New("kadmintransport: request does not implement WireRequest")
	}

	nc := p.getOrCreate(node)
	nc.mu.Lock()
	if !nc.connected || nc.conn == nil {
		nc.mu.Unlock()
		return kadmin.ErrConnDead
	}

	frame := appendRequestFrame(nil, request.Key(), request.MaxVersion(), correlationID, &p.cfg.clientID, wireReq)
	if _, err := nc.conn.Write(frame); err != nil {
		ids := nc.failLocked(err)
		nc.mu.Unlock()
		nc.notifyDisconnected(ids)
		return kadmin.ErrConnDead
	}

	nc.pending[correlationID] = pendingReq{kind: request.ResponseKind()}
	nc.inflight++
	nc.mu.Unlock()
	return nil
}

// Poll implements kadmin.NetworkClient.
func (p *Pool) Poll(timeoutMs int64, now time.Time) []kadmin.ClientResponse {
	if timeoutMs < 0 {
		timeoutMs = 0
	}
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()

	var out []kadmin.ClientResponse
	select {
	case r := <-p.responses:
		out = append(out, r)
	case <-p.wake:
	case <-timer.C:
		return nil
	}

	for {
		select {
		case r := <-p.responses:
			out = append(out, r)
			continue
		default:
		}
		break
	}
	return out
}

// LeastLoadedNode implements kadmin.NetworkClient.
func (p *Pool) LeastLoadedNode(now time.Time) (kadmin.Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *nodeConn
	var bestLoad = int(^uint(0) >> 1)
	for _, nc := range p.conns {
		nc.mu.Lock()
		load := nc.inflight
		if !nc.connected {
			load += 1 << 20 // heavily deprioritize unconnected nodes without excluding them
		}
		nc.mu.Unlock()
		if load < bestLoad {
			bestLoad = load
			best = nc
		}
	}
	if best == nil {
		return kadmin.Node{}, false
	}
	return best.node, true
}

// Disconnect implements kadmin.NetworkClient.
func (p *Pool) Disconnect(nodeID int32) {
	nc, ok := p.lookup(nodeID)
	if !ok {
		return
	}
	nc.fail(errors.New("disconnected by admin core"))
}

// Wakeup implements kadmin.NetworkClient.
func (p *Pool) Wakeup() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// AuthenticationException implements kadmin.NetworkClient.
func (p *Pool) AuthenticationException(node kadmin.Node) error {
	nc, ok := p.lookup(node.ID)
	if !ok {
		return nil
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.authErr
}

// ConnectionFailed implements kadmin.NetworkClient.
func (p *Pool) ConnectionFailed(node kadmin.Node) bool {
	nc, ok := p.lookup(node.ID)
	if !ok {
		return false
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	failed := nc.failedSinceCheck
	nc.failedSinceCheck = false
	return failed
}

// Close tears down every open connection. Safe to call once, after the
// owning kadmin.Client has finished its shutdown drain.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := make([]*nodeConn, 0, len(p.conns))
	for _, nc := range p.conns {
		conns = append(conns, nc)
	}
	p.mu.Unlock()

	for _, nc := range conns {
		nc.mu.Lock()
		if nc.conn != nil {
			nc.conn.Close()
		}
		nc.mu.Unlock()
	}
	return nil
}

func (nc *nodeConn) dial(ctx context.Context) {
	conn, err := nc.pool.cfg.dial(ctx, nc.node.Addr)
	if err != nil {
		nc.mu.Lock()
		nc.dialing = false
		nc.failCount++
		nc.nextAttemptMs = time.Now().UnixMilli() + nc.pool.cfg.retryBackoff(nc.failCount).Milliseconds()
		nc.failedSinceCheck = true
		nc.mu.Unlock()
		nc.pool.cfg.logger.Log(kadmin.LogLevelWarn, "dial failed", "node", nc.node.Addr, "err", err)
		return
	}

	if nc.pool.cfg.mechanism != nil {
		if err := authenticate(ctx, conn, nc.pool.cfg.mechanism, nc.node.Addr); err != nil {
			conn.Close()
			nc.mu.Lock()
			nc.dialing = false
			nc.failCount++
			nc.nextAttemptMs = time.Now().UnixMilli() + nc.pool.cfg.retryBackoff(nc.failCount).Milliseconds()
			nc.authErr = err
			nc.failedSinceCheck = true
			nc.mu.Unlock()
			nc.pool.cfg.logger.Log(kadmin.LogLevelWarn, "sasl handshake failed", "node", nc.node.Addr, "err", err)
			return
		}
	}

	nc.mu.Lock()
	nc.conn = conn
	nc.connected = true
	nc.dialing = false
	nc.failCount = 0
	nc.authErr = nil
	nc.mu.Unlock()

	go nc.readLoop(conn)
	nc.pool.Wakeup()
}

func (nc *nodeConn) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		var sizeBuf [4]byte
		if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
			nc.failIfCurrent(conn, err)
			return
		}
		sizeReader := kbin.Reader{Src: sizeBuf[:]}
		size := sizeReader.Int32()
		body := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(r, body); err != nil {
				nc.failIfCurrent(conn, err)
				return
			}
		}

		correlationID, respBody, ok := parseResponseHeader(body)
		if !ok {
			continue
		}

		nc.mu.Lock()
		pr, found := nc.pending[correlationID]
		if found {
			delete(nc.pending, correlationID)
			nc.inflight--
		}
		nc.mu.Unlock()
		if !found {
			continue
		}

		resp := kadmin.ClientResponse{CorrelationID: correlationID, NodeID: nc.node.ID}
		wireResp, ok := pr.kind.(WireResponse)
		if !ok {
			resp.VersionMismatch = errors.New("kadmintransport: response does not implement WireResponse")
		} else if err := wireResp.ReadFrom(respBody); err != nil {
			resp.VersionMismatch = err
		} else {
			resp.Body = pr.kind
		}
		nc.pool.responses <- resp
	}
}

// failLocked marks the connection dead and closes it, returning the set
// of correlation ids that were pending so the caller can fail them with
// a disconnect notice after releasing nc.mu — sending on p.responses
// while holding a per-connection lock risks blocking every other
// connection's readLoop behind a full channel.
func (nc *nodeConn) failLocked(cause error) []int32 {
	if nc.conn != nil {
		nc.conn.Close()
	}
	nc.conn = nil
	nc.connected = false
	nc.failedSinceCheck = true

	ids := make([]int32, 0, len(nc.pending))
	for correlationID := range nc.pending {
		ids = append(ids, correlationID)
	}
	nc.pending = make(map[int32]pendingReq)
	nc.inflight = 0

	nc.pool.cfg.logger.Log(kadmin.LogLevelWarn, "connection failed", "node", nc.node.Addr, "err", cause)
	return ids
}

func (nc *nodeConn) fail(cause error) {
	nc.mu.Lock()
	ids := nc.failLocked(cause)
	nc.mu.Unlock()
	nc.notifyDisconnected(ids)
}

// failIfCurrent fails nc only if conn is still the connection it holds —
// a dial that raced a prior failure and already replaced nc.conn should
// not tear down the new connection because the old reader unwound.
func (nc *nodeConn) failIfCurrent(conn net.Conn, cause error) {
	nc.mu.Lock()
	if nc.conn != conn {
		nc.mu.Unlock()
		return
	}
	ids := nc.failLocked(cause)
	nc.mu.Unlock()
	nc.notifyDisconnected(ids)
}

func (nc *nodeConn) notifyDisconnected(ids []int32) {
	for _, correlationID := range ids {
		nc.pool.responses <- kadmin.ClientResponse{
			CorrelationID: correlationID,
			NodeID:        nc.node.ID,
			Disconnected:  true,
		}
	}
}
