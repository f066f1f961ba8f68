package kadmintransport

import (
	"context"
	"math"
	"net"
	"time"

	"github.com/twmb/franz-go/pkg/sasl"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

// DialFunc opens a raw connection to addr. The default is
// (&net.Dialer{Timeout: 10s}).DialContext.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

type poolCfg struct {
	seeds        []kadmin.Node
	dial         DialFunc
	dialTimeout  time.Duration
	clientID     string
	mechanism    sasl.Mechanism
	retryBackoff func(fails int) time.Duration
	logger       kadmin.Logger
}

func defaultPoolCfg() poolCfg {
	return poolCfg{
		dialTimeout: 10 * time.Second,
		clientID:    "kadmin",
		retryBackoff: func(fails int) time.Duration {
			d := time.Duration(fails) * 100 * time.Millisecond
			if d > 5*time.Second {
				d = 5 * time.Second
			}
			return d
		},
		logger: kadmin.BasicLogger(kadmin.LogLevelNone, false),
	}
}

// PoolOpt configures a Pool at construction.
type PoolOpt interface{ apply(*poolCfg) }

type poolOpt func(*poolCfg)

func (o poolOpt) apply(c *poolCfg) { o(c) }

// WithSeeds supplies the bootstrap addresses used before any metadata
// has been fetched. Each seed is assigned a synthetic negative node id
// via unknownSeedID so LeastLoadedNode has something to return before
// the MetadataManager knows any real node ids.
func WithSeeds(addrs ...string) PoolOpt {
	return poolOpt(func(c *poolCfg) {
		for i, addr := range addrs {
			c.seeds = append(c.seeds, kadmin.Node{ID: unknownSeedID(i), Addr: addr})
		}
	})
}

// WithDialer overrides how Pool opens TCP connections. Mostly useful in
// tests, to substitute an in-memory pipe.
func WithDialer(dial DialFunc) PoolOpt {
	return poolOpt(func(c *poolCfg) { c.dial = dial })
}

// WithDialTimeout bounds how long a single connection attempt may take.
// Ignored if WithDialer is also given.
func WithDialTimeout(d time.Duration) PoolOpt {
	return poolOpt(func(c *poolCfg) { c.dialTimeout = d })
}

// WithClientID sets the client id sent in every request header.
func WithClientID(id string) PoolOpt {
	return poolOpt(func(c *poolCfg) { c.clientID = id })
}

// WithSASL enables a SASL handshake immediately after each connection
// dials successfully, before it is marked ready.
func WithSASL(mechanism sasl.Mechanism) PoolOpt {
	return poolOpt(func(c *poolCfg) { c.mechanism = mechanism })
}

// WithReconnectBackoff overrides the backoff applied after a failed dial,
// keyed by the connection's consecutive failure count.
func WithReconnectBackoff(f func(fails int) time.Duration) PoolOpt {
	return poolOpt(func(c *poolCfg) { c.retryBackoff = f })
}

// WithPoolLogger sets the logger Pool uses for connection lifecycle
// events (dial failures, disconnects, SASL failures).
func WithPoolLogger(l kadmin.Logger) PoolOpt {
	return poolOpt(func(c *poolCfg) { c.logger = l })
}

// unknownSeedID mirrors pkg/kgo/broker.go's technique for giving a seed
// address a stable node id before any metadata response has assigned it
// a real one: seeds start at MinInt32 so they never collide with a
// controller ID map that might know of a real -1 ID.
func unknownSeedID(seedNum int) int32 {
	return int32(math.MinInt32 + seedNum)
}
