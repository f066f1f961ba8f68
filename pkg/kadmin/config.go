package kadmin

import (
	"fmt"
	"time"
)

// Opt configures a Client. Options are applied in the order given to
// NewClient, each mutating the cfg built from defaultCfg.
type Opt interface {
	apply(*cfg)
}

type clientOpt struct{ fn func(*cfg) }

func (opt clientOpt) apply(c *cfg) { opt.fn(c) }

// cfg holds every knob recognized by the core (spec.md §6) plus the
// collaborators a Client needs to construct a Worker.
type cfg struct {
	defaultTimeoutMs    int64
	retryBackoff        func(tries int) time.Duration
	maxRetries          int
	safetyPollCeilingMs int64

	metadataMinAge time.Duration
	metadataMaxAge time.Duration

	logger Logger
	hooks  hooks

	nc NetworkClient
	mm MetadataManager

	metadataRequestBuilder func(timeoutMs int32) (Request, error)
	metadataDecoder        func(Response) (ClusterSnapshot, error)
}

func (c *cfg) validate() error {
	if c.defaultTimeoutMs <= 0 {
		return fmt.Errorf("default timeout %dms must be positive", c.defaultTimeoutMs)
	}
	if c.safetyPollCeilingMs <= 0 {
		return fmt.Errorf("safety poll ceiling %dms must be positive", c.safetyPollCeilingMs)
	}
	if c.maxRetries < 0 {
		return fmt.Errorf("max retries %d must not be negative", c.maxRetries)
	}
	if c.nc == nil {
		return fmt.Errorf("no NetworkClient configured: use WithNetworkClient")
	}
	return nil
}

func defaultCfg() cfg {
	return cfg{
		defaultTimeoutMs:    30 * 1000,
		retryBackoff:        func(int) time.Duration { return 100 * time.Millisecond },
		maxRetries:          math32BitRetries,
		safetyPollCeilingMs: 20 * 60 * 1000,

		metadataMinAge: 10 * time.Second,
		metadataMaxAge: 5 * time.Minute,

		logger: &nopLogger{},
	}
}

// math32BitRetries matches the teacher's "effectively unbounded" default
// retry count (pkg/kgo/config.go uses math.MaxInt32 for the same knob);
// named rather than inlined since a bare literal here reads like a
// typo'd small number.
const math32BitRetries = 1<<31 - 1

// WithDefaultTimeout sets the per-Call deadline used by façade helpers
// that don't supply their own, overriding the default 30s.
func WithDefaultTimeout(d time.Duration) Opt {
	return clientOpt{func(c *cfg) { c.defaultTimeoutMs = d.Milliseconds() }}
}

// WithRetryBackoff sets the gap between attempts of the same Call,
// overriding the default flat 100ms.
func WithRetryBackoff(backoff func(tries int) time.Duration) Opt {
	return clientOpt{func(c *cfg) { c.retryBackoff = backoff }}
}

// WithMaxRetries sets the number of retry attempts beyond the first,
// overriding the default of effectively unbounded.
func WithMaxRetries(n int) Opt {
	return clientOpt{func(c *cfg) { c.maxRetries = n }}
}

// WithSafetyPollCeiling bounds how long a single NetworkClient.Poll call
// may block regardless of any other deadline, overriding the default of
// 20 minutes.
func WithSafetyPollCeiling(d time.Duration) Opt {
	return clientOpt{func(c *cfg) { c.safetyPollCeilingMs = d.Milliseconds() }}
}

// WithMetadataMinAge sets the minimum gap between metadata refreshes
// triggered by RequestUpdate, overriding the default 10s.
func WithMetadataMinAge(d time.Duration) Opt {
	return clientOpt{func(c *cfg) { c.metadataMinAge = d }}
}

// WithMetadataMaxAge sets the unconditional metadata refresh period,
// overriding the default 5m.
func WithMetadataMaxAge(d time.Duration) Opt {
	return clientOpt{func(c *cfg) { c.metadataMaxAge = d }}
}

// WithLogger installs a Logger, overriding the default no-op logger.
func WithLogger(l Logger) Opt {
	return clientOpt{func(c *cfg) { c.logger = l }}
}

// WithHooks registers hooks to be called as the Worker processes Calls.
// Hooks accumulate across multiple WithHooks options.
func WithHooks(hs ...Hook) Opt {
	return clientOpt{func(c *cfg) { c.hooks = append(c.hooks, hs...) }}
}

// WithNetworkClient installs the NetworkClient collaborator. Required:
// NewClient returns an error if this is never set.
func WithNetworkClient(nc NetworkClient) Opt {
	return clientOpt{func(c *cfg) { c.nc = nc }}
}

// WithMetadataManager installs a MetadataManager, overriding the default
// in-memory implementation built from WithMetadataMinAge/WithMetadataMaxAge.
func WithMetadataManager(mm MetadataManager) Opt {
	return clientOpt{func(c *cfg) { c.mm = mm }}
}

// WithMetadataRefresh installs the wire bindings for the in-band
// metadata-refresh Call (spec.md §4.4): build constructs a node-topology
// request for the given attempt timeout, decode turns a successfully
// received response back into a ClusterSnapshot. Without this option the
// Worker never issues a refresh Call on its own; a MetadataManager
// installed via WithMetadataManager (or fed out-of-band by a test) is
// still consulted for every node selection.
func WithMetadataRefresh(build func(timeoutMs int32) (Request, error), decode func(Response) (ClusterSnapshot, error)) Opt {
	return clientOpt{func(c *cfg) {
		c.metadataRequestBuilder = build
		c.metadataDecoder = decode
	}}
}
