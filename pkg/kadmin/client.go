package kadmin

import (
	"fmt"
	"time"
)

// Client is the public entry point: a single background Worker plus the
// Submit/Close surface external callers use. Façade packages (see
// pkg/kadmops) build Call values and hand them to Submit; end users
// rarely touch this package directly. Close is safe to call more than
// once or from multiple goroutines: requestShutdown's earliest-wins cell
// and a receive from a closed channel are both idempotent.
type Client struct {
	cfg cfg
	w   *worker
}

// NewClient starts a Worker goroutine and returns a Client bound to it.
// WithNetworkClient is mandatory; every other Opt has a default drawn
// from defaultCfg.
func NewClient(opts ...Opt) (*Client, error) {
	c := defaultCfg()
	for _, opt := range opts {
		opt.apply(&c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	cl := &Client{cfg: c, w: newWorker(c)}
	go cl.w.run()
	return cl, nil
}

// Submit appends call to the core's submission queue and returns
// immediately; the outcome surfaces on call.Future(). Once the Worker
// has finished its shutdown drain and sealed the submission queue,
// call's Future is failed synchronously with ErrCoreShuttingDown and
// Submit returns that same error. A Call submitted while Close is still
// waiting out maxWait is accepted like any other.
func (cl *Client) Submit(call *Call) error {
	if err := cl.w.submit(call); err != nil {
		call.future.complete(nil, err)
		return err
	}
	return nil
}

// MetadataManager returns the core's MetadataManager, letting Call
// implementations (see pkg/kadmops) call ClearController from within
// OnResponse when they detect a controller-moved response. OnResponse
// runs synchronously on the Worker's own goroutine (see handleResponses
// in worker.go), the same goroutine that owns the MetadataManager, so
// this is always safe.
func (cl *Client) MetadataManager() MetadataManager {
	return cl.w.mm
}

// Do is a convenience wrapper for the common case of submitting a Call
// and blocking for its result, with deadlineMs defaulted to
// now+defaultTimeoutMs if the Call was built with NewCall's deadlineMs
// left at 0.
func (cl *Client) Do(call *Call) (Response, error) {
	if call.DeadlineMs == 0 {
		call.DeadlineMs = cl.w.clock.NowMs() + cl.cfg.defaultTimeoutMs
	}
	if err := cl.Submit(call); err != nil {
		return nil, err
	}
	return call.Future().Wait()
}

// Close requests shutdown drain (spec.md §4.5): every outstanding Call
// is given until maxWait to finish naturally; then the submission queue
// is sealed and anything still outstanding is failed with a
// ShutdownError. Close blocks until the Worker goroutine has exited.
// maxWait is clamped to [0, 1 year]. Close is idempotent; only the first
// call's maxWait takes effect unless a later call requests an earlier
// deadline.
func (cl *Client) Close(maxWait time.Duration) {
	maxWait = clampMaxWait(maxWait)
	cl.w.requestShutdown(cl.w.clock.NowMs() + maxWait.Milliseconds())
	<-cl.w.done
}

func clampMaxWait(d time.Duration) time.Duration {
	const oneYear = 365 * 24 * time.Hour
	if d < 0 {
		return 0
	}
	if d > oneYear {
		return oneYear
	}
	return d
}

// String is a diagnostic summary, not meant for parsing.
func (cl *Client) String() string {
	return fmt.Sprintf("kadmin.Client{defaultTimeout=%dms, maxRetries=%d}", cl.cfg.defaultTimeoutMs, cl.cfg.maxRetries)
}
