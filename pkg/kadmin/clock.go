package kadmin

import "time"

// Clock is a monotonic millisecond time source. The Worker reads it at
// the top of each loop iteration, again before its timeout sweep, again
// after Poll returns, and when timing a completed Call; it never
// otherwise calls time.Now directly, so tests can swap in a fake and deterministic
// clock to exercise deadline and backoff edges exactly.
type Clock interface {
	NowMs() int64
}

// systemClock is the default Clock.
type systemClock struct{}

func newSystemClock() *systemClock { return &systemClock{} }

func (*systemClock) NowMs() int64 { return time.Now().UnixMilli() }
