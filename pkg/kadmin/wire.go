package kadmin

import "github.com/twmb/franz-go/pkg/kversion"

// Request is the abstract wire-level request a Call hands to the
// NetworkClient. Encoding, the attempt-timeout field, and version
// negotiation are all owned by whatever concrete Request implementation
// a Call constructs in CreateRequest; the Worker never inspects a
// Request's bytes.
//
// The shape matches what pkg/kgo's broker.go already expects of a
// kmsg.Request: a request knows its own protocol key, the highest
// version it can speak, how to pin itself to a negotiated version, and
// what Response type to expect.
type Request interface {
	// Key identifies the request type (topics, configs, ACLs, ...).
	Key() int16
	// MaxVersion is the highest protocol version this Request knows how
	// to encode.
	MaxVersion() int16
	// SetVersion pins the request to a version negotiated with the
	// destination node (or, absent negotiation, MaxVersion).
	SetVersion(int16)
	// ResponseKind returns a zero-value Response of the kind this
	// Request expects back, for the NetworkClient to decode into.
	ResponseKind() Response
}

// Response is the abstract wire-level response a Call receives back. It
// carries no behavior the core needs; Call.OnResponse type-asserts it to
// the concrete type its own CreateRequest produced.
type Response interface {
	// Key mirrors the Request's Key, so response dispatch can sanity
	// check it decoded the kind it expected.
	Key() int16
}

// downgradeBudget returns the number of unsupported-version downgrades a
// Call is allowed to take for the given request key before the core
// treats the error as non-retriable (spec.md §9's open question).
//
// It is the count of versions known below the request's current version
// for that key in the stable protocol table: once a Call has tried every
// version Kafka has ever shipped for that key, a further downgrade
// cannot possibly help.
func downgradeBudget(key, fromVersion int16) int {
	stable := kversion.Stable()
	known, ok := stable.LookupMaxKeyVersion(key)
	if !ok || known < 0 {
		return 1 // unknown key: allow exactly one blind downgrade attempt
	}
	if fromVersion <= 0 {
		return 0
	}
	budget := int(fromVersion)
	if budget > int(known)+1 {
		budget = int(known) + 1
	}
	return budget
}
