package kadmintransport

import (
	"github.com/twmb/franz-go/pkg/sasl/kerberos"
)

// WithKerberos is a convenience wrapper around WithSASL for the common
// case of a single, already-logged-in Kerberos client: it is kept thin
// on purpose, delegating the entire GSSAPI handshake to
// pkg/sasl/kerberos rather than reimplementing it here.
func WithKerberos(auth kerberos.Auth) PoolOpt {
	return WithSASL(auth.AsMechanism())
}
