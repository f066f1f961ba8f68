// Package kadmin implements the asynchronous call-dispatch core shared by
// every cluster-administrative operation: topic and partition lifecycle,
// configuration, ACLs, consumer-group inspection, delegation tokens,
// reassignment, log-directory queries, and quota management.
//
// The package owns a single long-lived Worker goroutine that multiplexes
// many concurrently submitted, independently deadlined, retriable Calls
// onto a shared NetworkClient, picking a destination node per Call from
// metadata learned in-band, negotiating protocol-version downgrades,
// honoring per-call deadlines and retry backoff, and draining cleanly on
// shutdown.
//
// Wire encoding/decoding, the low-level socket plumbing, and the typed
// per-operation façades are intentionally not part of this package; see
// pkg/kadmintransport and pkg/kadmops.
package kadmin
