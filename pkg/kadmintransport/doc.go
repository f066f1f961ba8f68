// Package kadmintransport implements kadmin.NetworkClient over a pool of
// per-node TCP connections: one connection per broker, lazily dialed,
// optionally SASL-authenticated, framed the way a Kafka-style broker
// protocol frames requests and responses (a 4-byte big-endian length
// prefix around a correlation-id-tagged body).
//
// Wire encoding of any given request/response pair is left to the
// concrete type; Pool only requires that it additionally implement
// WireRequest/WireResponse (see wire.go) beyond kadmin.Request/Response.
// Adapted from twmb/franz-go's pkg/kgo broker/brokerCxn split, generalized
// from Kafka's produce/fetch/normal three-connection-class model down to
// one connection class since every administrative request is equally
// latency-insensitive.
package kadmintransport
