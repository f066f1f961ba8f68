package kadmintransport

import (
	"github.com/twmb/franz-go/pkg/kbin"
)

// WireRequest is the encode-side counterpart a kadmin.Request must also
// implement to be sendable over Pool: kadmin.Request itself stays
// abstract (the core never looks at bytes), but something has to know
// how to turn a concrete request into wire bytes.
type WireRequest interface {
	// AppendTo appends this request's body (everything after the
	// standard header Pool writes itself) to dst and returns the
	// extended slice.
	AppendTo(dst []byte) []byte
}

// WireResponse is the decode-side counterpart a kadmin.Response must
// also implement to be received over Pool.
type WireResponse interface {
	// ReadFrom decodes this response's body (everything after the
	// standard header Pool has already stripped) from data.
	ReadFrom(data []byte) error
}

// appendRequestFrame builds a full length-prefixed request frame: a
// 4-byte size, then a standard header (key, version, correlation id,
// nullable client id string), then the request's own body.
func appendRequestFrame(dst []byte, key, version int16, correlationID int32, clientID *string, body WireRequest) []byte {
	sizeAt := len(dst)
	dst = kbin.AppendInt32(dst, 0) // placeholder, patched below
	bodyStart := len(dst)

	dst = kbin.AppendInt16(dst, key)
	dst = kbin.AppendInt16(dst, version)
	dst = kbin.AppendInt32(dst, correlationID)
	dst = kbin.AppendNullableString(dst, clientID)
	dst = body.AppendTo(dst)

	size := int32(len(dst) - bodyStart)
	sizeBuf := kbin.AppendInt32(nil, size)
	copy(dst[sizeAt:sizeAt+4], sizeBuf)
	return dst
}

// parseResponseHeader reads the correlation id off the front of a
// length-delimited response frame body (the size prefix itself is read
// separately by the connection's read loop), returning the remainder for
// WireResponse.ReadFrom. ok is false if frame was too short to even hold
// a correlation id.
func parseResponseHeader(frame []byte) (correlationID int32, body []byte, ok bool) {
	r := kbin.Reader{Src: frame}
	correlationID = r.Int32()
	if !r.Ok() {
		return 0, nil, false
	}
	return correlationID, r.Src, true
}
