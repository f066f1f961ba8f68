package kadmops

import (
	"errors"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kbin"
)

// appendConfig appends a name/nullable-value pair; appendStringMap uses it
// for every entry of a config map (topic configs, resource configs).
func appendConfig(dst []byte, k string, v *string) []byte {
	dst = kbin.AppendString(dst, k)
	dst = kbin.AppendNullableString(dst, v)
	return dst
}

func appendStringMap(dst []byte, m map[string]*string) []byte {
	dst = kbin.AppendInt32(dst, int32(len(m)))
	for k, v := range m {
		dst = appendConfig(dst, k, v)
	}
	return dst
}

func readStringMap(r *kbin.Reader) map[string]*string {
	n := r.Int32()
	if n <= 0 {
		return nil
	}
	m := make(map[string]*string, n)
	for i := int32(0); i < n; i++ {
		k := r.String()
		v := r.NullableString()
		m[k] = v
	}
	return m
}

func appendStrings(dst []byte, ss []string) []byte {
	dst = kbin.AppendInt32(dst, int32(len(ss)))
	for _, s := range ss {
		dst = kbin.AppendString(dst, s)
	}
	return dst
}

func readStrings(r *kbin.Reader) []string {
	n := r.Int32()
	if n <= 0 {
		return nil
	}
	ss := make([]string, n)
	for i := range ss {
		ss[i] = r.String()
	}
	return ss
}

// errForCode maps a Kafka-style error code to a *kerr.Error, or nil for
// code 0, mirroring pkg/kadm's use of kerr for per-item response errors.
func errForCode(code int16) error {
	if code == 0 {
		return nil
	}
	return kerr.Code(code)
}

var errShortResponse = errors.New("kadmops: response too short to decode")

func checkComplete(r *kbin.Reader) error {
	if err := r.Complete(); err != nil {
		return errShortResponse
	}
	return nil
}

// resultErrors is implemented by every response type whose request is
// routed to the controller, whether its errors come as a single top-level
// field or one per item; the group and coordinator responses do not
// implement it. do's OnResponse uses it to detect a stale
// cached controller/coordinator and clear it before the retriable error
// is handed back to retry.go, the same recovery KafkaAdminClient.java
// applies when a controller-bound call comes back NOT_CONTROLLER.
type resultErrors interface {
	resultErrors() []error
}

// controllerMovedErr returns the first NOT_CONTROLLER/NOT_COORDINATOR
// error found in errs, or nil if none of them is one.
func controllerMovedErr(errs []error) error {
	for _, err := range errs {
		if err == nil {
			continue
		}
		var kerrErr *kerr.Error
		if !errors.As(err, &kerrErr) {
			continue
		}
		if kerrErr.Code == kerr.NotController.Code || kerrErr.Code == kerr.NotCoordinator.Code {
			return err
		}
	}
	return nil
}
