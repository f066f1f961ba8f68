package kadmops

import (
	"context"
	"math"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

const (
	keyDescribeClientQuotas int16 = 48
	keyAlterClientQuotas    int16 = 49
)

// QuotaEntityType mirrors Kafka's ClientQuotaEntity component types.
type QuotaEntityType int8

const (
	EntityUser QuotaEntityType = iota
	EntityClientID
	EntityIP
)

// QuotaEntityComponent names one dimension of a quota entity; a nil
// Name matches the "default" entity for that type.
type QuotaEntityComponent struct {
	Type QuotaEntityType
	Name *string
}

// QuotaMatch pairs a component with a filter mode used by
// DescribeClientQuotas: Name set + Match true means exact match, Name
// nil + Match true means match only the type's default entity, Match
// false means match any entity of that type.
type QuotaMatch struct {
	Type  QuotaEntityType
	Name  *string
	Match bool
}

func appendEntityComponent(dst []byte, c QuotaEntityComponent) []byte {
	dst = kbin.AppendInt8(dst, int8(c.Type))
	dst = kbin.AppendNullableString(dst, c.Name)
	return dst
}

// --- DescribeClientQuotas ---

type describeClientQuotasRequest struct {
	version int16
	filters []QuotaMatch
	strict  bool
}

func (r *describeClientQuotasRequest) Key() int16         { return keyDescribeClientQuotas }
func (r *describeClientQuotasRequest) MaxVersion() int16  { return 1 }
func (r *describeClientQuotasRequest) SetVersion(v int16) { r.version = v }
func (r *describeClientQuotasRequest) ResponseKind() kadmin.Response {
	return &describeClientQuotasResponse{}
}
func (r *describeClientQuotasRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.filters)))
	for _, f := range r.filters {
		dst = kbin.AppendInt8(dst, int8(f.Type))
		dst = kbin.AppendNullableString(dst, f.Name)
		dst = kbin.AppendBool(dst, f.Match)
	}
	dst = kbin.AppendBool(dst, r.strict)
	return dst
}

// QuotaEntry pairs a matched entity with the numeric quota values set on
// it (bytes/sec in, bytes/sec out, request percentage, and so on, keyed
// by Kafka's quota config name).
type QuotaEntry struct {
	Entity []QuotaEntityComponent
	Values map[string]float64
}

type describeClientQuotasResponse struct {
	err     error
	entries []QuotaEntry
}

func (r *describeClientQuotasResponse) resultErrors() []error { return []error{r.err} }

func (r *describeClientQuotasResponse) Key() int16 { return keyDescribeClientQuotas }

func (r *describeClientQuotasResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	errCode := rd.Int16()
	entryCount := rd.Int32()
	entries := make([]QuotaEntry, 0, entryCount)
	for i := int32(0); i < entryCount; i++ {
		compCount := rd.Int32()
		entity := make([]QuotaEntityComponent, 0, compCount)
		for j := int32(0); j < compCount; j++ {
			entity = append(entity, QuotaEntityComponent{Type: QuotaEntityType(rd.Int8()), Name: rd.NullableString()})
		}
		valueCount := rd.Int32()
		values := make(map[string]float64, valueCount)
		for j := int32(0); j < valueCount; j++ {
			key := rd.String()
			values[key] = math.Float64frombits(uint64(rd.Int64()))
		}
		entries = append(entries, QuotaEntry{Entity: entity, Values: values})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.err, r.entries = errForCode(errCode), entries
	return nil
}

// DescribeClientQuotas returns every quota entry matching filters.
func (cl *Client) DescribeClientQuotas(ctx context.Context, strict bool, filters ...QuotaMatch) ([]QuotaEntry, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &describeClientQuotasRequest{filters: filters, strict: strict}
	resp, err := do(ctx, cl, "DescribeClientQuotas", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	r := resp.(*describeClientQuotasResponse)
	return r.entries, r.err
}

// --- AlterClientQuotas ---

// QuotaOp sets or removes (Remove true, Value ignored) one quota value
// on one entity.
type QuotaOp struct {
	Entity []QuotaEntityComponent
	Key    string
	Value  float64
	Remove bool
}

type alterClientQuotasRequest struct {
	version      int16
	ops          []QuotaOp
	validateOnly bool
}

func (r *alterClientQuotasRequest) Key() int16         { return keyAlterClientQuotas }
func (r *alterClientQuotasRequest) MaxVersion() int16  { return 1 }
func (r *alterClientQuotasRequest) SetVersion(v int16) { r.version = v }
func (r *alterClientQuotasRequest) ResponseKind() kadmin.Response {
	return &alterClientQuotasResponse{}
}
func (r *alterClientQuotasRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.ops)))
	for _, op := range r.ops {
		dst = kbin.AppendInt32(dst, int32(len(op.Entity)))
		for _, c := range op.Entity {
			dst = appendEntityComponent(dst, c)
		}
		dst = kbin.AppendString(dst, op.Key)
		dst = kbin.AppendInt64(dst, int64(math.Float64bits(op.Value)))
		dst = kbin.AppendBool(dst, op.Remove)
	}
	dst = kbin.AppendBool(dst, r.validateOnly)
	return dst
}

// AlterQuotaResult is the per-entity outcome of AlterClientQuotas.
type AlterQuotaResult struct {
	Entity []QuotaEntityComponent
	Err    error
}

type alterClientQuotasResponse struct {
	results []AlterQuotaResult
}

func (r *alterClientQuotasResponse) resultErrors() []error {
	errs := make([]error, len(r.results))
	for i, res := range r.results {
		errs[i] = res.Err
	}
	return errs
}

func (r *alterClientQuotasResponse) Key() int16 { return keyAlterClientQuotas }

func (r *alterClientQuotasResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	n := rd.Int32()
	results := make([]AlterQuotaResult, 0, n)
	for i := int32(0); i < n; i++ {
		errCode := rd.Int16()
		compCount := rd.Int32()
		entity := make([]QuotaEntityComponent, 0, compCount)
		for j := int32(0); j < compCount; j++ {
			entity = append(entity, QuotaEntityComponent{Type: QuotaEntityType(rd.Int8()), Name: rd.NullableString()})
		}
		results = append(results, AlterQuotaResult{Entity: entity, Err: errForCode(errCode)})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.results = results
	return nil
}

// AlterClientQuotas applies every op in one request.
func (cl *Client) AlterClientQuotas(ctx context.Context, dry bool, ops ...QuotaOp) ([]AlterQuotaResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &alterClientQuotasRequest{ops: ops, validateOnly: dry}
	resp, err := do(ctx, cl, "AlterClientQuotas", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	return resp.(*alterClientQuotasResponse).results, nil
}
