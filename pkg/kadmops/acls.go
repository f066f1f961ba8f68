package kadmops

import (
	"context"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

const (
	keyDescribeACLs int16 = 29
	keyCreateACLs   int16 = 30
	keyDeleteACLs   int16 = 31
)

// ACLResourcePatternType mirrors Kafka's PatternType (ANY, MATCH,
// LITERAL, PREFIXED).
type ACLResourcePatternType int8

const (
	PatternAny ACLResourcePatternType = iota
	PatternMatch
	PatternLiteral
	PatternPrefixed
)

// ACLOperation mirrors Kafka's AclOperation enum. The operations from All
// through IdempotentWrite are named individually; any other numeric value
// round-trips regardless.
type ACLOperation int8

const (
	OpAll ACLOperation = iota + 1
	OpRead
	OpWrite
	OpCreate
	OpDelete
	OpAlter
	OpDescribe
	OpClusterAction
	OpDescribeConfigs
	OpAlterConfigs
	OpIdempotentWrite
)

// ACLPermission mirrors Kafka's AclPermissionType (DENY, ALLOW).
type ACLPermission int8

const (
	PermissionDeny ACLPermission = iota
	PermissionAllow
)

// ACLEntry fully describes one ACL binding: a resource pattern plus the
// principal/host/operation/permission it grants or denies.
type ACLEntry struct {
	ResourceType ResourceType
	ResourceName string
	PatternType  ACLResourcePatternType
	Principal    string
	Host         string
	Operation    ACLOperation
	Permission   ACLPermission
}

func appendACLEntry(dst []byte, e ACLEntry) []byte {
	dst = kbin.AppendInt8(dst, int8(e.ResourceType))
	dst = kbin.AppendString(dst, e.ResourceName)
	dst = kbin.AppendInt8(dst, int8(e.PatternType))
	dst = kbin.AppendString(dst, e.Principal)
	dst = kbin.AppendString(dst, e.Host)
	dst = kbin.AppendInt8(dst, int8(e.Operation))
	dst = kbin.AppendInt8(dst, int8(e.Permission))
	return dst
}

func readACLEntry(r *kbin.Reader) ACLEntry {
	return ACLEntry{
		ResourceType: ResourceType(r.Int8()),
		ResourceName: r.String(),
		PatternType:  ACLResourcePatternType(r.Int8()),
		Principal:    r.String(),
		Host:         r.String(),
		Operation:    ACLOperation(r.Int8()),
		Permission:   ACLPermission(r.Int8()),
	}
}

// --- DescribeACLs ---

// ACLFilter narrows a DescribeACLs/DeleteACLs request. A nil
// ResourceName, Principal or Host, and a PatternType of PatternAny, match
// anything for that field. Every field is sent as given: the zero
// Permission is PermissionDeny, and the zero ResourceType and Operation
// have no named constant.
type ACLFilter struct {
	ResourceType ResourceType
	ResourceName *string
	PatternType  ACLResourcePatternType
	Principal    *string
	Host         *string
	Operation    ACLOperation
	Permission   ACLPermission
}

type describeACLsRequest struct {
	version int16
	filter  ACLFilter
}

func (r *describeACLsRequest) Key() int16         { return keyDescribeACLs }
func (r *describeACLsRequest) MaxVersion() int16  { return 3 }
func (r *describeACLsRequest) SetVersion(v int16) { r.version = v }
func (r *describeACLsRequest) ResponseKind() kadmin.Response {
	return &describeACLsResponse{}
}
func (r *describeACLsRequest) AppendTo(dst []byte) []byte {
	f := r.filter
	dst = kbin.AppendInt8(dst, int8(f.ResourceType))
	dst = kbin.AppendNullableString(dst, f.ResourceName)
	dst = kbin.AppendInt8(dst, int8(f.PatternType))
	dst = kbin.AppendNullableString(dst, f.Principal)
	dst = kbin.AppendNullableString(dst, f.Host)
	dst = kbin.AppendInt8(dst, int8(f.Operation))
	dst = kbin.AppendInt8(dst, int8(f.Permission))
	return dst
}

type describeACLsResponse struct {
	entries []ACLEntry
	err     error
}

func (r *describeACLsResponse) resultErrors() []error { return []error{r.err} }

func (r *describeACLsResponse) Key() int16 { return keyDescribeACLs }

func (r *describeACLsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	errCode := rd.Int16()
	n := rd.Int32()
	entries := make([]ACLEntry, 0, n)
	for i := int32(0); i < n; i++ {
		entries = append(entries, readACLEntry(&rd))
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.entries, r.err = entries, errForCode(errCode)
	return nil
}

// DescribeACLs returns every ACL binding matching filter. A non-nil
// error here is a request-level failure (e.g. authorization to
// describe ACLs at all); the response carries no per-entry errors.
func (cl *Client) DescribeACLs(ctx context.Context, filter ACLFilter) ([]ACLEntry, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &describeACLsRequest{filter: filter}
	resp, err := do(ctx, cl, "DescribeACLs", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	r := resp.(*describeACLsResponse)
	return r.entries, r.err
}

// --- CreateACLs ---

type createACLsRequest struct {
	version int16
	entries []ACLEntry
}

func (r *createACLsRequest) Key() int16         { return keyCreateACLs }
func (r *createACLsRequest) MaxVersion() int16  { return 3 }
func (r *createACLsRequest) SetVersion(v int16) { r.version = v }
func (r *createACLsRequest) ResponseKind() kadmin.Response {
	return &createACLsResponse{}
}
func (r *createACLsRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.entries)))
	for _, e := range r.entries {
		dst = appendACLEntry(dst, e)
	}
	return dst
}

// CreateACLResult is the per-entry outcome of CreateACLs.
type CreateACLResult struct {
	Entry ACLEntry
	Err   error
}

type createACLsResponse struct {
	results []CreateACLResult
}

func (r *createACLsResponse) resultErrors() []error {
	errs := make([]error, len(r.results))
	for i, res := range r.results {
		errs[i] = res.Err
	}
	return errs
}

func (r *createACLsResponse) Key() int16 { return keyCreateACLs }

func (r *createACLsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	n := rd.Int32()
	results := make([]CreateACLResult, 0, n)
	for i := int32(0); i < n; i++ {
		errCode := rd.Int16()
		results = append(results, CreateACLResult{Err: errForCode(errCode)})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.results = results
	return nil
}

// CreateACLs creates every given ACL entry in one request.
func (cl *Client) CreateACLs(ctx context.Context, entries ...ACLEntry) ([]CreateACLResult, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &createACLsRequest{entries: entries}
	resp, err := do(ctx, cl, "CreateACLs", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	results := resp.(*createACLsResponse).results
	for i := range results {
		if i < len(entries) {
			results[i].Entry = entries[i]
		}
	}
	return results, nil
}

// --- DeleteACLs ---

type deleteACLsRequest struct {
	version int16
	filters []ACLFilter
}

func (r *deleteACLsRequest) Key() int16         { return keyDeleteACLs }
func (r *deleteACLsRequest) MaxVersion() int16  { return 3 }
func (r *deleteACLsRequest) SetVersion(v int16) { r.version = v }
func (r *deleteACLsRequest) ResponseKind() kadmin.Response {
	return &deleteACLsResponse{}
}
func (r *deleteACLsRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.filters)))
	for _, f := range r.filters {
		dst = kbin.AppendInt8(dst, int8(f.ResourceType))
		dst = kbin.AppendNullableString(dst, f.ResourceName)
		dst = kbin.AppendInt8(dst, int8(f.PatternType))
		dst = kbin.AppendNullableString(dst, f.Principal)
		dst = kbin.AppendNullableString(dst, f.Host)
		dst = kbin.AppendInt8(dst, int8(f.Operation))
		dst = kbin.AppendInt8(dst, int8(f.Permission))
	}
	return dst
}

// DeleteACLsResult reports, per filter, which entries matched and were
// removed (or the error preventing that).
type DeleteACLsResult struct {
	MatchedEntries []ACLEntry
	Err            error
}

type deleteACLsResponse struct {
	results []DeleteACLsResult
}

func (r *deleteACLsResponse) resultErrors() []error {
	errs := make([]error, len(r.results))
	for i, res := range r.results {
		errs[i] = res.Err
	}
	return errs
}

func (r *deleteACLsResponse) Key() int16 { return keyDeleteACLs }

func (r *deleteACLsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	n := rd.Int32()
	results := make([]DeleteACLsResult, 0, n)
	for i := int32(0); i < n; i++ {
		errCode := rd.Int16()
		matchCount := rd.Int32()
		matched := make([]ACLEntry, 0, matchCount)
		for j := int32(0); j < matchCount; j++ {
			matched = append(matched, readACLEntry(&rd))
		}
		results = append(results, DeleteACLsResult{MatchedEntries: matched, Err: errForCode(errCode)})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.results = results
	return nil
}

// DeleteACLs deletes every ACL entry matching any of filters.
func (cl *Client) DeleteACLs(ctx context.Context, filters ...ACLFilter) ([]DeleteACLsResult, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &deleteACLsRequest{filters: filters}
	resp, err := do(ctx, cl, "DeleteACLs", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	return resp.(*deleteACLsResponse).results, nil
}
