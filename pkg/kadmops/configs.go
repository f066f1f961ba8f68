package kadmops

import (
	"context"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

const (
	keyDescribeConfigs         int16 = 32
	keyAlterConfigs            int16 = 33
	keyIncrementalAlterConfigs int16 = 44
)

// ResourceType mirrors Kafka's ConfigResource.Type enum, kept as a
// closed set of the two kinds this façade issues config requests for.
type ResourceType int8

const (
	ResourceTopic  ResourceType = 2
	ResourceBroker ResourceType = 4
)

// ConfigEntry is one key/value pair of a resource's configuration.
type ConfigEntry struct {
	Name      string
	Value     *string
	ReadOnly  bool
	Sensitive bool
	Source    int8
}

// ResourceConfig is the full describe-configs result for one resource.
type ResourceConfig struct {
	Type    ResourceType
	Name    string
	Entries []ConfigEntry
	Err     error
}

func appendResourceRef(dst []byte, typ ResourceType, name string) []byte {
	dst = kbin.AppendInt8(dst, int8(typ))
	dst = kbin.AppendString(dst, name)
	return dst
}

// --- DescribeConfigs ---

type describeConfigsRequest struct {
	version   int16
	resources []struct {
		typ  ResourceType
		name string
		keys []string
	}
}

func (r *describeConfigsRequest) Key() int16         { return keyDescribeConfigs }
func (r *describeConfigsRequest) MaxVersion() int16  { return 4 }
func (r *describeConfigsRequest) SetVersion(v int16) { r.version = v }
func (r *describeConfigsRequest) ResponseKind() kadmin.Response {
	return &describeConfigsResponse{}
}
func (r *describeConfigsRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.resources)))
	for _, res := range r.resources {
		dst = appendResourceRef(dst, res.typ, res.name)
		dst = appendStrings(dst, res.keys)
	}
	return dst
}

type describeConfigsResponse struct {
	results []ResourceConfig
}

func (r *describeConfigsResponse) resultErrors() []error {
	errs := make([]error, len(r.results))
	for i, res := range r.results {
		errs[i] = res.Err
	}
	return errs
}

func (r *describeConfigsResponse) Key() int16 { return keyDescribeConfigs }

func (r *describeConfigsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	n := rd.Int32()
	results := make([]ResourceConfig, 0, n)
	for i := int32(0); i < n; i++ {
		errCode := rd.Int16()
		typ := ResourceType(rd.Int8())
		name := rd.String()
		entryCount := rd.Int32()
		entries := make([]ConfigEntry, 0, entryCount)
		for j := int32(0); j < entryCount; j++ {
			entries = append(entries, ConfigEntry{
				Name:      rd.String(),
				Value:     rd.NullableString(),
				ReadOnly:  rd.Bool(),
				Sensitive: rd.Bool(),
				Source:    rd.Int8(),
			})
		}
		results = append(results, ResourceConfig{Type: typ, Name: name, Entries: entries, Err: errForCode(errCode)})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.results = results
	return nil
}

// DescribeConfigs returns the current configuration of each named
// resource. keys, if non-empty for a resource, limits which config keys
// are returned; pass nil to get every non-default key.
func (cl *Client) DescribeConfigs(ctx context.Context, typ ResourceType, keys []string, names ...string) ([]ResourceConfig, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &describeConfigsRequest{}
	for _, n := range names {
		req.resources = append(req.resources, struct {
			typ  ResourceType
			name string
			keys []string
		}{typ, n, keys})
	}

	sel := kadmin.LeastLoaded()
	if typ == ResourceBroker {
		sel = kadmin.ToController()
	}
	resp, err := do(ctx, cl, "DescribeConfigs", sel, req, nil)
	if err != nil {
		return nil, err
	}
	return resp.(*describeConfigsResponse).results, nil
}

// --- AlterConfigs (full replace) ---

type alterConfigsRequest struct {
	version      int16
	validateOnly bool
	resources    []struct {
		typ     ResourceType
		name    string
		configs map[string]*string
	}
}

func (r *alterConfigsRequest) Key() int16         { return keyAlterConfigs }
func (r *alterConfigsRequest) MaxVersion() int16  { return 2 }
func (r *alterConfigsRequest) SetVersion(v int16) { r.version = v }
func (r *alterConfigsRequest) ResponseKind() kadmin.Response {
	return &alterConfigsResponse{}
}
func (r *alterConfigsRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.resources)))
	for _, res := range r.resources {
		dst = appendResourceRef(dst, res.typ, res.name)
		dst = appendStringMap(dst, res.configs)
	}
	dst = kbin.AppendBool(dst, r.validateOnly)
	return dst
}

// AlterConfigResult is the per-resource outcome of an alter-configs call.
type AlterConfigResult struct {
	Type ResourceType
	Name string
	Err  error
}

type alterConfigsResponse struct {
	results []AlterConfigResult
}

func (r *alterConfigsResponse) resultErrors() []error {
	errs := make([]error, len(r.results))
	for i, res := range r.results {
		errs[i] = res.Err
	}
	return errs
}

func (r *alterConfigsResponse) Key() int16 { return keyAlterConfigs }

func (r *alterConfigsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	n := rd.Int32()
	results := make([]AlterConfigResult, 0, n)
	for i := int32(0); i < n; i++ {
		errCode := rd.Int16()
		typ := ResourceType(rd.Int8())
		name := rd.String()
		results = append(results, AlterConfigResult{Type: typ, Name: name, Err: errForCode(errCode)})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.results = results
	return nil
}

// AlterConfigs replaces the full configuration of each resource with
// configs. Kafka's own semantics: this is a full overwrite, not a merge
// — anything not present reverts to its default. See
// IncrementalAlterConfigs for set/delete/append/subtract semantics.
func (cl *Client) AlterConfigs(ctx context.Context, typ ResourceType, configs map[string]*string, names ...string) ([]AlterConfigResult, error) {
	return cl.alterConfigs(ctx, false, typ, configs, names)
}

// ValidateAlterConfigs is AlterConfigs with ValidateOnly set.
func (cl *Client) ValidateAlterConfigs(ctx context.Context, typ ResourceType, configs map[string]*string, names ...string) ([]AlterConfigResult, error) {
	return cl.alterConfigs(ctx, true, typ, configs, names)
}

func (cl *Client) alterConfigs(ctx context.Context, dry bool, typ ResourceType, configs map[string]*string, names []string) ([]AlterConfigResult, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &alterConfigsRequest{validateOnly: dry}
	for _, n := range names {
		req.resources = append(req.resources, struct {
			typ     ResourceType
			name    string
			configs map[string]*string
		}{typ, n, configs})
	}

	sel := kadmin.LeastLoaded()
	if typ == ResourceBroker {
		sel = kadmin.ToController()
	}
	resp, err := do(ctx, cl, "AlterConfigs", sel, req, nil)
	if err != nil {
		return nil, err
	}
	return resp.(*alterConfigsResponse).results, nil
}

// --- IncrementalAlterConfigs ---

// AlterConfigOp is one incremental change to a single config key,
// mirroring Kafka's AlterConfigOp.OpType: Set, Delete, Append, Subtract.
type AlterConfigOp int8

const (
	OpSet AlterConfigOp = iota
	OpConfigDelete
	OpAppend
	OpSubtract
)

// IncrementalConfig is one key's incremental change.
type IncrementalConfig struct {
	Name  string
	Value *string
	Op    AlterConfigOp
}

type incrementalAlterConfigsRequest struct {
	version      int16
	validateOnly bool
	resources    []struct {
		typ     ResourceType
		name    string
		changes []IncrementalConfig
	}
}

func (r *incrementalAlterConfigsRequest) Key() int16         { return keyIncrementalAlterConfigs }
func (r *incrementalAlterConfigsRequest) MaxVersion() int16  { return 1 }
func (r *incrementalAlterConfigsRequest) SetVersion(v int16) { r.version = v }
func (r *incrementalAlterConfigsRequest) ResponseKind() kadmin.Response {
	return &alterConfigsResponse{}
}
func (r *incrementalAlterConfigsRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.resources)))
	for _, res := range r.resources {
		dst = appendResourceRef(dst, res.typ, res.name)
		dst = kbin.AppendInt32(dst, int32(len(res.changes)))
		for _, c := range res.changes {
			dst = kbin.AppendString(dst, c.Name)
			dst = kbin.AppendInt8(dst, int8(c.Op))
			dst = kbin.AppendNullableString(dst, c.Value)
		}
	}
	dst = kbin.AppendBool(dst, r.validateOnly)
	return dst
}

// IncrementalAlterConfigs applies set/delete/append/subtract changes to
// the named resource's configuration without disturbing keys not mentioned.
func (cl *Client) IncrementalAlterConfigs(ctx context.Context, typ ResourceType, name string, changes []IncrementalConfig) (AlterConfigResult, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &incrementalAlterConfigsRequest{}
	req.resources = append(req.resources, struct {
		typ     ResourceType
		name    string
		changes []IncrementalConfig
	}{typ, name, changes})

	sel := kadmin.LeastLoaded()
	if typ == ResourceBroker {
		sel = kadmin.ToController()
	}
	resp, err := do(ctx, cl, "IncrementalAlterConfigs", sel, req, nil)
	if err != nil {
		return AlterConfigResult{}, err
	}
	results := resp.(*alterConfigsResponse).results
	if len(results) == 0 {
		return AlterConfigResult{Type: typ, Name: name}, nil
	}
	return results[0], nil
}
