package kadmops

import (
	"context"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

const (
	keyMetadata     int16 = 3
	keyCreateTopics int16 = 19
	keyDeleteTopics int16 = 20
)

// --- Metadata (also used by ListTopics) ---

type metadataRequest struct {
	version int16
	topics  []string
}

func (r *metadataRequest) Key() int16          { return keyMetadata }
func (r *metadataRequest) MaxVersion() int16   { return 9 }
func (r *metadataRequest) SetVersion(v int16)  { r.version = v }
func (r *metadataRequest) ResponseKind() kadmin.Response {
	return &metadataResponse{}
}
func (r *metadataRequest) AppendTo(dst []byte) []byte {
	return appendStrings(dst, r.topics)
}

// TopicMetadata describes one topic as reported by a metadata response.
type TopicMetadata struct {
	Topic      string
	Partitions int32
	Err        error
}

// ClusterMetadata is the decoded outcome of a metadata request: the
// broker list, the controller id, and per-topic partition counts.
type ClusterMetadata struct {
	Nodes        []kadmin.Node
	ControllerID int32
	Topics       []TopicMetadata
}

type metadataResponse struct {
	decoded ClusterMetadata
}

func (r *metadataResponse) Key() int16 { return keyMetadata }

func (r *metadataResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}

	nodeCount := rd.Int32()
	nodes := make([]kadmin.Node, 0, nodeCount)
	for i := int32(0); i < nodeCount; i++ {
		id := rd.Int32()
		host := rd.String()
		port := rd.Int32()
		rack := rd.NullableString()
		nodes = append(nodes, kadmin.Node{ID: id, Addr: host, Port: port, Rack: rack})
	}

	controllerID := rd.Int32()

	topicCount := rd.Int32()
	topics := make([]TopicMetadata, 0, topicCount)
	for i := int32(0); i < topicCount; i++ {
		errCode := rd.Int16()
		name := rd.String()
		partitions := rd.Int32()
		topics = append(topics, TopicMetadata{Topic: name, Partitions: partitions, Err: errForCode(errCode)})
	}

	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.decoded = ClusterMetadata{Nodes: nodes, ControllerID: controllerID, Topics: topics}
	return nil
}

// Metadata issues a metadata request for the given topics (all topics if
// none are given) and returns the decoded cluster view. It is a one-off
// request: nothing in this package installs it as the core's in-band
// metadata refresh, which comes only from kadmin.WithMetadataRefresh.
func (cl *Client) Metadata(ctx context.Context, topics ...string) (*ClusterMetadata, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &metadataRequest{topics: topics}
	resp, err := do(ctx, cl, "Metadata", kadmin.LeastLoaded(), req, nil)
	if err != nil {
		return nil, err
	}
	return &resp.(*metadataResponse).decoded, nil
}

// ListTopics returns just the topic/partition-count view of Metadata.
func (cl *Client) ListTopics(ctx context.Context, topics ...string) ([]TopicMetadata, error) {
	m, err := cl.Metadata(ctx, topics...)
	if err != nil {
		return nil, err
	}
	return m.Topics, nil
}

// --- CreateTopics ---

type createTopicsRequest struct {
	version           int16
	validateOnly      bool
	partitions        int32
	replicationFactor int16
	configs           map[string]*string
	topics            []string
}

func (r *createTopicsRequest) Key() int16         { return keyCreateTopics }
func (r *createTopicsRequest) MaxVersion() int16  { return 7 }
func (r *createTopicsRequest) SetVersion(v int16) { r.version = v }
func (r *createTopicsRequest) ResponseKind() kadmin.Response {
	return &createTopicsResponse{}
}
func (r *createTopicsRequest) AppendTo(dst []byte) []byte {
	dst = appendStrings(dst, r.topics)
	dst = kbin.AppendInt32(dst, r.partitions)
	dst = kbin.AppendInt16(dst, r.replicationFactor)
	dst = appendStringMap(dst, r.configs)
	dst = kbin.AppendBool(dst, r.validateOnly)
	return dst
}

// CreateTopicResult is the per-topic outcome of CreateTopics.
type CreateTopicResult struct {
	Topic string
	Err   error
}

type createTopicsResponse struct {
	results []CreateTopicResult
}

func (r *createTopicsResponse) resultErrors() []error {
	errs := make([]error, len(r.results))
	for i, res := range r.results {
		errs[i] = res.Err
	}
	return errs
}

func (r *createTopicsResponse) Key() int16 { return keyCreateTopics }

func (r *createTopicsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	n := rd.Int32()
	results := make([]CreateTopicResult, 0, n)
	for i := int32(0); i < n; i++ {
		topic := rd.String()
		errCode := rd.Int16()
		results = append(results, CreateTopicResult{Topic: topic, Err: errForCode(errCode)})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.results = results
	return nil
}

// CreateTopics creates topics with uniform partitions/replication
// factor/configs, letting the controller choose placement. Authorization
// failures surface per-topic in the result, not as the returned error.
func (cl *Client) CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) ([]CreateTopicResult, error) {
	return cl.createTopics(ctx, false, partitions, replicationFactor, configs, topics)
}

// ValidateCreateTopics is CreateTopics with ValidateOnly set: nothing is
// actually created, but the same per-topic errors are reported.
func (cl *Client) ValidateCreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) ([]CreateTopicResult, error) {
	return cl.createTopics(ctx, true, partitions, replicationFactor, configs, topics)
}

func (cl *Client) createTopics(ctx context.Context, dry bool, partitions int32, rf int16, configs map[string]*string, topics []string) ([]CreateTopicResult, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &createTopicsRequest{validateOnly: dry, partitions: partitions, replicationFactor: rf, configs: configs, topics: topics}
	resp, err := do(ctx, cl, "CreateTopics", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	return resp.(*createTopicsResponse).results, nil
}

// --- DeleteTopics ---

type deleteTopicsRequest struct {
	version int16
	topics  []string
}

func (r *deleteTopicsRequest) Key() int16         { return keyDeleteTopics }
func (r *deleteTopicsRequest) MaxVersion() int16  { return 6 }
func (r *deleteTopicsRequest) SetVersion(v int16) { r.version = v }
func (r *deleteTopicsRequest) ResponseKind() kadmin.Response {
	return &deleteTopicsResponse{}
}
func (r *deleteTopicsRequest) AppendTo(dst []byte) []byte {
	return appendStrings(dst, r.topics)
}

// DeleteTopicResult is the per-topic outcome of DeleteTopics.
type DeleteTopicResult struct {
	Topic string
	Err   error
}

type deleteTopicsResponse struct {
	results []DeleteTopicResult
}

func (r *deleteTopicsResponse) resultErrors() []error {
	errs := make([]error, len(r.results))
	for i, res := range r.results {
		errs[i] = res.Err
	}
	return errs
}

func (r *deleteTopicsResponse) Key() int16 { return keyDeleteTopics }

func (r *deleteTopicsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	n := rd.Int32()
	results := make([]DeleteTopicResult, 0, n)
	for i := int32(0); i < n; i++ {
		topic := rd.String()
		errCode := rd.Int16()
		results = append(results, DeleteTopicResult{Topic: topic, Err: errForCode(errCode)})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.results = results
	return nil
}

// DeleteTopics deletes the named topics. As with CreateTopics,
// authorization failures are reported per-topic.
func (cl *Client) DeleteTopics(ctx context.Context, topics ...string) ([]DeleteTopicResult, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &deleteTopicsRequest{topics: topics}
	resp, err := do(ctx, cl, "DeleteTopics", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	return resp.(*deleteTopicsResponse).results, nil
}
