package kadmops

import (
	"context"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

const (
	keyAlterPartitionReassignments int16 = 45
	keyListPartitionReassignments  int16 = 46
)

// PartitionReassignment is a request to move one partition's replica set
// to newReplicas, or (nil) to cancel any in-progress reassignment.
type PartitionReassignment struct {
	Topic       string
	Partition   int32
	NewReplicas []int32 // nil cancels an in-progress reassignment
}

// --- AlterPartitionReassignments ---

type alterPartitionReassignmentsRequest struct {
	version       int16
	reassignments []PartitionReassignment
}

func (r *alterPartitionReassignmentsRequest) Key() int16         { return keyAlterPartitionReassignments }
func (r *alterPartitionReassignmentsRequest) MaxVersion() int16  { return 0 }
func (r *alterPartitionReassignmentsRequest) SetVersion(v int16) { r.version = v }
func (r *alterPartitionReassignmentsRequest) ResponseKind() kadmin.Response {
	return &alterPartitionReassignmentsResponse{}
}
func (r *alterPartitionReassignmentsRequest) AppendTo(dst []byte) []byte {
	byTopic := make(map[string][]PartitionReassignment)
	var order []string
	for _, pr := range r.reassignments {
		if _, ok := byTopic[pr.Topic]; !ok {
			order = append(order, pr.Topic)
		}
		byTopic[pr.Topic] = append(byTopic[pr.Topic], pr)
	}
	dst = kbin.AppendInt32(dst, int32(len(order)))
	for _, topic := range order {
		dst = kbin.AppendString(dst, topic)
		parts := byTopic[topic]
		dst = kbin.AppendInt32(dst, int32(len(parts)))
		for _, pr := range parts {
			dst = kbin.AppendInt32(dst, pr.Partition)
			if pr.NewReplicas == nil {
				dst = kbin.AppendInt32(dst, -1)
				continue
			}
			dst = kbin.AppendInt32(dst, int32(len(pr.NewReplicas)))
			for _, r := range pr.NewReplicas {
				dst = kbin.AppendInt32(dst, r)
			}
		}
	}
	return dst
}

// PartitionReassignmentResult is the per-partition outcome of
// AlterPartitionReassignments.
type PartitionReassignmentResult struct {
	Topic     string
	Partition int32
	Err       error
}

type alterPartitionReassignmentsResponse struct {
	err     error
	results []PartitionReassignmentResult
}

func (r *alterPartitionReassignmentsResponse) resultErrors() []error {
	errs := make([]error, len(r.results)+1)
	errs[0] = r.err
	for i, res := range r.results {
		errs[i+1] = res.Err
	}
	return errs
}

func (r *alterPartitionReassignmentsResponse) Key() int16 { return keyAlterPartitionReassignments }

func (r *alterPartitionReassignmentsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	topLevelErrCode := rd.Int16()
	topicCount := rd.Int32()
	var results []PartitionReassignmentResult
	for i := int32(0); i < topicCount; i++ {
		topic := rd.String()
		partCount := rd.Int32()
		for j := int32(0); j < partCount; j++ {
			partition := rd.Int32()
			errCode := rd.Int16()
			results = append(results, PartitionReassignmentResult{Topic: topic, Partition: partition, Err: errForCode(errCode)})
		}
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.err, r.results = errForCode(topLevelErrCode), results
	return nil
}

// AlterPartitionReassignments moves (or cancels moving) the replica sets
// of the given partitions.
func (cl *Client) AlterPartitionReassignments(ctx context.Context, reassignments ...PartitionReassignment) ([]PartitionReassignmentResult, error) {
	if len(reassignments) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &alterPartitionReassignmentsRequest{reassignments: reassignments}
	resp, err := do(ctx, cl, "AlterPartitionReassignments", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	r := resp.(*alterPartitionReassignmentsResponse)
	return r.results, r.err
}

// --- ListPartitionReassignments ---

type listPartitionReassignmentsRequest struct {
	version int16
	topics  map[string][]int32
}

func (r *listPartitionReassignmentsRequest) Key() int16         { return keyListPartitionReassignments }
func (r *listPartitionReassignmentsRequest) MaxVersion() int16  { return 0 }
func (r *listPartitionReassignmentsRequest) SetVersion(v int16) { r.version = v }
func (r *listPartitionReassignmentsRequest) ResponseKind() kadmin.Response {
	return &listPartitionReassignmentsResponse{}
}
func (r *listPartitionReassignmentsRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendInt32(dst, int32(len(r.topics)))
	for topic, parts := range r.topics {
		dst = kbin.AppendString(dst, topic)
		dst = kbin.AppendInt32(dst, int32(len(parts)))
		for _, p := range parts {
			dst = kbin.AppendInt32(dst, p)
		}
	}
	return dst
}

// OngoingReassignment describes an in-progress replica move for one
// partition.
type OngoingReassignment struct {
	Topic            string
	Partition        int32
	Replicas         []int32
	AddingReplicas   []int32
	RemovingReplicas []int32
}

type listPartitionReassignmentsResponse struct {
	err       error
	ongoing   []OngoingReassignment
}

func (r *listPartitionReassignmentsResponse) resultErrors() []error { return []error{r.err} }

func (r *listPartitionReassignmentsResponse) Key() int16 { return keyListPartitionReassignments }

func (r *listPartitionReassignmentsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	errCode := rd.Int16()
	topicCount := rd.Int32()
	var ongoing []OngoingReassignment
	for i := int32(0); i < topicCount; i++ {
		topic := rd.String()
		partCount := rd.Int32()
		for j := int32(0); j < partCount; j++ {
			ongoing = append(ongoing, OngoingReassignment{
				Topic:            topic,
				Partition:        rd.Int32(),
				Replicas:         readInt32s(&rd),
				AddingReplicas:   readInt32s(&rd),
				RemovingReplicas: readInt32s(&rd),
			})
		}
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.err, r.ongoing = errForCode(errCode), ongoing
	return nil
}

// ListPartitionReassignments reports every reassignment still in
// progress for the given topics (all topics if the map is empty).
func (cl *Client) ListPartitionReassignments(ctx context.Context, topics map[string][]int32) ([]OngoingReassignment, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &listPartitionReassignmentsRequest{topics: topics}
	resp, err := do(ctx, cl, "ListPartitionReassignments", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	r := resp.(*listPartitionReassignmentsResponse)
	return r.ongoing, r.err
}

func readInt32s(r *kbin.Reader) []int32 {
	n := r.Int32()
	if n <= 0 {
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = r.Int32()
	}
	return out
}
