package kadmops

import (
	"context"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

const keyDescribeLogDirs int16 = 35

// LogDirPartition is one partition's on-disk footprint within a log
// directory.
type LogDirPartition struct {
	Topic     string
	Partition int32
	Size      int64
	OffsetLag int64
	IsFuture  bool
}

// LogDirDescription is one broker's view of one log directory.
type LogDirDescription struct {
	Path       string
	Err        error
	Partitions []LogDirPartition
}

type describeLogDirsRequest struct {
	version int16
	topics  map[string][]int32
}

func (r *describeLogDirsRequest) Key() int16         { return keyDescribeLogDirs }
func (r *describeLogDirsRequest) MaxVersion() int16  { return 4 }
func (r *describeLogDirsRequest) SetVersion(v int16) { r.version = v }
func (r *describeLogDirsRequest) ResponseKind() kadmin.Response {
	return &describeLogDirsResponse{}
}
func (r *describeLogDirsRequest) AppendTo(dst []byte) []byte {
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

type describeLogDirsResponse struct {
	dirs []LogDirDescription
}

func (r *describeLogDirsResponse) Key() int16 { return keyDescribeLogDirs }

func (r *describeLogDirsResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	dirCount := rd.Int32()
	dirs := make([]LogDirDescription, 0, dirCount)
	for i := int32(0); i < dirCount; i++ {
		errCode := rd.Int16()
		path := rd.String()
		topicCount := rd.Int32()
		var parts []LogDirPartition
		for j := int32(0); j < topicCount; j++ {
			topic := rd.String()
			partCount := rd.Int32()
			for k := int32(0); k < partCount; k++ {
				parts = append(parts, LogDirPartition{
					Topic:     topic,
					Partition: rd.Int32(),
					Size:      rd.Int64(),
					OffsetLag: rd.Int64(),
					IsFuture:  rd.Bool(),
				})
			}
		}
		dirs = append(dirs, LogDirDescription{Path: path, Err: errForCode(errCode), Partitions: parts})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.dirs = dirs
	return nil
}

// DescribeLogDirs reports the log-directory layout of node, optionally
// restricted to the given topic/partition set (every partition on the
// broker if topics is empty). Unlike most requests here, this one must
// target a specific broker: log directories are not cluster-wide state.
func (cl *Client) DescribeLogDirs(ctx context.Context, node int32, topics map[string][]int32) ([]LogDirDescription, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &describeLogDirsRequest{topics: topics}
	resp, err := do(ctx, cl, "DescribeLogDirs", kadmin.ConstantNode(node), req, nil)
	if err != nil {
		return nil, err
	}
	return resp.(*describeLogDirsResponse).dirs, nil
}
