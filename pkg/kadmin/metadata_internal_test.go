package kadmin

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func sortedNodes(ns []Node) []Node {
	out := append([]Node(nil), ns...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func TestMetadataManagerUpdateAppliesSnapshot(t *testing.T) {
	mm := newMetadataManager(time.Second, time.Minute, nil)
	if mm.IsReady() {
		t.Fatal("a fresh metadataManager must not be ready")
	}

	snap := ClusterSnapshot{
		Nodes: []Node{
			{ID: 1, Addr: "broker-1", Port: 9092},
			{ID: 2, Addr: "broker-2", Port: 9092},
			{ID: 3, Addr: "broker-3", Port: 9092},
		},
		ControllerID: 2,
	}
	mm.Update(snap, 1000)

	if !mm.IsReady() {
		t.Fatal("Update must flip IsReady to true")
	}

	if diff := cmp.Diff(snap.Nodes, sortedNodes(mm.Nodes()), cmpopts.EquateComparable(Node{})); diff != "" {
		t.Fatalf("Nodes() mismatch (-want +got):\n%s", diff)
	}

	controller, ok := mm.Controller()
	if !ok {
		t.Fatal("Controller must be known after Update")
	}
	if diff := cmp.Diff(snap.Nodes[1], controller, cmpopts.EquateComparable(Node{})); diff != "" {
		t.Fatalf("Controller() mismatch (-want +got):\n%s", diff)
	}
}

func TestMetadataManagerUpdateReplacesRatherThanMerges(t *testing.T) {
	mm := newMetadataManager(time.Second, time.Minute, nil)
	mm.Update(ClusterSnapshot{Nodes: []Node{{ID: 1, Addr: "old"}}, ControllerID: 1}, 0)
	mm.Update(ClusterSnapshot{Nodes: []Node{{ID: 2, Addr: "new"}}, ControllerID: 2}, 1)

	want := []Node{{ID: 2, Addr: "new"}}
	if diff := cmp.Diff(want, mm.Nodes(), cmpopts.EquateComparable(Node{})); diff != "" {
		t.Fatalf("Update must replace the node set wholesale, not merge (-want +got):\n%s", diff)
	}
	if _, ok := mm.NodeByID(1); ok {
		t.Fatal("stale node from a prior snapshot must not survive an Update")
	}
}

func TestMetadataManagerUpdateFailedBacksOffFromLastSuccess(t *testing.T) {
	mm := newMetadataManager(time.Second, time.Minute, func(failures int) time.Duration {
		return time.Duration(failures) * 10 * time.Millisecond
	})
	mm.Update(ClusterSnapshot{Nodes: []Node{{ID: 1}}, ControllerID: 1}, 1000)

	mm.UpdateFailed(ErrConnDead)
	if got, want := mm.MetadataFetchDelayMs(1000), int64(10); got != want {
		t.Fatalf("MetadataFetchDelayMs after one failure = %d, want %d", got, want)
	}

	mm.UpdateFailed(ErrConnDead)
	if got, want := mm.MetadataFetchDelayMs(1000), int64(20); got != want {
		t.Fatalf("MetadataFetchDelayMs after two failures = %d, want %d", got, want)
	}
}
