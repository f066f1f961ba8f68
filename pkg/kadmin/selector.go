package kadmin

import "time"

// SelectorKind is the closed set of node-selection strategies the Worker
// consumes. Implemented as a tagged enum (rather than an interface)
// per spec.md §9 so the Worker's dispatch over selectors is exhaustive
// and monomorphic.
type SelectorKind uint8

const (
	// SelectLeastLoaded returns the node with the fewest in-flight
	// requests if metadata is ready; otherwise requests a refresh and
	// returns nothing.
	SelectLeastLoaded SelectorKind = iota
	// SelectController returns the current controller node if metadata
	// is ready and a controller is known; otherwise requests a refresh
	// and returns nothing.
	SelectController
	// SelectConstantID returns the node with a fixed id if metadata
	// contains it; otherwise requests a refresh and returns nothing.
	// Used for broker-specific operations such as DescribeLogDirs.
	SelectConstantID
	// SelectMetadataBootstrap returns the least-loaded node
	// unconditionally, bypassing the IsReady gate. Used exclusively by
	// the internal metadata-refresh Call, which must be able to run
	// before metadata is considered ready.
	SelectMetadataBootstrap
)

// NodeSelector is the (kind, optional constant id) pair a Call carries.
// Use the constructors below rather than building one by hand.
type NodeSelector struct {
	Kind SelectorKind
	// NodeID is only meaningful when Kind == SelectConstantID.
	NodeID int32
}

// LeastLoaded returns a NodeSelector that picks the least-loaded node.
func LeastLoaded() NodeSelector { return NodeSelector{Kind: SelectLeastLoaded} }

// ToController returns a NodeSelector that picks the cluster controller.
func ToController() NodeSelector { return NodeSelector{Kind: SelectController} }

// ConstantNode returns a NodeSelector pinned to a specific node id.
func ConstantNode(id int32) NodeSelector { return NodeSelector{Kind: SelectConstantID, NodeID: id} }

// MetadataBootstrap returns the selector used only by the internal
// metadata-refresh Call.
func MetadataBootstrap() NodeSelector { return NodeSelector{Kind: SelectMetadataBootstrap} }

// selectNode evaluates sel against the current metadata and network
// state. Returning (Node{}, false, nil) means "stay pending, try again
// next iteration" — a first-class outcome that does not consume a
// retry. A non-nil error means the selector itself failed (e.g. an
// authentication error surfaced while picking a node) and the Call
// should be routed through the failure handler.
func selectNode(sel NodeSelector, mm MetadataManager, nc NetworkClient, now time.Time) (Node, bool, error) {
	switch sel.Kind {
	case SelectMetadataBootstrap:
		node, ok := nc.LeastLoadedNode(now)
		return node, ok, nil

	case SelectLeastLoaded:
		if !mm.IsReady() {
			mm.RequestUpdate()
			return Node{}, false, nil
		}
		node, ok := nc.LeastLoadedNode(now)
		return node, ok, nil

	case SelectController:
		if mm.IsReady() {
			if ctrl, ok := mm.Controller(); ok {
				return ctrl, true, nil
			}
		}
		mm.RequestUpdate()
		return Node{}, false, nil

	case SelectConstantID:
		if mm.IsReady() {
			if node, ok := mm.NodeByID(sel.NodeID); ok {
				return node, true, nil
			}
		}
		mm.RequestUpdate()
		return Node{}, false, nil

	default:
		return Node{}, false, nil
	}
}
