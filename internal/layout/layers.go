package layout

// visit colours for the layering walk.
const (
	white = iota // not reached yet
	gray         // on the current walk path
	black        // fully expanded
)

// frame is one entry of the explicit walk stack.
type frame struct {
	nodeID string
	layer  int
	next   int // index of the next outgoing target to visit
}

// AssignLayers computes a column index per node by a longest-path walk seeded
// from the roots: triggers first, then sources, each at layer 0.
//
// A node is expanded once, on first reach. Reaching an already expanded node
// again only widens its stored layer and does not propagate to its
// descendants. Reaching a node that is still on the current path is a back
// edge and is ignored: widening there would push a loop head past its own
// body (in A -> B -> A, A must stay at 0 and B at 1), so do not treat gray
// revisits like black ones. Unreached nodes get layer 0.
//
// The walk uses an explicit stack so deep chains cannot exhaust the goroutine
// stack; the visiting order matches a recursive depth-first walk.
func AssignLayers(nodeIDs []string, outgoing map[string][]Target, triggers, sources []string) map[string]int {
	layer := make(map[string]int, len(nodeIDs))
	color := make(map[string]int, len(nodeIDs))
	stack := make([]frame, 0, 16)

	// reach returns true when id must be expanded.
	reach := func(id string, candidate int) bool {
		switch color[id] {
		case gray:
			return false
		case black:
			if candidate > layer[id] {
				layer[id] = candidate
			}
			return false
		}
		color[id] = gray
		layer[id] = candidate
		return true
	}

	walk := func(root string) {
		if !reach(root, 0) {
			return
		}
		stack = append(stack[:0], frame{nodeID: root})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			targets := outgoing[top.nodeID]
			if top.next >= len(targets) {
				color[top.nodeID] = black
				stack = stack[:len(stack)-1]
				continue
			}
			t := targets[top.next]
			top.next++
			next := top.layer + 1
			if reach(t.NodeID, next) {
				stack = append(stack, frame{nodeID: t.NodeID, layer: next})
			}
		}
	}

	for _, id := range triggers {
		walk(id)
	}
	for _, id := range sources {
		walk(id)
	}

	for _, id := range nodeIDs {
		if _, ok := layer[id]; !ok {
			layer[id] = 0
		}
	}
	return layer
}
