package workflow

import (
	"math"
)

// MixerNodeID identifies the singleton mixer node fixed at canvas center.
const MixerNodeID = "mixer"

// DefaultRadius is the placement circle radius around the mixer.
const DefaultRadius = 200

// Position is a point on the workflow canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a placed workflow node. ID is a timeline entry ID or MixerNodeID.
type Node struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
}

// Connection is a directed edge between two nodes.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PendingSource is the tagged state of the two-phase connect gesture.
type PendingSource struct {
	Active bool   `json:"active"`
	NodeID string `json:"nodeId,omitempty"`
}

// Graph holds the session-local workflow view: instrument node positions
// around the mixer, the directed connection set and the in-progress connect
// gesture. Nothing here is persisted; positions and edges reset when the
// session is recreated.
type Graph struct {
	canvasWidth  float64
	canvasHeight float64
	radius       float64

	order       []string            // instrument node IDs in layout order
	nodes       map[string]Position // instrument node ID -> position
	connections []Connection
	pending     PendingSource

	draggingNode string
	lastPointer  Position
}

// NewGraph creates a graph for a canvas of the given size.
func NewGraph(canvasWidth, canvasHeight float64) *Graph {
	return &Graph{
		canvasWidth:  canvasWidth,
		canvasHeight: canvasHeight,
		radius:       DefaultRadius,
		nodes:        make(map[string]Position),
		connections:  make([]Connection, 0),
	}
}

// Center returns the mixer position at canvas center.
func (g *Graph) Center() Position {
	return Position{X: g.canvasWidth / 2, Y: g.canvasHeight / 2}
}

// SetCanvasSize updates the canvas dimensions and re-centers the layout.
func (g *Graph) SetCanvasSize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	g.canvasWidth = width
	g.canvasHeight = height
	g.Layout(g.order)
}

// Layout recomputes each instrument node's position on the placement circle,
// evenly spaced by count: angle 2π·i/count. A zero count is treated as one
// to avoid dividing by zero. Free-dragged positions are discarded; layout
// runs on every entry-set change.
func (g *Graph) Layout(entryIDs []string) {
	center := g.Center()
	count := len(entryIDs)
	divisor := count
	if divisor == 0 {
		divisor = 1
	}
	angleStep := 2 * math.Pi / float64(divisor)

	g.order = make([]string, count)
	copy(g.order, entryIDs)
	g.nodes = make(map[string]Position, count)
	for i, id := range entryIDs {
		angle := angleStep * float64(i)
		g.nodes[id] = Position{
			X: center.X + g.radius*math.Cos(angle),
			Y: center.Y + g.radius*math.Sin(angle),
		}
	}

	// Drop edges and gesture state that reference nodes that no longer exist.
	kept := g.connections[:0]
	for _, c := range g.connections {
		if g.nodeExists(c.From) && g.nodeExists(c.To) {
			kept = append(kept, c)
		}
	}
	g.connections = kept
	if g.pending.Active && !g.nodeExists(g.pending.NodeID) {
		g.pending = PendingSource{}
	}
	if g.draggingNode != "" && !g.nodeExists(g.draggingNode) {
		g.draggingNode = ""
	}
}

func (g *Graph) nodeExists(id string) bool {
	if id == MixerNodeID {
		return true
	}
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns the instrument nodes in layout order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		if pos, ok := g.nodes[id]; ok {
			nodes = append(nodes, Node{ID: id, Position: pos})
		}
	}
	return nodes
}

// NodePosition returns a node's position. The mixer resolves to the canvas
// center.
func (g *Graph) NodePosition(id string) (Position, bool) {
	if id == MixerNodeID {
		return g.Center(), true
	}
	pos, ok := g.nodes[id]
	return pos, ok
}

// Pending returns the connect-gesture state.
func (g *Graph) Pending() PendingSource {
	return g.pending
}

// Connections returns the current edge set.
func (g *Graph) Connections() []Connection {
	return g.connections
}

// MixerInputCount counts edges terminating at the mixer.
func (g *Graph) MixerInputCount() int {
	n := 0
	for _, c := range g.connections {
		if c.To == MixerNodeID {
			n++
		}
	}
	return n
}

// ClickNode advances the two-phase connect gesture:
//
//   - no pending source: the clicked node becomes the pending source;
//   - clicked node is the pending source: the gesture cancels;
//   - otherwise: the edge source->clicked is added, plus an implicit
//     source->mixer edge when neither endpoint is the mixer itself.
//
// The pending source is cleared after the second click regardless of
// outcome. Returns the edges added by this click.
func (g *Graph) ClickNode(id string) []Connection {
	if !g.nodeExists(id) {
		return nil
	}

	if !g.pending.Active {
		g.pending = PendingSource{Active: true, NodeID: id}
		return nil
	}

	source := g.pending.NodeID
	g.pending = PendingSource{}

	if source == id {
		return nil
	}

	added := make([]Connection, 0, 2)
	if source != MixerNodeID && id != MixerNodeID {
		added = append(added, Connection{From: source, To: MixerNodeID})
	}
	added = append(added, Connection{From: source, To: id})
	g.connections = append(g.connections, added...)
	return added
}

// RemoveConnection deletes every edge matching the exact {from, to} pair.
// Returns true if any edge was removed.
func (g *Graph) RemoveConnection(from, to string) bool {
	kept := g.connections[:0]
	removed := false
	for _, c := range g.connections {
		if c.From == from && c.To == to {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	g.connections = kept
	return removed
}

// BeginNodeDrag starts free-dragging an instrument node. The mixer is fixed
// and cannot be dragged.
func (g *Graph) BeginNodeDrag(id string, pointer Position) bool {
	if id == MixerNodeID {
		return false
	}
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	g.draggingNode = id
	g.lastPointer = pointer
	return true
}

// MoveNodeDrag accumulates the pointer delta into the dragged node's
// position, clamped to the canvas bounds.
func (g *Graph) MoveNodeDrag(pointer Position) (Node, bool) {
	if g.draggingNode == "" {
		return Node{}, false
	}

	pos := g.nodes[g.draggingNode]
	pos.X += pointer.X - g.lastPointer.X
	pos.Y += pointer.Y - g.lastPointer.Y
	pos.X = clamp(pos.X, 0, g.canvasWidth)
	pos.Y = clamp(pos.Y, 0, g.canvasHeight)
	g.nodes[g.draggingNode] = pos
	g.lastPointer = pointer
	return Node{ID: g.draggingNode, Position: pos}, true
}

// EndNodeDrag finishes the node drag.
func (g *Graph) EndNodeDrag() {
	g.draggingNode = ""
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
