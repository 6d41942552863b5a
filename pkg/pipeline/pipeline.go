package pipeline

import (
	"sort"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/internal/store"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// NodeSet is an unordered set of node ids.
type NodeSet map[string]struct{}

// Has reports whether id belongs to the set.
func (s NodeSet) Has(id string) bool {
	_, ok := s[id]

	return ok
}

func (s NodeSet) add(id string) { s[id] = struct{}{} }

// Pipeline owns nodes and the connections between their ports.
// All methods are safe for concurrent use.
type Pipeline struct {
	Name string

	mu          sync.RWMutex
	nodes       map[string]*model.Node
	nodeOrder   []string
	connections map[string]*model.Connection
	connOrder   []string
}

// New creates an empty pipeline.
func New(name string) *Pipeline {
	return &Pipeline{
		Name:        name,
		nodes:       make(map[string]*model.Node),
		connections: make(map[string]*model.Connection),
	}
}

// AddNode inserts node into the pipeline. Ports keep the direction of the list they belong to.
func (p *Pipeline) AddNode(node *model.Node) error {
	if node == nil || node.ID == "" {
		return errors.New("node must have an id")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.nodes[node.ID]; ok {
		return errors.Wrapf(ErrDuplicateNode, "add node %q", node.ID)
	}

	for i := range node.Inputs {
		node.Inputs[i].Direction = model.DirectionInput
	}
	for i := range node.Outputs {
		node.Outputs[i].Direction = model.DirectionOutput
	}
	if node.Config == nil {
		node.Config = model.Config{}
	}

	p.nodes[node.ID] = node
	p.nodeOrder = append(p.nodeOrder, node.ID)

	return nil
}

// RemoveNode deletes a node and every connection touching it. Unknown ids are ignored.
func (p *Pipeline) RemoveNode(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.nodes[id]; !ok {
		return
	}

	delete(p.nodes, id)
	p.nodeOrder = removeID(p.nodeOrder, id)

	for _, cid := range append([]string(nil), p.connOrder...) {
		conn := p.connections[cid]
		if conn.SourceNodeID == id || conn.TargetNodeID == id {
			p.removeConnectionLocked(cid)
		}
	}
}

// Node returns the node with the given id.
func (p *Pipeline) Node(id string) (*model.Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	node, ok := p.nodes[id]

	return node, ok
}

// Nodes returns the nodes in insertion order.
func (p *Pipeline) Nodes() []*model.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*model.Node, 0, len(p.nodeOrder))
	for _, id := range p.nodeOrder {
		out = append(out, p.nodes[id])
	}

	return out
}

// NodeIDs returns the node ids in insertion order.
func (p *Pipeline) NodeIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]string(nil), p.nodeOrder...)
}

// Connections returns a copy of the connections in insertion order.
func (p *Pipeline) Connections() []model.Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Connection, 0, len(p.connOrder))
	for _, cid := range p.connOrder {
		out = append(out, *p.connections[cid])
	}

	return out
}

// Connection returns the connection with the given id.
func (p *Pipeline) Connection(id string) (model.Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conn, ok := p.connections[id]
	if !ok {
		return model.Connection{}, false
	}

	return *conn, true
}

// IncomingConnection returns the connection feeding an input port.
func (p *Pipeline) IncomingConnection(nodeID, portID string) (model.Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, cid := range p.connOrder {
		conn := p.connections[cid]
		if conn.TargetNodeID == nodeID && conn.TargetPortID == portID {
			return *conn, true
		}
	}

	return model.Connection{}, false
}

// OutgoingConnections returns every connection leaving an output port.
func (p *Pipeline) OutgoingConnections(nodeID, portID string) []model.Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.outgoingLocked(nodeID, portID)
}

func (p *Pipeline) outgoingLocked(nodeID, portID string) []model.Connection {
	var out []model.Connection
	for _, cid := range p.connOrder {
		conn := p.connections[cid]
		if conn.SourceNodeID == nodeID && conn.SourcePortID == portID {
			out = append(out, *conn)
		}
	}

	return out
}

// AddConnection links an output port to an input port.
// It fails with a *ValidationError, leaving the pipeline untouched, when a node or port is missing,
// directions are wrong, the input is already connected or the port types are incompatible.
func (p *Pipeline) AddConnection(srcNodeID, srcPortID, tgtNodeID, tgtPortID string) (model.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	src, ok := p.nodes[srcNodeID]
	if !ok {
		return model.Connection{}, newValidationError(ErrNodeNotFound, "source node %q", srcNodeID)
	}
	tgt, ok := p.nodes[tgtNodeID]
	if !ok {
		return model.Connection{}, newValidationError(ErrNodeNotFound, "target node %q", tgtNodeID)
	}
	if srcNodeID == tgtNodeID {
		return model.Connection{}, newValidationError(ErrSelfConnection, "node %q", srcNodeID)
	}

	srcPort, ok := src.Output(srcPortID)
	if !ok {
		if _, isInput := src.Input(srcPortID); isInput {
			return model.Connection{}, newValidationError(ErrPortDirection, "source port %s.%s is an input", srcNodeID, srcPortID)
		}

		return model.Connection{}, newValidationError(ErrPortNotFound, "source port %s.%s", srcNodeID, srcPortID)
	}

	tgtPort, ok := tgt.Input(tgtPortID)
	if !ok {
		if _, isOutput := tgt.Output(tgtPortID); isOutput {
			return model.Connection{}, newValidationError(ErrPortDirection, "target port %s.%s is an output", tgtNodeID, tgtPortID)
		}

		return model.Connection{}, newValidationError(ErrPortNotFound, "target port %s.%s", tgtNodeID, tgtPortID)
	}

	for _, cid := range p.connOrder {
		conn := p.connections[cid]
		if conn.TargetNodeID == tgtNodeID && conn.TargetPortID == tgtPortID {
			return model.Connection{}, newValidationError(ErrPortAlreadyConnected, "target port %s.%s", tgtNodeID, tgtPortID)
		}
	}

	if !srcPort.Type.CompatibleWith(tgtPort.Type) {
		return model.Connection{}, newValidationError(ErrIncompatibleTypes, "%s.%s (%s) -> %s.%s (%s)",
			srcNodeID, srcPortID, srcPort.Type, tgtNodeID, tgtPortID, tgtPort.Type)
	}

	conn := &model.Connection{
		ID:           uuid.NewString(),
		SourceNodeID: srcNodeID,
		SourcePortID: srcPortID,
		TargetNodeID: tgtNodeID,
		TargetPortID: tgtPortID,
	}
	p.connections[conn.ID] = conn
	p.connOrder = append(p.connOrder, conn.ID)

	return *conn, nil
}

// addConnectionUnchecked stores a connection as is. Used when loading documents, Validate reports the problems.
func (p *Pipeline) addConnectionUnchecked(conn model.Connection) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if _, ok := p.connections[conn.ID]; ok {
		return errors.Errorf("duplicate connection id %q", conn.ID)
	}

	p.connections[conn.ID] = &conn
	p.connOrder = append(p.connOrder, conn.ID)

	return nil
}

// RemoveConnection deletes a connection. Unknown ids are ignored.
func (p *Pipeline) RemoveConnection(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removeConnectionLocked(id)
}

func (p *Pipeline) removeConnectionLocked(id string) {
	if _, ok := p.connections[id]; !ok {
		return
	}

	delete(p.connections, id)
	p.connOrder = removeID(p.connOrder, id)
}

// graphLocked builds the node dependency graph. Self loops are returned apart
// because the graph does not need them to order nodes.
func (p *Pipeline) graphLocked() (graph.Graph[string, string], *store.OrderedStore[string, string], []string, error) {
	st := store.NewOrderedStore[string, string]()
	gra := graph.NewWithStore[string, string](graph.StringHash, st, graph.Directed())

	for _, id := range p.nodeOrder {
		err := gra.AddVertex(id)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "unable to add vertex %q", id)
		}
	}

	var selfLoops []string
	for _, cid := range p.connOrder {
		conn := p.connections[cid]
		if _, ok := p.nodes[conn.SourceNodeID]; !ok {
			continue
		}
		if _, ok := p.nodes[conn.TargetNodeID]; !ok {
			continue
		}
		if conn.SourceNodeID == conn.TargetNodeID {
			selfLoops = append(selfLoops, conn.SourceNodeID)

			continue
		}

		err := gra.AddEdge(conn.SourceNodeID, conn.TargetNodeID)
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil, nil, nil, errors.Wrapf(err, "unable to add edge from %s to %s", conn.SourceNodeID, conn.TargetNodeID)
		}
	}

	return gra, st, selfLoops, nil
}

func (p *Pipeline) indexLocked() map[string]int {
	index := make(map[string]int, len(p.nodeOrder))
	for i, id := range p.nodeOrder {
		index[id] = i
	}

	return index
}

// TopologicalSort orders the node ids so that every connection source precedes its target.
// Independent nodes keep their insertion order. A cycle yields a *CycleError.
func (p *Pipeline) TopologicalSort() ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	gra, _, selfLoops, err := p.graphLocked()
	if err != nil {
		return nil, err
	}

	if len(selfLoops) > 0 {
		return nil, p.cycleErrorLocked(gra, selfLoops)
	}

	predecessors, err := gra.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute predecessors")
	}

	// Kahn's algorithm, always taking the ready node inserted first.
	index := p.indexLocked()
	ready := make([]string, 0, len(p.nodeOrder))
	for _, id := range p.nodeOrder {
		if len(predecessors[id]) == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(p.nodeOrder))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, id := range p.nodeOrder {
			preds, ok := predecessors[id]
			if !ok {
				continue
			}
			if _, ok := preds[current]; !ok {
				continue
			}
			delete(preds, current)
			if len(preds) == 0 {
				ready = append(ready, id)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })
	}

	if len(order) != len(p.nodeOrder) {
		return nil, p.cycleErrorLocked(gra, nil)
	}

	return order, nil
}

// cycleErrorLocked collects the members of every cycle, in insertion order.
func (p *Pipeline) cycleErrorLocked(gra graph.Graph[string, string], selfLoops []string) *CycleError {
	members := NodeSet{}
	for _, id := range selfLoops {
		members.add(id)
	}

	components, err := graph.StronglyConnectedComponents(gra)
	if err == nil {
		for _, component := range components {
			if len(component) < 2 {
				continue
			}
			for _, id := range component {
				members.add(id)
			}
		}
	}

	index := p.indexLocked()
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return index[ids[i]] < index[ids[j]] })

	return &CycleError{NodeIDs: ids}
}

// CreatesCycle reports whether connecting source to target would close a cycle.
func (p *Pipeline) CreatesCycle(sourceNodeID, targetNodeID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, st, _, err := p.graphLocked()
	if err != nil {
		return false, err
	}

	ok, err := st.CreatesCycle(sourceNodeID, targetNodeID)
	if err != nil {
		return false, errors.Wrap(err, "unable to check cycle")
	}

	return ok, nil
}

// DownstreamFromPort returns every node reachable by following connections from an output port.
func (p *Pipeline) DownstreamFromPort(nodeID, portID string) NodeSet {
	p.mu.RLock()
	defer p.mu.RUnlock()

	reached := NodeSet{}

	gra, _, _, err := p.graphLocked()
	if err != nil {
		return reached
	}

	for _, conn := range p.outgoingLocked(nodeID, portID) {
		if _, ok := p.nodes[conn.TargetNodeID]; !ok || reached.Has(conn.TargetNodeID) {
			continue
		}

		_ = graph.BFS(gra, conn.TargetNodeID, func(id string) bool {
			reached.add(id)

			return false
		})
	}

	return reached
}

func removeID(ids []string, id string) []string {
	for i, cur := range ids {
		if cur == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}

	return ids
}
