package model

import (
	"github.com/google/uuid"
)

// Port is a typed, named input or output slot on a node.
type Port struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Direction Direction `json:"-" yaml:"-"`
	Type      PortType  `json:"type" yaml:"type"`
}

// Position is a display-only layout hint.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a unit of work in a pipeline graph.
type Node struct {
	ID       string
	Type     NodeType
	Name     string
	Inputs   []Port
	Outputs  []Port
	Config   Config
	Position Position
}

// NewNode creates a node of the given type with the ports and default config of its catalogue entry.
// An empty id is replaced by a random UUID. Unknown types get no ports.
func NewNode(id string, nodeType NodeType) *Node {
	if id == "" {
		id = uuid.NewString()
	}

	node := &Node{
		ID:     id,
		Type:   nodeType,
		Name:   string(nodeType),
		Config: Config{},
	}

	spec, ok := Lookup(nodeType)
	if !ok {
		return node
	}

	for _, ps := range spec.Inputs {
		node.Inputs = append(node.Inputs, Port{ID: ps.ID, Name: ps.Name, Direction: DirectionInput, Type: ps.Type})
	}
	for _, ps := range spec.Outputs {
		node.Outputs = append(node.Outputs, Port{ID: ps.ID, Name: ps.Name, Direction: DirectionOutput, Type: ps.Type})
	}
	for k, v := range spec.Defaults {
		node.Config[k] = v
	}

	return node
}

// Input returns the input port with the given id.
func (n *Node) Input(portID string) (Port, bool) {
	for _, p := range n.Inputs {
		if p.ID == portID {
			return p, true
		}
	}

	return Port{}, false
}

// Output returns the output port with the given id.
func (n *Node) Output(portID string) (Port, bool) {
	for _, p := range n.Outputs {
		if p.ID == portID {
			return p, true
		}
	}

	return Port{}, false
}

// Port looks the id up among inputs first, then outputs.
func (n *Node) Port(portID string) (Port, bool) {
	if p, ok := n.Input(portID); ok {
		return p, true
	}

	return n.Output(portID)
}

// Label is the display name, falling back to the id.
func (n *Node) Label() string {
	if n.Name != "" {
		return n.Name
	}

	return n.ID
}

// Clone returns a deep enough copy of n for independent editing.
func (n *Node) Clone() *Node {
	out := *n
	out.Inputs = append([]Port(nil), n.Inputs...)
	out.Outputs = append([]Port(nil), n.Outputs...)
	out.Config = n.Config.Clone()

	return &out
}

// Connection is a directed edge from one node's output port to another node's input port.
type Connection struct {
	ID           string `json:"id" yaml:"id"`
	SourceNodeID string `json:"source_node_id" yaml:"source_node_id"`
	SourcePortID string `json:"source_port_id" yaml:"source_port_id"`
	TargetNodeID string `json:"target_node_id" yaml:"target_node_id"`
	TargetPortID string `json:"target_port_id" yaml:"target_port_id"`
}
