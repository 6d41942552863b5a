package model

// NodeType identifies the behaviour of a node.
type NodeType string

const (
	NodeTypeWorkflow        NodeType = "Workflow"
	NodeTypeThreshold       NodeType = "Threshold"
	NodeTypeExternalCommand NodeType = "ExternalCommand"
	NodeTypeForEach         NodeType = "ForEach"
	NodeTypeConditional     NodeType = "Conditional"
	NodeTypeSampleViewData  NodeType = "SampleViewData"
	NodeTypeConstant        NodeType = "Constant"
)

// IsScopeOwner reports whether nodes of this type own a private sub-graph.
func (t NodeType) IsScopeOwner() bool {
	return t == NodeTypeForEach || t == NodeTypeConditional
}

// PortType tags the values flowing through a port.
type PortType string

const (
	PortTypeTrigger    PortType = "Trigger"
	PortTypeScalar     PortType = "Scalar"
	PortTypeVolume     PortType = "Volume"
	PortTypeObjectList PortType = "ObjectList"
	PortTypeFilePath   PortType = "FilePath"
	PortTypeAny        PortType = "Any"
)

// Valid reports whether t is one of the known port types.
func (t PortType) Valid() bool {
	switch t {
	case PortTypeTrigger, PortTypeScalar, PortTypeVolume, PortTypeObjectList, PortTypeFilePath, PortTypeAny:
		return true
	}

	return false
}

// CompatibleWith reports whether a value of type t may flow into a port of type other.
// Any is compatible with everything, otherwise types must match exactly.
func (t PortType) CompatibleWith(other PortType) bool {
	return t == PortTypeAny || other == PortTypeAny || t == other
}

// Direction of a port.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Well known port ids used by the scope owners.
const (
	PortCurrentItem = "current_item"
	PortIndex       = "index"
	PortTrueBranch  = "true_branch"
	PortFalseBranch = "false_branch"
)
