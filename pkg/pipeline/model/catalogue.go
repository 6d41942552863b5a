package model

// PortSpec describes a port declared by a node type.
type PortSpec struct {
	ID       string
	Name     string
	Type     PortType
	Required bool
}

// TypeSpec describes a node type: its ports, mandatory settings and config defaults.
type TypeSpec struct {
	Type           NodeType
	Inputs         []PortSpec
	Outputs        []PortSpec
	RequiredConfig []string
	Defaults       Config
}

var catalogue = map[NodeType]TypeSpec{
	NodeTypeWorkflow: {
		Type: NodeTypeWorkflow,
		Inputs: []PortSpec{
			{ID: "trigger", Name: "Trigger", Type: PortTypeAny},
		},
		Outputs: []PortSpec{
			{ID: "done", Name: "Done", Type: PortTypeTrigger},
			{ID: "volume", Name: "Volume", Type: PortTypeVolume},
		},
		RequiredConfig: []string{"workflow_file"},
	},
	NodeTypeThreshold: {
		Type: NodeTypeThreshold,
		Inputs: []PortSpec{
			{ID: "volume", Name: "Volume", Type: PortTypeVolume},
		},
		Outputs: []PortSpec{
			{ID: "objects", Name: "Objects", Type: PortTypeObjectList},
			{ID: "mask", Name: "Mask", Type: PortTypeVolume},
			{ID: "count", Name: "Count", Type: PortTypeScalar},
		},
		Defaults: Config{
			"threshold":       Float(100),
			"min_object_size": Int(1),
			"opening":         Bool(false),
		},
	},
	NodeTypeExternalCommand: {
		Type: NodeTypeExternalCommand,
		Inputs: []PortSpec{
			{ID: "input", Name: "Input", Type: PortTypeAny},
		},
		Outputs: []PortSpec{
			{ID: "output", Name: "Output", Type: PortTypeAny},
			{ID: "output_file", Name: "Output File", Type: PortTypeFilePath},
		},
		RequiredConfig: []string{"command"},
		Defaults: Config{
			"input_format":  String("json"),
			"output_format": String("json"),
		},
	},
	NodeTypeForEach: {
		Type: NodeTypeForEach,
		Inputs: []PortSpec{
			{ID: "items", Name: "Items", Type: PortTypeAny},
		},
		Outputs: []PortSpec{
			{ID: PortCurrentItem, Name: "Current Item", Type: PortTypeAny},
			{ID: PortIndex, Name: "Index", Type: PortTypeScalar},
			{ID: "count", Name: "Count", Type: PortTypeScalar},
			{ID: "done", Name: "Done", Type: PortTypeTrigger},
		},
	},
	NodeTypeConditional: {
		Type: NodeTypeConditional,
		Inputs: []PortSpec{
			{ID: "value", Name: "Value", Type: PortTypeAny},
		},
		Outputs: []PortSpec{
			{ID: PortTrueBranch, Name: "True", Type: PortTypeAny},
			{ID: PortFalseBranch, Name: "False", Type: PortTypeAny},
			{ID: "result", Name: "Result", Type: PortTypeScalar},
		},
		RequiredConfig: []string{"expression"},
	},
	NodeTypeSampleViewData: {
		Type: NodeTypeSampleViewData,
		Inputs: []PortSpec{
			{ID: "data", Name: "Data", Type: PortTypeAny, Required: true},
		},
		Outputs: []PortSpec{
			{ID: "passthrough", Name: "Data", Type: PortTypeAny},
		},
	},
	NodeTypeConstant: {
		Type: NodeTypeConstant,
		Outputs: []PortSpec{
			{ID: "value", Name: "Value", Type: PortTypeAny},
		},
		RequiredConfig: []string{"value"},
	},
}

// Lookup returns the catalogue entry of a node type.
func Lookup(nodeType NodeType) (TypeSpec, bool) {
	spec, ok := catalogue[nodeType]

	return spec, ok
}

// NodeTypes returns every node type of the catalogue in palette order.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeWorkflow,
		NodeTypeThreshold,
		NodeTypeExternalCommand,
		NodeTypeForEach,
		NodeTypeConditional,
		NodeTypeSampleViewData,
		NodeTypeConstant,
	}
}
