package pipeline_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

func TestValidateEmptyPipeline(t *testing.T) {
	t.Parallel()

	assert.Empty(t, pipeline.New("empty").Validate())
}

func TestValidateReportsProblems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(t *testing.T) *pipeline.Pipeline
		want  string
	}{
		{
			name: "unknown node type",
			build: func(t *testing.T) *pipeline.Pipeline {
				p := pipeline.New("unknown")
				addNode(t, p, "x", model.NodeType("Teleport"), nil)

				return p
			},
			want: `node "x": unknown node type "Teleport"`,
		},
		{
			name: "missing required config",
			build: func(t *testing.T) *pipeline.Pipeline {
				p := pipeline.New("config")
				addNode(t, p, "wf", model.NodeTypeWorkflow, nil)

				return p
			},
			want: `node "wf": missing required config "workflow_file"`,
		},
		{
			name: "missing constant value",
			build: func(t *testing.T) *pipeline.Pipeline {
				p := pipeline.New("constant")
				addNode(t, p, "k", model.NodeTypeConstant, nil)

				return p
			},
			want: `node "k": missing required config "value"`,
		},
		{
			name: "unconnected required input",
			build: func(t *testing.T) *pipeline.Pipeline {
				p := pipeline.New("required")
				addNode(t, p, "view", model.NodeTypeSampleViewData, nil)

				return p
			},
			want: `node "view": required input "data" is not connected`,
		},
		{
			name: "bad port type",
			build: func(t *testing.T) *pipeline.Pipeline {
				p := pipeline.New("port")
				node := addStep(t, p, "cmd")
				node.Outputs = append(node.Outputs, model.Port{ID: "blob", Type: model.PortType("Blob")})

				return p
			},
			want: `node "cmd": port "blob" has unknown type "Blob"`,
		},
		{
			name: "dangling connection",
			build: func(t *testing.T) *pipeline.Pipeline {
				return decodeJSON(t, `{
					"name": "dangling",
					"nodes": [{"id": "a", "node_type": "ExternalCommand", "config": {"command": "true"},
						"inputs": [{"id": "input", "type": "Any"}], "outputs": [{"id": "output", "type": "Any"}]}],
					"connections": [{"id": "c1", "source_node_id": "a", "source_port_id": "output",
						"target_node_id": "ghost", "target_port_id": "input"}]
				}`)
			},
			want: `connection "c1": target node "ghost" does not exist`,
		},
		{
			name: "duplicate incoming connection",
			build: func(t *testing.T) *pipeline.Pipeline {
				return decodeJSON(t, `{
					"name": "fan-in",
					"nodes": [
						{"id": "a", "node_type": "Constant", "config": {"value": 1}, "outputs": [{"id": "value", "type": "Any"}]},
						{"id": "b", "node_type": "Constant", "config": {"value": 2}, "outputs": [{"id": "value", "type": "Any"}]},
						{"id": "v", "node_type": "SampleViewData", "inputs": [{"id": "data", "type": "Any"}],
							"outputs": [{"id": "passthrough", "type": "Any"}]}
					],
					"connections": [
						{"id": "c1", "source_node_id": "a", "source_port_id": "value", "target_node_id": "v", "target_port_id": "data"},
						{"id": "c2", "source_node_id": "b", "source_port_id": "value", "target_node_id": "v", "target_port_id": "data"}
					]
				}`)
			},
			want: `node "v": input port "data" has 2 incoming connections`,
		},
		{
			name: "incompatible types",
			build: func(t *testing.T) *pipeline.Pipeline {
				return decodeJSON(t, `{
					"name": "types",
					"nodes": [
						{"id": "t1", "node_type": "Threshold", "inputs": [{"id": "volume", "type": "Volume"}],
							"outputs": [{"id": "count", "type": "Scalar"}]},
						{"id": "t2", "node_type": "Threshold", "inputs": [{"id": "volume", "type": "Volume"}],
							"outputs": [{"id": "count", "type": "Scalar"}]}
					],
					"connections": [
						{"id": "c1", "source_node_id": "t1", "source_port_id": "count", "target_node_id": "t2", "target_port_id": "volume"}
					]
				}`)
			},
			want: `connection "c1": incompatible port types Scalar -> Volume`,
		},
		{
			name: "self loop",
			build: func(t *testing.T) *pipeline.Pipeline {
				return decodeJSON(t, `{
					"name": "loop",
					"nodes": [{"id": "a", "node_type": "ExternalCommand", "config": {"command": "true"},
						"inputs": [{"id": "input", "type": "Any"}], "outputs": [{"id": "output", "type": "Any"}]}],
					"connections": [{"id": "c1", "source_node_id": "a", "source_port_id": "output",
						"target_node_id": "a", "target_port_id": "input"}]
				}`)
			},
			want: "cycle detected between nodes: a",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := tt.build(t)
			problems := p.Validate()
			require.NotEmpty(t, problems)
			assert.Contains(t, problems, tt.want, strings.Join(problems, "\n"))
		})
	}
}

func TestValidateAcceptsNullRequiredConfig(t *testing.T) {
	t.Parallel()

	p := pipeline.New("null")
	addNode(t, p, "k", model.NodeTypeConstant, model.Config{"value": model.Null()})
	assert.Empty(t, p.Validate())

	loaded := decodeJSON(t, `{
		"name": "null",
		"nodes": [{"id": "k", "node_type": "Constant", "config": {"value": null},
			"outputs": [{"id": "value", "type": "Any"}]}]
	}`)
	assert.Empty(t, loaded.Validate())
}

func TestValidateDoesNotMutate(t *testing.T) {
	t.Parallel()

	p := pipeline.New("untouched")
	chain(t, p, "a", "b")
	addNode(t, p, "view", model.NodeTypeSampleViewData, nil)

	before := p.ToDocument()
	require.NotEmpty(t, p.Validate())
	assert.Equal(t, before, p.ToDocument())
}

func decodeJSON(t *testing.T, doc string) *pipeline.Pipeline {
	t.Helper()

	p, err := pipeline.Decode(strings.NewReader(doc), pipeline.FormatJSON)
	require.NoError(t, err)

	return p
}
