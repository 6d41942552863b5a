package pipeline_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

func samplePipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	p := pipeline.New("scan and detect")
	wf := addNode(t, p, "wf", model.NodeTypeWorkflow, model.Config{
		"workflow_file":    model.String("protocols/scan.xml"),
		"capture_channels": model.List(model.Int(0), model.Int(2)),
	})
	wf.Position = model.Position{X: 10.5, Y: -3}
	addNode(t, p, "detect", model.NodeTypeThreshold, model.Config{
		"threshold":       model.Float(120.5),
		"min_object_size": model.Int(5),
		"opening":         model.Bool(true),
	})
	addNode(t, p, "scale", model.NodeTypeConstant, model.Config{
		"value": model.List(model.Float(2), model.Float(-3), model.Float(1e21), model.Int(2)),
	})
	addNode(t, p, "empty", model.NodeTypeConstant, model.Config{"value": model.Null()})
	addNode(t, p, "loop", model.NodeTypeForEach, nil)
	addNode(t, p, "cmd", model.NodeTypeExternalCommand, model.Config{
		"command": model.String("python3 analyse.py {input_file} {output_dir}"),
		"env": model.Map(map[string]model.Value{
			"MODE": model.String("fast"),
			"skip": model.Null(),
		}),
	})
	connect(t, p, "wf", "volume", "detect", "volume")
	connect(t, p, "detect", "objects", "loop", "items")
	connect(t, p, "loop", model.PortCurrentItem, "cmd", "input")

	return p
}

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []pipeline.Format{pipeline.FormatJSON, pipeline.FormatYAML} {
		format := format
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()

			p := samplePipeline(t)

			var buf bytes.Buffer
			require.NoError(t, p.Encode(&buf, format))

			loaded, err := pipeline.Decode(&buf, format)
			require.NoError(t, err)

			if diff := cmp.Diff(p.ToDocument(), loaded.ToDocument()); diff != "" {
				t.Errorf("document mismatch (-want +got):\n%s", diff)
			}
			assert.Empty(t, loaded.Validate())
		})
	}
}

func TestDocumentKeepsIntegralFloats(t *testing.T) {
	t.Parallel()

	for _, format := range []pipeline.Format{pipeline.FormatJSON, pipeline.FormatYAML} {
		format := format
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()

			p := pipeline.New("defaults")
			addNode(t, p, "detect", model.NodeTypeThreshold, nil)

			var buf bytes.Buffer
			require.NoError(t, p.Encode(&buf, format))

			loaded, err := pipeline.Decode(&buf, format)
			require.NoError(t, err)

			node, ok := loaded.Node("detect")
			require.True(t, ok)
			assert.Equal(t, model.KindFloat, node.Config["threshold"].Kind())
			assert.True(t, model.Float(100).Equal(node.Config["threshold"]))
			assert.Equal(t, model.KindInt, node.Config["min_object_size"].Kind())
		})
	}
}

func TestDocumentSaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := samplePipeline(t)

	for _, name := range []string{"pipeline.json", "pipeline.yaml", "pipeline.yml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, p.Save(path))

		loaded, err := pipeline.Load(path)
		require.NoError(t, err)
		assert.Equal(t, p.NodeIDs(), loaded.NodeIDs())
		assert.Equal(t, p.Connections(), loaded.Connections())
	}
}

func TestDocumentJSONFieldNames(t *testing.T) {
	t.Parallel()

	p := pipeline.New("names")
	addNode(t, p, "k", model.NodeTypeConstant, model.Config{"value": model.Int(7)})
	addNode(t, p, "view", model.NodeTypeSampleViewData, nil)
	connect(t, p, "k", "value", "view", "data")

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf, pipeline.FormatJSON))

	out := buf.String()
	for _, field := range []string{`"node_type": "Constant"`, `"source_node_id": "k"`, `"target_port_id": "data"`, `"value": 7`} {
		assert.Contains(t, out, field)
	}
	assert.NotContains(t, out, "Direction")
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "syntax", doc: `{"nodes": [`},
		{name: "missing node id", doc: `{"nodes": [{"node_type": "Constant"}]}`},
		{name: "duplicate node", doc: `{"nodes": [{"id": "a", "node_type": "Constant"}, {"id": "a", "node_type": "Constant"}]}`},
		{name: "duplicate port", doc: `{"nodes": [{"id": "a", "node_type": "Constant",
			"inputs": [{"id": "x", "type": "Any"}], "outputs": [{"id": "x", "type": "Any"}]}]}`},
		{name: "duplicate connection", doc: `{"nodes": [], "connections": [{"id": "c"}, {"id": "c"}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := pipeline.Decode(strings.NewReader(tt.doc), pipeline.FormatJSON)
			assert.Error(t, err)
		})
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := pipeline.Decode(strings.NewReader("{}"), pipeline.Format("toml"))
	assert.Error(t, err)

	assert.Error(t, pipeline.New("x").Encode(&bytes.Buffer{}, pipeline.Format("toml")))
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pipeline.FormatYAML, pipeline.FormatFromPath("a/b.YAML"))
	assert.Equal(t, pipeline.FormatYAML, pipeline.FormatFromPath("b.yml"))
	assert.Equal(t, pipeline.FormatJSON, pipeline.FormatFromPath("b.json"))
	assert.Equal(t, pipeline.FormatJSON, pipeline.FormatFromPath("b"))
}
