package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// Document is the serialized form of a pipeline shared with the editor.
type Document struct {
	Name        string             `json:"name" yaml:"name"`
	Nodes       []NodeDocument     `json:"nodes" yaml:"nodes"`
	Connections []model.Connection `json:"connections" yaml:"connections"`
}

// NodeDocument is the serialized form of a node.
type NodeDocument struct {
	ID       string         `json:"id" yaml:"id"`
	NodeType model.NodeType `json:"node_type" yaml:"node_type"`
	Name     string         `json:"name" yaml:"name"`
	X        float64        `json:"x" yaml:"x"`
	Y        float64        `json:"y" yaml:"y"`
	Config   model.Config   `json:"config" yaml:"config"`
	Inputs   []model.Port   `json:"inputs" yaml:"inputs"`
	Outputs  []model.Port   `json:"outputs" yaml:"outputs"`
}

// Format of a serialized document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}

	return FormatJSON
}

// ToDocument snapshots the pipeline.
func (p *Pipeline) ToDocument() Document {
	p.mu.RLock()
	defer p.mu.RUnlock()

	doc := Document{
		Name:        p.Name,
		Nodes:       make([]NodeDocument, 0, len(p.nodeOrder)),
		Connections: make([]model.Connection, 0, len(p.connOrder)),
	}

	for _, id := range p.nodeOrder {
		node := p.nodes[id]
		doc.Nodes = append(doc.Nodes, NodeDocument{
			ID:       node.ID,
			NodeType: node.Type,
			Name:     node.Name,
			X:        node.Position.X,
			Y:        node.Position.Y,
			Config:   node.Config.Clone(),
			Inputs:   append([]model.Port{}, node.Inputs...),
			Outputs:  append([]model.Port{}, node.Outputs...),
		})
	}

	for _, cid := range p.connOrder {
		doc.Connections = append(doc.Connections, *p.connections[cid])
	}

	return doc
}

// FromDocument rebuilds a pipeline. Connections are restored as written, call Validate to check them.
func FromDocument(doc Document) (*Pipeline, error) {
	p := New(doc.Name)

	for i, nd := range doc.Nodes {
		if nd.ID == "" {
			return nil, errors.Errorf("node %d has no id", i)
		}

		seen := map[string]struct{}{}
		for _, port := range append(append([]model.Port(nil), nd.Inputs...), nd.Outputs...) {
			if _, ok := seen[port.ID]; ok {
				return nil, errors.Errorf("node %q: duplicate port id %q", nd.ID, port.ID)
			}
			seen[port.ID] = struct{}{}
		}

		config := nd.Config.Clone()
		node := &model.Node{
			ID:       nd.ID,
			Type:     nd.NodeType,
			Name:     nd.Name,
			Inputs:   append([]model.Port(nil), nd.Inputs...),
			Outputs:  append([]model.Port(nil), nd.Outputs...),
			Config:   config,
			Position: model.Position{X: nd.X, Y: nd.Y},
		}

		err := p.AddNode(node)
		if err != nil {
			return nil, errors.Wrap(err, "unable to restore node")
		}
	}

	for _, conn := range doc.Connections {
		err := p.addConnectionUnchecked(conn)
		if err != nil {
			return nil, errors.Wrap(err, "unable to restore connection")
		}
	}

	return p, nil
}

// Encode writes the pipeline document in the given format.
func (p *Pipeline) Encode(w io.Writer, format Format) error {
	doc := p.ToDocument()

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, "unable to encode yaml document")
		}

		return errors.Wrap(enc.Close(), "unable to flush yaml document")
	case FormatJSON:
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return errors.Wrap(err, "unable to encode json document")
		}
		_, err = w.Write(append(raw, '\n'))

		return errors.Wrap(err, "unable to write json document")
	}

	return errors.Errorf("unknown document format %q", format)
}

// Decode reads a pipeline document in the given format.
func Decode(r io.Reader, format Format) (*Pipeline, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read document")
	}

	var doc Document
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(raw, &doc)
	case FormatJSON:
		err = json.NewDecoder(bytes.NewReader(raw)).Decode(&doc)
	default:
		return nil, errors.Errorf("unknown document format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode %s document", format)
	}

	return FromDocument(doc)
}

// Load reads a pipeline document from disk, choosing the format from the extension.
func Load(path string) (*Pipeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	return Decode(file, FormatFromPath(path))
}

// Save writes the pipeline document to disk, choosing the format from the extension.
func (p *Pipeline) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", path)
	}

	err = p.Encode(file, FormatFromPath(path))
	if err != nil {
		_ = file.Close()

		return err
	}

	return errors.Wrapf(file.Close(), "unable to close %s", path)
}
