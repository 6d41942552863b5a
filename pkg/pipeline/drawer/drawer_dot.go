package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-labflow/internal/store"
	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/measure"
)

// Status of a node during a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var statusRGB = map[Status][3]uint8{
	StatusPending:   {220, 220, 220},
	StatusRunning:   {135, 206, 250},
	StatusCompleted: {144, 238, 144},
	StatusFailed:    {255, 99, 71},
}

// DOTDrawer renders a pipeline in the graphviz DOT language.
type DOTDrawer struct {
	mu    sync.Mutex
	graph graph.Graph[string, string]
	store *store.OrderedStore[string, string]
}

// NewDOTDrawer creates an empty drawer.
func NewDOTDrawer() *DOTDrawer {
	st := store.NewOrderedStore[string, string]()

	return &DOTDrawer{
		graph: graph.NewWithStore[string, string](graph.StringHash, st, graph.Directed()),
		store: st,
	}
}

// FromPipeline creates a drawer holding every node and connection of p.
func FromPipeline(p *pipeline.Pipeline) (*DOTDrawer, error) {
	d := NewDOTDrawer()

	for _, node := range p.Nodes() {
		err := d.AddNode(node.ID, fmt.Sprintf("%s (%s)", node.Label(), node.Type))
		if err != nil {
			return nil, err
		}
	}

	for _, conn := range p.Connections() {
		err := d.AddLink(conn.SourceNodeID, conn.TargetNodeID, conn.SourcePortID+" → "+conn.TargetPortID)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// AddNode adds a node to the pipeline graph.
func (d *DOTDrawer) AddNode(id, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.graph.AddVertex(id,
		graph.VertexAttribute("label", label),
		graph.VertexAttribute("shape", "box"),
		graph.VertexAttribute("style", "filled"),
	)
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}

	return d.setStatusLocked(id, StatusPending)
}

// AddLink adds a link between two nodes. Parallel connections share one edge with a joined label.
func (d *DOTDrawer) AddLink(sourceID, targetID, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.graph.AddEdge(sourceID, targetID, graph.EdgeAttribute("label", label))
	if err == nil {
		return nil
	}
	if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", sourceID, targetID)
	}

	edge, err := d.graph.Edge(sourceID, targetID)
	if err != nil {
		return errors.Wrap(err, "unable to get edge")
	}

	err = d.graph.UpdateEdge(sourceID, targetID, graph.EdgeAttribute("label", edge.Properties.Attributes["label"]+`\n`+label))
	if err != nil {
		return errors.Wrap(err, "unable to update edge")
	}

	return nil
}

// SetStatus colours a node with its run status.
func (d *DOTDrawer) SetStatus(id string, status Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.setStatusLocked(id, status)
}

func (d *DOTDrawer) setStatusLocked(id string, status Status) error {
	rgb, ok := statusRGB[status]
	if !ok {
		return errors.Errorf("unknown status %q", status)
	}

	colour, err := colors.RGB(rgb[0], rgb[1], rgb[2]) //nolint
	if err != nil {
		return errors.Wrap(err, "unable to get colour")
	}

	err = d.store.UpdateVertex(id, graph.VertexAttribute("fillcolor", colour.ToHEX().String()))
	if err != nil {
		return errors.Wrapf(err, "unable to update vertex %q", id)
	}

	return nil
}

// Listen follows executor events and keeps node colours in sync with the run.
func (d *DOTDrawer) Listen(event pipeline.Event) {
	var status Status

	switch event.Kind {
	case pipeline.EventNodeStarted:
		status = StatusRunning
	case pipeline.EventNodeCompleted:
		status = StatusCompleted
	case pipeline.EventNodeFailed:
		status = StatusFailed
	default:
		return
	}

	// Events for nodes added after the drawer was built are ignored.
	_ = d.SetStatus(event.NodeID, status)
}

const maxRGB = 240

// AddMeasure writes the average duration and the run time at which the node finished next to each node,
// and colours its border from blue (fastest) to red (slowest).
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	metrics := msr.AllMetrics()
	if len(metrics) == 0 {
		return nil
	}

	durations := make([]time.Duration, 0, len(metrics))
	for _, mt := range metrics {
		durations = append(durations, mt.AVGDuration())
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] > durations[j]
	})

	maxValue := durations[0]
	minValue := durations[len(durations)-1]

	for id, mt := range metrics {
		avg := mt.AVGDuration()

		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(avg-minValue) / float64(maxValue-minValue)
		}

		red := maxRGB * fraction
		blue := -maxRGB*fraction + maxRGB

		colour, err := colors.RGB(uint8(red), 0, uint8(blue)) //nolint
		if err != nil {
			return errors.Wrap(err, "unable to get colour")
		}

		xlabel := avg.String()
		if count := mt.Count(); count > 1 {
			xlabel = fmt.Sprintf("%s x%d", xlabel, count)
		}
		if total := mt.GetTotalDuration(); total > 0 {
			xlabel = fmt.Sprintf("%s @ %s", xlabel, total.Round(time.Millisecond))
		}

		err = d.store.UpdateVertex(id,
			graph.VertexAttribute("xlabel", xlabel),
			graph.VertexAttribute("color", colour.ToHEX().String()),
		)
		if err != nil && !errors.Is(err, graph.ErrVertexNotFound) {
			return errors.Wrap(err, "unable to update vertex")
		}
	}

	return nil
}

// Draw writes the DOT description of the graph.
func (d *DOTDrawer) Draw(wrt io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return dot(d.graph, d.store, wrt)
}

// DrawFile creates a file with the DOT description of the graph.
func (d *DOTDrawer) DrawFile(fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", fileName)
	}
	defer file.Close()

	err = d.Draw(file)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", fileName)
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func dot(gra graph.Graph[string, string], st *store.OrderedStore[string, string], wrt io.Writer, options ...func(*description)) error {
	desc, err := generateDOT(gra, st, options...)
	if err != nil {
		return fmt.Errorf("failed to generate DOT description: %w", err)
	}

	return renderDOT(wrt, desc)
}

// GraphAttribute is a functional option for the [DOT] method.
func GraphAttribute(key, value string) func(*description) {
	return func(d *description) {
		d.Attributes[key] = value
	}
}

// generateDOT lists vertices and edges in insertion order so the output is reproducible.
func generateDOT(gra graph.Graph[string, string], st *store.OrderedStore[string, string], options ...func(*description)) (description, error) {
	desc := description{
		GraphType:    "digraph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "->",
		Statements:   make([]statement, 0),
	}

	for _, option := range options {
		option(&desc)
	}

	vertices, err := st.ListVertices()
	if err != nil {
		return desc, errors.Wrap(err, "unable to list vertices")
	}

	for _, vertex := range vertices {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		sourceAttributes := make(map[string]string, len(sourceProperties.Attributes))
		for k, v := range sourceProperties.Attributes {
			sourceAttributes[k] = v
		}

		htmlAttributes := make(map[string]string)

		if xlabel, ok := sourceAttributes["xlabel"]; ok {
			htmlAttributes["label"] = fmt.Sprintf(`<%+v <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, sourceAttributes["label"], xlabel)

			delete(sourceAttributes, "xlabel")
			delete(sourceAttributes, "label")
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: sourceAttributes,
			HTMLAttributes:   htmlAttributes,
		})
	}

	edges, err := st.ListEdges()
	if err != nil {
		return desc, errors.Wrap(err, "unable to list edges")
	}

	for _, edge := range edges {
		desc.Statements = append(desc.Statements, statement{
			Source:         edge.Source,
			Target:         edge.Target,
			EdgeWeight:     edge.Properties.Weight,
			EdgeAttributes: edge.Properties.Attributes,
		})
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
