package drawer

import (
	"io"

	"github.com/askiada/go-labflow/pkg/pipeline/measure"
)

// Drawer is an interface that defines the methods for drawing a pipeline.
type Drawer interface {
	// AddNode adds a node to the pipeline drawer.
	AddNode(id, label string) error
	// AddLink adds a link between two nodes, labelled with the connected ports.
	AddLink(sourceID, targetID, label string) error
	// SetStatus colours a node with its run status.
	SetStatus(id string, status Status) error
	// AddMeasure adds a measure to the pipeline drawer.
	AddMeasure(measure measure.Measure) error
	// Draw writes the pipeline graph.
	Draw(wrt io.Writer) error
}
