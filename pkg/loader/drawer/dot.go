// Package drawer renders the loader topology as a Graphviz DOT file, with
// stages coloured by their measured latency.
package drawer

import (
	"fmt"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/student-shriman/torch-io/internal/gstore"
)

// DOTDrawer draws the stage graph into a DOT file.
type DOTDrawer struct {
	fileName string
	store    gstore.Store[string, string]
	graph    graph.Graph[string, string]

	minLatency, maxLatency time.Duration
	latencies              map[string]time.Duration
}

// NewDOTDrawer creates a drawer writing to fileName.
func NewDOTDrawer(fileName string) *DOTDrawer {
	store := gstore.New[string, string]()
	return &DOTDrawer{
		fileName:  fileName,
		store:     store,
		graph:     graph.NewWithStore(graph.StringHash, store, graph.Directed()),
		latencies: make(map[string]time.Duration),
	}
}

// AddStage adds a stage vertex.
func (d *DOTDrawer) AddStage(name string) error {
	if err := d.graph.AddVertex(name); err != nil {
		return errors.Wrapf(err, "unable to add vertex %s", name)
	}
	return nil
}

// AddLink adds a directed link between two stages.
func (d *DOTDrawer) AddLink(parentName, childName string) error {
	if err := d.graph.AddEdge(parentName, childName); err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentName, childName)
	}
	return nil
}

// SetStageLatency records the stage's average durations. The colour scale is
// computed over all recorded stages when Draw runs.
func (d *DOTDrawer) SetStageLatency(name string, avgWork, avgWait time.Duration) error {
	if _, _, err := d.graph.VertexWithProperties(name); err != nil {
		return errors.Wrapf(err, "unable to get vertex %s", name)
	}
	d.latencies[name] = avgWork
	if len(d.latencies) == 1 || avgWork < d.minLatency {
		d.minLatency = avgWork
	}
	if avgWork > d.maxLatency {
		d.maxLatency = avgWork
	}
	d.store.UpdateVertex(name, func(p *graph.VertexProperties) {
		if p.Attributes == nil {
			p.Attributes = make(map[string]string)
		}
		p.Attributes["xlabel"] = fmt.Sprintf("work %s, wait %s", avgWork, avgWait)
	})
	return nil
}

const maxRGB = 240

// latencyColor maps a latency into a blue (fast) to red (slow) ramp.
func (d *DOTDrawer) latencyColor(latency time.Duration) (string, error) {
	fraction := 1.0
	if d.maxLatency > d.minLatency {
		fraction = float64(latency-d.minLatency) / float64(d.maxLatency-d.minLatency)
	}
	red := uint8(maxRGB * fraction)
	blue := uint8(maxRGB * (1 - fraction))
	clr, err := colors.RGB(red, 0, blue) //nolint
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}
	return clr.ToHEX().String(), nil
}

// Draw writes the DOT file, colouring every measured stage.
func (d *DOTDrawer) Draw() error {
	for name, latency := range d.latencies {
		color, err := d.latencyColor(latency)
		if err != nil {
			return err
		}
		d.store.UpdateVertex(name, func(p *graph.VertexProperties) {
			if p.Attributes == nil {
				p.Attributes = make(map[string]string)
			}
			p.Attributes["color"] = color
		})
	}

	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	if err := dot(d.graph, file); err != nil {
		return errors.Wrapf(err, "unable to render %s", d.fileName)
	}
	return nil
}

var _ Drawer = (*DOTDrawer)(nil)

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
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

func dot[K comparable, T any](g graph.Graph[K, T], w io.Writer) error {
	desc, err := generateDOT(g)
	if err != nil {
		return errors.Wrap(err, "failed to generate DOT description")
	}
	return renderDOT(w, desc)
}

func generateDOT[K comparable, T any](g graph.Graph[K, T]) (description, error) {
	desc := description{
		GraphType:    "graph",
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}
	if g.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := g.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	for vertex, adjacencies := range adjacencyMap {
		_, sourceProperties, err := g.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		htmlAttributes := make(map[string]string)
		if xlabel, ok := sourceProperties.Attributes["xlabel"]; ok {
			htmlAttributes["label"] = fmt.Sprintf(`<%+v <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, vertex, xlabel)
			delete(sourceProperties.Attributes, "xlabel")
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: sourceProperties.Attributes,
			HTMLAttributes:   htmlAttributes,
		})

		for adjacency, edge := range adjacencies {
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         adjacency,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}
	return desc, nil
}

func renderDOT(w io.Writer, d description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}
	return tpl.Execute(w, d)
}
