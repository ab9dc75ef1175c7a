package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/berrylands/noflo/errors"
)

// jsonGraph mirrors the noflo graph definition format
type jsonGraph struct {
	CaseSensitive bool                   `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`
	Properties    map[string]any         `json:"properties,omitempty"    yaml:"properties,omitempty"`
	Inports       map[string]jsonPortRef `json:"inports,omitempty"       yaml:"inports,omitempty"`
	Outports      map[string]jsonPortRef `json:"outports,omitempty"      yaml:"outports,omitempty"`
	Processes     map[string]jsonProcess `json:"processes"               yaml:"processes"`
	Connections   []jsonConnection       `json:"connections"             yaml:"connections"`
}

type jsonProcess struct {
	Component string         `json:"component"          yaml:"component"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type jsonPortRef struct {
	Process string `json:"process" yaml:"process"`
	Port    string `json:"port"    yaml:"port"`
}

type jsonConnection struct {
	Src      *jsonEndpoint  `json:"src,omitempty"      yaml:"src,omitempty"`
	Data     any            `json:"data,omitempty"     yaml:"data,omitempty"`
	Tgt      jsonEndpoint   `json:"tgt"                yaml:"tgt"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type jsonEndpoint struct {
	Process string `json:"process"         yaml:"process"`
	Port    string `json:"port"            yaml:"port"`
	Index   *int   `json:"index,omitempty" yaml:"index,omitempty"`
}

// ParseJSON reads a graph from its JSON definition. The definition is
// validated against the embedded schema before decoding.
func ParseJSON(data []byte) (*Graph, error) {
	if err := validateDefinition(data); err != nil {
		return nil, err
	}
	var def jsonGraph
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, errors.WrapInvalid(err, "Graph", "ParseJSON", "definition decoding")
	}
	return fromDefinition(&def)
}

// ParseYAML reads a graph from its YAML definition
func ParseYAML(data []byte) (*Graph, error) {
	var def jsonGraph
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.WrapInvalid(err, "Graph", "ParseYAML", "definition decoding")
	}
	return fromDefinition(&def)
}

// LoadFile reads a graph definition from disk, dispatching on the file
// extension (.json, .yaml, .yml)
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "Graph", "LoadFile", "definition read")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func fromDefinition(def *jsonGraph) (*Graph, error) {
	name := ""
	if def.Properties != nil {
		if n, ok := def.Properties["name"].(string); ok {
			name = n
		}
	}
	g := New(name)
	g.CaseSensitive = def.CaseSensitive
	if def.Properties != nil {
		g.Properties = def.Properties
	}

	norm := func(s string) string {
		if def.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}

	for id, proc := range def.Processes {
		g.AddNode(id, proc.Component, proc.Metadata)
	}
	for _, conn := range def.Connections {
		if _, ok := g.GetNode(conn.Tgt.Process); !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Graph", "fromDefinition",
				fmt.Sprintf("connection target %s lookup", conn.Tgt.Process))
		}
		tgt := EndpointRef{Node: conn.Tgt.Process, Port: norm(conn.Tgt.Port), Index: conn.Tgt.Index}
		if conn.Src == nil {
			g.AddInitial(conn.Data, tgt, conn.Metadata)
			continue
		}
		if _, ok := g.GetNode(conn.Src.Process); !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Graph", "fromDefinition",
				fmt.Sprintf("connection source %s lookup", conn.Src.Process))
		}
		src := EndpointRef{Node: conn.Src.Process, Port: norm(conn.Src.Port), Index: conn.Src.Index}
		g.AddEdge(src, tgt, conn.Metadata)
	}
	for public, ref := range def.Inports {
		g.AddInport(norm(public), ref.Process, norm(ref.Port))
	}
	for public, ref := range def.Outports {
		g.AddOutport(norm(public), ref.Process, norm(ref.Port))
	}
	return g, nil
}

// MarshalJSON renders the graph in the JSON definition format
func (g *Graph) MarshalJSON() ([]byte, error) {
	def := jsonGraph{
		CaseSensitive: g.CaseSensitive,
		Properties:    g.Properties,
		Processes:     make(map[string]jsonProcess, len(g.Nodes)),
		Connections:   []jsonConnection{},
	}
	if g.Name != "" {
		if def.Properties == nil {
			def.Properties = make(map[string]any)
		}
		def.Properties["name"] = g.Name
	}
	for _, node := range g.Nodes {
		def.Processes[node.ID] = jsonProcess{Component: node.Component, Metadata: node.Metadata}
	}
	for _, edge := range g.Edges {
		def.Connections = append(def.Connections, jsonConnection{
			Src:      &jsonEndpoint{Process: edge.From.Node, Port: edge.From.Port, Index: edge.From.Index},
			Tgt:      jsonEndpoint{Process: edge.To.Node, Port: edge.To.Port, Index: edge.To.Index},
			Metadata: edge.Metadata,
		})
	}
	for _, init := range g.Initializers {
		def.Connections = append(def.Connections, jsonConnection{
			Data:     init.Data,
			Tgt:      jsonEndpoint{Process: init.To.Node, Port: init.To.Port, Index: init.To.Index},
			Metadata: init.Metadata,
		})
	}
	if len(g.Inports) > 0 {
		def.Inports = make(map[string]jsonPortRef, len(g.Inports))
		for public, ref := range g.Inports {
			def.Inports[public] = jsonPortRef{Process: ref.Process, Port: ref.Port}
		}
	}
	if len(g.Outports) > 0 {
		def.Outports = make(map[string]jsonPortRef, len(g.Outports))
		for public, ref := range g.Outports {
			def.Outports[public] = jsonPortRef{Process: ref.Process, Port: ref.Port}
		}
	}
	return json.Marshal(def)
}
