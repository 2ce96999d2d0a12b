package validate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node types accepted in model content.
const (
	TypeMesh       = "mesh"
	TypeTransform  = "transform"
	TypeNurbsCurve = "nurbsCurve"
)

// pathSep separates the elements of a long node path, "|root|child|shape".
const pathSep = "|"

var (
	// ErrInvalidScene is returned when a scene file cannot be used.
	ErrInvalidScene = errors.New("invalid scene")
)

// Node is one DAG node of a scene.
type Node struct {
	Path string `yaml:"path"`
	Type string `yaml:"type"`
	// Visibility is the node's own visibility flag. Unset means visible.
	Visibility   *bool `yaml:"visibility,omitempty"`
	Intermediate bool  `yaml:"intermediate,omitempty"`
	// LayerHidden is set when a display layer hides the node.
	LayerHidden bool `yaml:"layer_hidden,omitempty"`
}

func (n Node) visibleFlag() bool {
	return n.Visibility == nil || *n.Visibility
}

// Parent returns the long path of the node's parent, or "" for a top-level
// node.
func (n Node) Parent() string {
	return parentOf(n.Path)
}

// IsShape reports whether the node is a rendered shape.
func (n Node) IsShape() bool {
	return n.Type == TypeMesh || n.Type == TypeNurbsCurve
}

func parentOf(path string) string {
	i := strings.LastIndex(path, pathSep)
	if i <= 0 {
		return ""
	}
	return path[:i]
}

// Instance is a named set of scene nodes published together.
type Instance struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// Scene is a node graph addressed by long path.
type Scene struct {
	nodes     map[string]Node
	instances []Instance
}

type sceneFile struct {
	Nodes     []Node     `yaml:"nodes"`
	Instances []Instance `yaml:"instances"`
}

// NewScene builds a scene from nodes. Paths must be unique and absolute.
func NewScene(nodes ...Node) (*Scene, error) {
	s := &Scene{nodes: make(map[string]Node, len(nodes))}
	for _, n := range nodes {
		if !strings.HasPrefix(n.Path, pathSep) || strings.HasSuffix(n.Path, pathSep) {
			return nil, fmt.Errorf("%w: node path %q is not a long path", ErrInvalidScene, n.Path)
		}
		if _, dup := s.nodes[n.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrInvalidScene, n.Path)
		}
		s.nodes[n.Path] = n
	}
	return s, nil
}

// ParseScene decodes a YAML scene document.
func ParseScene(data []byte) (*Scene, error) {
	var f sceneFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	s, err := NewScene(f.Nodes...)
	if err != nil {
		return nil, err
	}
	s.instances = f.Instances
	return s, nil
}

// LoadScene reads a YAML scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return ParseScene(data)
}

// Node returns the node at path.
func (s *Scene) Node(path string) (Node, bool) {
	n, ok := s.nodes[path]
	return n, ok
}

// Instances returns the instances declared in the scene file.
func (s *Scene) Instances() []Instance {
	return append([]Instance(nil), s.instances...)
}

// Instance returns the declared instance called name.
func (s *Scene) Instance(name string) (Instance, bool) {
	for _, inst := range s.instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instance{}, false
}

// IsVisible reports whether path is rendered: its own flag is on, it is not
// hidden by a display layer, it is not an intermediate object and no
// ancestor is hidden.
func (s *Scene) IsVisible(path string) bool {
	n, ok := s.nodes[path]
	if !ok {
		return false
	}
	if !n.visibleFlag() || n.LayerHidden || n.Intermediate {
		return false
	}
	for p := n.Parent(); p != ""; p = parentOf(p) {
		if anc, ok := s.nodes[p]; ok && (!anc.visibleFlag() || anc.LayerHidden) {
			return false
		}
	}
	return true
}
