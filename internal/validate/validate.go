// Package validate checks the content of model instances before they are
// published.
package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var (
	// ErrInstanceEmpty is returned when an instance selects no usable nodes.
	ErrInstanceEmpty = errors.New("instance has no nodes")

	// ErrInvalidContent is returned when an instance holds nodes that may not
	// be published.
	ErrInvalidContent = errors.New("model content is invalid")
)

// AllowedTypes are the node types a model may contain.
var AllowedTypes = []string{TypeMesh, TypeTransform, TypeNurbsCurve}

// Result is the outcome of a content check. Empty is distinct from a
// non-empty Invalid list.
type Result struct {
	Empty   bool
	Invalid []string
}

// OK reports whether the instance passed.
func (r Result) OK() bool {
	return !r.Empty && len(r.Invalid) == 0
}

// ModelContent validates that a model has one visible top group holding
// only meshes, transforms and curves, with at least one visible shape.
type ModelContent struct {
	logger *slog.Logger
}

// NewModelContent returns a validator logging to logger, or slog.Default()
// when nil.
func NewModelContent(logger *slog.Logger) *ModelContent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelContent{logger: logger}
}

// Validate checks inst against scene.
func (v *ModelContent) Validate(scene *Scene, inst Instance) Result {
	log := v.logger.With("instance", inst.Name)

	if len(inst.Members) == 0 {
		log.Error("validate_instance_empty")
		return Result{Empty: true}
	}

	var nodes, valid []Node
	var invalid []string
	for _, path := range inst.Members {
		n, ok := scene.Node(path)
		if !ok {
			log.Debug("validate_member_missing", "node", path)
			continue
		}
		nodes = append(nodes, n)
		if slices.Contains(AllowedTypes, n.Type) {
			valid = append(valid, n)
		} else {
			invalid = append(invalid, n.Path)
		}
	}
	if len(invalid) > 0 {
		log.Error("validate_types_not_allowed", "nodes", invalid)
		return Result{Invalid: sorted(invalid)}
	}

	var assemblies []string
	for _, n := range nodes {
		if n.Parent() == "" {
			assemblies = append(assemblies, n.Path)
		}
	}
	switch {
	case len(assemblies) == 0:
		log.Warn("validate_no_top_group")
		return Result{Empty: true}
	case len(assemblies) > 1:
		log.Error("validate_multiple_top_groups", "assemblies", assemblies)
		return Result{Invalid: sorted(assemblies)}
	}

	if len(valid) == 0 {
		log.Error("validate_no_valid_nodes")
		return Result{Empty: true}
	}

	for _, a := range assemblies {
		if !scene.IsVisible(a) {
			log.Error("validate_hidden_assembly", "node", a)
			invalid = append(invalid, a)
		}
	}

	var shapes []string
	anyVisible := false
	for _, n := range valid {
		if !n.IsShape() {
			continue
		}
		shapes = append(shapes, n.Path)
		if scene.IsVisible(n.Path) {
			anyVisible = true
		}
	}
	switch {
	case len(shapes) == 0:
		// Nothing would render; the assembly is reported instead.
		log.Error("validate_no_shapes", "node", assemblies[0])
		if !slices.Contains(invalid, assemblies[0]) {
			invalid = append(invalid, assemblies[0])
		}
	case !anyVisible:
		log.Error("validate_no_visible_shapes")
		invalid = append(invalid, shapes...)
	}

	return Result{Invalid: sorted(invalid)}
}

// Process validates inst and turns a failed check into an error.
func (v *ModelContent) Process(scene *Scene, inst Instance) error {
	res := v.Validate(scene, inst)
	switch {
	case res.Empty:
		return fmt.Errorf("%w: %s", ErrInstanceEmpty, inst.Name)
	case len(res.Invalid) > 0:
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, inst.Name, res.Invalid)
	}
	return nil
}

func sorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
