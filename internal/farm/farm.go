// Package farm resolves the render farm a project submits to and the
// submission attributes configured for it.
package farm

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

var (
	// ErrNoActiveFarm is returned when no farm module is enabled.
	ErrNoActiveFarm = errors.New("no active farm module found in system settings")

	// ErrMultipleActiveFarms is returned when more than one farm module is
	// enabled.
	ErrMultipleActiveFarms = errors.New("multiple active farm modules found in system settings")

	// ErrFarmPluginNotFound is returned when the active farm module has no
	// submit plugin for the host.
	ErrFarmPluginNotFound = errors.New("farm plugin not found")

	// ErrInvalidSetting is returned when a submission value is not a whole
	// number.
	ErrInvalidSetting = errors.New("invalid farm setting")
)

// Modules are the farm modules that can be enabled, in lookup order.
var Modules = []string{"deadline", "muster", "royalrender"}

// Submission attribute keys read from the plugin settings.
const (
	KeyChunkSize       = "chunk_size"
	KeyPriority        = "priority"
	KeyConcurrentTasks = "concurrent_tasks"
)

var attributeKeys = []string{KeyChunkSize, KeyPriority, KeyConcurrentTasks}

// plugins maps host, then farm module, to the submit plugin name.
var plugins = map[string]map[string]string{
	"nuke": {"deadline": "NukeSubmitDeadline"},
}

// DefaultHost is the host whose plugins are used when none is given.
const DefaultHost = "nuke"

// SubmissionParams are the typed submission attributes. Absent keys are
// zero.
type SubmissionParams struct {
	ChunkSize       int
	Priority        int
	ConcurrentTasks int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHost selects the host whose submit plugins are used.
func WithHost(host string) Option {
	return func(r *Resolver) { r.host = host }
}

// WithLogger sets the logger for missing-key warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// Resolver reads farm settings for one project.
type Resolver struct {
	project Settings
	module  string
	host    string
	logger  *slog.Logger
}

// NewResolver picks the active farm module from system and reads
// attributes from project.
func NewResolver(system, project Settings, opts ...Option) (*Resolver, error) {
	r := &Resolver{project: project, host: DefaultHost}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	var active []string
	for _, m := range Modules {
		if system.Bool("modules", m, "enabled") {
			active = append(active, m)
		}
	}
	switch len(active) {
	case 0:
		return nil, ErrNoActiveFarm
	case 1:
		r.module = active[0]
	default:
		return nil, fmt.Errorf("%w: %v", ErrMultipleActiveFarms, active)
	}
	return r, nil
}

// ActiveFarmModule returns the enabled farm module.
func (r *Resolver) ActiveFarmModule() string {
	return r.module
}

// Plugin returns the submit plugin of the active farm for the host.
func (r *Resolver) Plugin() (string, error) {
	p, ok := plugins[r.host][r.module]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrFarmPluginNotFound, r.module, r.host)
	}
	return p, nil
}

// RenderingAttributes returns the submission attributes configured under
// <module>.publish.<plugin>. Absent keys are logged and skipped.
func (r *Resolver) RenderingAttributes() (map[string]any, error) {
	plugin, err := r.Plugin()
	if err != nil {
		return nil, err
	}
	section, ok := r.project.Section(r.module, "publish", plugin)
	if !ok {
		return nil, fmt.Errorf("%w: no settings at %s.publish.%s", ErrFarmPluginNotFound, r.module, plugin)
	}

	out := make(map[string]any, len(attributeKeys))
	for _, key := range attributeKeys {
		v, ok := section[key]
		if !ok {
			r.logger.Warn("farm_key_missing", "key", key, "plugin", plugin)
			continue
		}
		out[key] = v
	}
	return out, nil
}

// SubmissionParams returns RenderingAttributes as integers.
func (r *Resolver) SubmissionParams() (SubmissionParams, error) {
	attrs, err := r.RenderingAttributes()
	if err != nil {
		return SubmissionParams{}, err
	}
	var p SubmissionParams
	targets := map[string]*int{
		KeyChunkSize:       &p.ChunkSize,
		KeyPriority:        &p.Priority,
		KeyConcurrentTasks: &p.ConcurrentTasks,
	}
	for key, dst := range targets {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return SubmissionParams{}, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		*dst = n
	}
	return p, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
