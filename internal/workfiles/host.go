package workfiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"sync"
)

// Session is the asset and task context work files belong to.
type Session struct {
	Project     string
	ProjectCode string
	Asset       string
	Task        string
	App         string
	User        string
}

// CurrentUser returns the login name of the running user, or "" when it
// cannot be determined.
func CurrentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// Data returns the template values of s. A missing project code falls back
// to the project name.
func (s Session) Data() Data {
	code := s.ProjectCode
	if code == "" {
		code = s.Project
	}
	d := Data{
		"project": map[string]any{"name": s.Project, "code": code},
		"asset":   s.Asset,
		"task":    s.Task,
	}
	if s.App != "" {
		d["app"] = s.App
	}
	if s.User != "" {
		d["user"] = s.User
	}
	return d
}

// Host is the application work files are opened in and saved from.
type Host interface {
	OpenFile(ctx context.Context, path string) error
	SaveFile(ctx context.Context, path string) error
	// CurrentFile is the path of the open scene, or "" when it was never
	// saved.
	CurrentFile() string
	HasUnsavedChanges() bool
	WorkRoot(s Session) (string, error)
	// FileExtensions lists the extensions the host reads, preferred first.
	FileExtensions() []string
}

// pathPlaceholder is replaced by the file path in host commands.
const pathPlaceholder = "{path}"

// ExecHost drives an application through shell commands. Each argument of
// OpenCommand and SaveCommand has "{path}" replaced by the file path; an
// empty command only records the path.
type ExecHost struct {
	Extensions  []string
	Root        *Template
	OpenCommand []string
	SaveCommand []string

	mu      sync.Mutex
	current string
	dirty   bool
}

var _ Host = (*ExecHost)(nil)

// NewExecHost returns a host placing work files under root, a template
// formatted with the session's data.
func NewExecHost(root string, extensions []string, openCmd, saveCmd []string) (*ExecHost, error) {
	tpl, err := ParseTemplate(root)
	if err != nil {
		return nil, fmt.Errorf("work root: %w", err)
	}
	if len(extensions) == 0 {
		return nil, errors.New("host needs at least one file extension")
	}
	return &ExecHost{
		Extensions:  extensions,
		Root:        tpl,
		OpenCommand: openCmd,
		SaveCommand: saveCmd,
	}, nil
}

func (h *ExecHost) run(ctx context.Context, command []string, path string) error {
	if len(command) == 0 {
		return nil
	}
	args := make([]string, len(command))
	for i, a := range command {
		args[i] = strings.ReplaceAll(a, pathPlaceholder, path)
	}
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (h *ExecHost) OpenFile(ctx context.Context, path string) error {
	if err := h.run(ctx, h.OpenCommand, path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	h.mu.Lock()
	h.current, h.dirty = path, false
	h.mu.Unlock()
	return nil
}

func (h *ExecHost) SaveFile(ctx context.Context, path string) error {
	if err := h.run(ctx, h.SaveCommand, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	h.mu.Lock()
	h.current, h.dirty = path, false
	h.mu.Unlock()
	return nil
}

func (h *ExecHost) CurrentFile() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *ExecHost) HasUnsavedChanges() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty
}

// MarkModified flags the open scene as changed since the last save.
func (h *ExecHost) MarkModified() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirty = true
}

func (h *ExecHost) WorkRoot(s Session) (string, error) {
	return h.Root.Format(s.Data())
}

func (h *ExecHost) FileExtensions() []string {
	return append([]string(nil), h.Extensions...)
}
