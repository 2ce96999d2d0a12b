// Package workfiles lists, names, opens and saves the work files of an
// asset task.
package workfiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrUnnamedScene is returned when saving before open was requested but
	// the current scene was never saved under a name.
	ErrUnnamedScene = errors.New("can't save scene with no filename, save it with Save As first")

	// ErrFileExists is returned when a requested work file name is taken.
	ErrFileExists = errors.New("work file already exists")

	// ErrBrowserClosed is returned by a browser after its App closed it.
	ErrBrowserClosed = errors.New("browser closed")
)

// DefaultDebounce coalesces bursts of directory events in Watch.
const DefaultDebounce = 100 * time.Millisecond

// File is a work file on disk.
type File struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// NameOptions selects the name of a new work file.
type NameOptions struct {
	// Version pins the version; 0 picks the next available one.
	Version int
	Comment string
	// Ext defaults to the extension of the current file, else the host's
	// first extension.
	Ext string
}

// PromptResult is the answer to the unsaved changes prompt.
type PromptResult int

const (
	PromptCancel PromptResult = iota
	PromptSave
	PromptDiscard
)

// Prompt asks what to do with unsaved changes before opening a file.
type Prompt func() PromptResult

// Browser works on the files of one session's work directory.
type Browser struct {
	host     Host
	session  Session
	template *Template
	root     string
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newBrowser(host Host, session Session, tpl *Template, logger *slog.Logger) (*Browser, error) {
	root, err := host.WorkRoot(session)
	if err != nil {
		return nil, fmt.Errorf("resolve work root: %w", err)
	}
	return &Browser{
		host:     host,
		session:  session,
		template: tpl,
		root:     root,
		logger:   logger.With("asset", session.Asset, "task", session.Task),
	}, nil
}

func (b *Browser) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrowserClosed
	}
	return nil
}

func (b *Browser) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Root returns the work directory.
func (b *Browser) Root() string {
	return b.root
}

// Session returns the browsed session.
func (b *Browser) Session() Session {
	return b.session
}

// Files lists the work files with a host extension, sorted by name. A
// missing work directory lists nothing.
func (b *Browser) Files() ([]File, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list work files: %w", err)
	}

	exts := b.host.FileExtensions()
	var files []File
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(exts, filepath.Ext(e.Name())) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:     e.Name(),
			Path:     filepath.Join(b.root, e.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	slices.SortFunc(files, func(a, c File) int { return strings.Compare(a.Name, c.Name) })
	return files, nil
}

// LastModified returns the most recently modified work file.
func (b *Browser) LastModified() (File, bool, error) {
	files, err := b.Files()
	if err != nil || len(files) == 0 {
		return File{}, false, err
	}
	latest := files[0]
	for _, f := range files[1:] {
		if f.Modified.After(latest.Modified) {
			latest = f
		}
	}
	return latest, true, nil
}

func (b *Browser) extension(opts NameOptions) string {
	if opts.Ext != "" {
		if !strings.HasPrefix(opts.Ext, ".") {
			return "." + opts.Ext
		}
		return opts.Ext
	}
	if cur := b.host.CurrentFile(); cur != "" {
		if ext := filepath.Ext(cur); ext != "" {
			return ext
		}
	}
	if exts := b.host.FileExtensions(); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// WorkFileName returns the file name a save with opts would create.
func (b *Browser) WorkFileName(opts NameOptions) (string, error) {
	if err := b.check(); err != nil {
		return "", err
	}
	data := b.session.Data()
	data["ext"] = b.extension(opts)
	if opts.Comment != "" {
		data["comment"] = opts.Comment
	}

	if opts.Version == 0 {
		_, name, err := NextVersion(b.root, b.template, data, b.host.FileExtensions(), b.logger)
		return name, err
	}

	data["version"] = opts.Version
	name, err := b.template.Format(data)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(b.root, name)); err == nil {
		return "", fmt.Errorf("%w: %s", ErrFileExists, name)
	}
	return name, nil
}

// SaveAs saves the current scene under a new work file name, creating the
// work directory when missing, and returns the saved path.
func (b *Browser) SaveAs(ctx context.Context, opts NameOptions) (string, error) {
	name, err := b.WorkFileName(opts)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(b.root); errors.Is(err, os.ErrNotExist) {
		b.logger.Debug("workfile_init_dir", "root", b.root)
		if err := os.MkdirAll(b.root, 0o755); err != nil {
			return "", fmt.Errorf("initialize work directory: %w", err)
		}
	}

	path := filepath.Join(b.root, name)
	if err := b.host.SaveFile(ctx, path); err != nil {
		return "", err
	}
	b.logger.Info("workfile_saved", "path", path)
	return path, nil
}

// Open opens path in the host. With unsaved changes prompt decides: Save
// saves the current file first, Discard drops the changes and Cancel
// aborts, returning false.
func (b *Browser) Open(ctx context.Context, path string, prompt Prompt) (bool, error) {
	if err := b.check(); err != nil {
		return false, err
	}
	if b.host.HasUnsavedChanges() {
		answer := PromptCancel
		if prompt != nil {
			answer = prompt()
		}
		switch answer {
		case PromptCancel:
			return false, nil
		case PromptSave:
			current := b.host.CurrentFile()
			if current == "" {
				return false, ErrUnnamedScene
			}
			if err := b.host.SaveFile(ctx, current); err != nil {
				return false, err
			}
		}
	}
	if err := b.host.OpenFile(ctx, path); err != nil {
		return false, err
	}
	b.logger.Info("workfile_opened", "path", path)
	return true, nil
}

// Duplicate copies src into the work directory under a new work file name
// and returns the new path.
func (b *Browser) Duplicate(src string, opts NameOptions) (string, error) {
	if opts.Ext == "" {
		opts.Ext = filepath.Ext(src)
	}
	name, err := b.WorkFileName(opts)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(b.root, name)
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("duplicate %s: %w", filepath.Base(src), err)
	}
	b.logger.Info("workfile_duplicated", "src", src, "dst", dst)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Watch sends on the returned channel after the work directory changed,
// coalescing events within debounce. The channel closes when ctx is done.
// The work directory must exist.
func (b *Browser) Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch work files: %w", err)
	}
	if err := w.Add(b.root); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", b.root, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op == fsnotify.Chmod {
					continue
				}
				timer.Reset(debounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				b.logger.Warn("workfile_watch_error", "error", err)
			case <-timer.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
