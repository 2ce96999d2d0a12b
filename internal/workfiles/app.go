package workfiles

import (
	"log/slog"
	"sync"
)

// App holds the host, naming template and logger of the work files tool,
// and the browser currently open.
type App struct {
	host     Host
	template *Template
	logger   *slog.Logger

	mu      sync.Mutex
	current *Browser
}

// NewApp returns an App naming files with tpl, or DefaultTemplate when tpl
// is nil. A nil logger uses slog.Default().
func NewApp(host Host, tpl *Template, logger *slog.Logger) *App {
	if tpl == nil {
		tpl = MustParseTemplate(DefaultTemplate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{host: host, template: tpl, logger: logger}
}

// Open closes the current browser, if any, and opens one on session.
func (a *App) Open(session Session) (*Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		a.current.close()
		a.current = nil
	}
	if session.User == "" {
		session.User = CurrentUser()
	}
	b, err := newBrowser(a.host, session, a.template, a.logger)
	if err != nil {
		return nil, err
	}
	a.current = b
	a.logger.Debug("workfile_browser_opened", "root", b.root)
	return b, nil
}

// Current returns the open browser, or nil.
func (a *App) Current() *Browser {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Close closes the open browser.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.close()
		a.current = nil
	}
}
