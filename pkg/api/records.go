package api

import (
	"fmt"
	"time"
)

// KindRepresentation is the document type matched by sync queries.
const KindRepresentation = "representation"

// Representation is a versioned published deliverable made of one or more
// files. It mirrors the stored document.
type Representation struct {
	ID      string
	Context Context
	Files   []File
}

// Context names the product a representation belongs to.
type Context struct {
	Asset          string
	Subset         string
	Version        int
	Representation string
}

// File is one file of a representation together with its per-site state.
type File struct {
	ID    string
	Path  string
	Size  int64
	Sites []FileSite
}

// Site returns the entry for the named site, if the file is registered there.
func (f File) Site(name string) (FileSite, bool) {
	for _, s := range f.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return FileSite{}, false
}

// FileSite is the transfer state of a file on a single site.
//
// A file is complete on a site when CreatedAt is set. Progress, when present,
// overrides that. LastFailedAt marks a failed transfer.
type FileSite struct {
	Name         string
	CreatedAt    *time.Time
	Progress     *float64
	LastFailedAt *time.Time
	Error        string
	Tries        *int
}

// ProgressValue returns the explicit progress if present, else 1 when the
// file was created on the site, else 0.
func (s FileSite) ProgressValue() float64 {
	switch {
	case s.Progress != nil:
		return *s.Progress
	case s.CreatedAt != nil:
		return 1
	default:
		return 0
	}
}

// Touched returns the completion time, else the failure time.
func (s FileSite) Touched() *time.Time {
	if s.CreatedAt != nil {
		return s.CreatedAt
	}
	return s.LastFailedAt
}

// Failed reports whether the last transfer on the site failed.
func (s FileSite) Failed() bool {
	return s.LastFailedAt != nil
}

// SyncRecord is a summary row: one representation aggregated over its files.
type SyncRecord struct {
	ID             string
	Context        Context
	LocalProgress  float64
	RemoteProgress float64
	FilesCount     int
	FilesSize      int64
	LocalFailed    bool
	RemoteFailed   bool
	LocalUpdated   *time.Time
	RemoteUpdated  *time.Time
	Status         Status
}

// SyncDetailRecord is a per-file row of a single representation.
type SyncDetailRecord struct {
	ID             string
	File           string
	LocalProgress  float64
	RemoteProgress float64
	LocalUpdated   *time.Time
	RemoteUpdated  *time.Time
	Size           int64
	Tries          int
	Error          string
	Status         Status
}

// SiteRole selects which of the project's two sites an operation targets.
type SiteRole string

const (
	SiteLocal  SiteRole = "local"
	SiteRemote SiteRole = "remote"
)

// Site picks the site playing r out of a project's local and remote site.
func (r SiteRole) Site(local, remote string) (string, error) {
	switch r {
	case SiteLocal:
		return local, nil
	case SiteRemote:
		return remote, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSiteRole, string(r))
	}
}

// ChangeEvent announces that the sync state of a file changed.
type ChangeEvent struct {
	Project          string
	RepresentationID string
	FileID           string
	Site             string
}
