package api

import (
	"context"
	"errors"
)

var (
	// ErrInvalidQuery is returned for queries missing required fields or
	// asking for an unsupported sort.
	ErrInvalidQuery = errors.New("invalid sync query")

	// ErrRepresentationNotFound is returned when a representation id does not
	// exist in the project.
	ErrRepresentationNotFound = errors.New("representation not found")

	// ErrFileNotFound is returned when a file or its site entry does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnknownProject is returned by a SiteResolver for projects it has no
	// sync configuration for.
	ErrUnknownProject = errors.New("project is not configured for sync")

	// ErrInvalidSiteRole is returned for a SiteRole other than SiteLocal and
	// SiteRemote.
	ErrInvalidSiteRole = errors.New("site role must be local or remote")
)

// Store is the backing document store of the sync views.
//
// Query failures (including a disconnected store) are returned to the
// caller as-is; implementations do not retry.
type Store interface {
	// QuerySummary returns one page of representation rows and the total
	// number of rows matching q.
	QuerySummary(ctx context.Context, q SummaryQuery) (SummaryPage, error)

	// QueryDetail returns one page of file rows of a representation.
	QueryDetail(ctx context.Context, q DetailQuery) (DetailPage, error)

	// ResetSite clears progress, completion and error markers of one file
	// on one site so that the file gets transferred again.
	ResetSite(ctx context.Context, project, representationID, fileID, site string) error

	// SaveRepresentation inserts or replaces a representation document.
	SaveRepresentation(ctx context.Context, project string, repre Representation) error
}

// SiteResolver returns the local and remote site names a project syncs
// between.
type SiteResolver interface {
	SitesForProject(ctx context.Context, project string) (local, remote string, err error)
}

// Notifier carries change events between the process that modifies sync
// state and the views that display it.
type Notifier interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	// Subscribe returns a channel of events for project. The channel is
	// closed when ctx is done.
	Subscribe(ctx context.Context, project string) (<-chan ChangeEvent, error)
}

// StaticSites is a SiteResolver returning the same pair for every project.
type StaticSites struct {
	Local  string
	Remote string
}

func (s StaticSites) SitesForProject(ctx context.Context, project string) (string, string, error) {
	if s.Local == "" || s.Remote == "" {
		return "", "", ErrUnknownProject
	}
	return s.Local, s.Remote, nil
}
