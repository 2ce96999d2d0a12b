package api

import (
	"fmt"
)

// SortField names a sortable attribute of summary or detail rows.
type SortField string

const (
	SortAsset          SortField = "asset"
	SortSubset         SortField = "subset"
	SortVersion        SortField = "version"
	SortRepresentation SortField = "representation"
	SortLocalUpdated   SortField = "updated_local"
	SortRemoteUpdated  SortField = "updated_remote"
	SortLocalProgress  SortField = "progress_local"
	SortRemoteProgress SortField = "progress_remote"
	SortFilesCount     SortField = "files_count"
	SortFilesSize      SortField = "files_size"
	SortStatus         SortField = "status"

	// Detail rows only.
	SortPath SortField = "path"
	SortSize SortField = "size"
)

var summarySortFields = map[SortField]bool{
	SortAsset: true, SortSubset: true, SortVersion: true, SortRepresentation: true,
	SortLocalUpdated: true, SortRemoteUpdated: true, SortLocalProgress: true,
	SortRemoteProgress: true, SortFilesCount: true, SortFilesSize: true, SortStatus: true,
}

var detailSortFields = map[SortField]bool{
	SortPath: true, SortLocalUpdated: true, SortRemoteUpdated: true,
	SortLocalProgress: true, SortRemoteProgress: true, SortSize: true, SortStatus: true,
}

// SummaryQuery selects one page of summary rows.
//
// Rows are ordered by Sort (Descending flips it) and then by representation
// id ascending, so page boundaries are stable across requery. Missing values
// sort first in ascending order.
type SummaryQuery struct {
	Project    string
	LocalSite  string
	RemoteSite string
	// Filter is a case-insensitive literal substring matched against asset,
	// subset and representation name. Empty means no filter.
	Filter     string
	Sort       SortField
	Descending bool
	Skip       int
	Limit      int
}

// Validate checks that the query can be executed.
func (q SummaryQuery) Validate() error {
	if q.Project == "" {
		return fmt.Errorf("%w: project is required", ErrInvalidQuery)
	}
	if q.LocalSite == "" || q.RemoteSite == "" {
		return fmt.Errorf("%w: local and remote site are required", ErrInvalidQuery)
	}
	if !summarySortFields[q.Sort] {
		return fmt.Errorf("%w: cannot sort summary by %q", ErrInvalidQuery, q.Sort)
	}
	if q.Skip < 0 || q.Limit <= 0 {
		return fmt.Errorf("%w: skip=%d limit=%d", ErrInvalidQuery, q.Skip, q.Limit)
	}
	return nil
}

// DetailQuery selects one page of per-file rows of a single representation.
// Ties are broken by file id ascending.
type DetailQuery struct {
	Project          string
	RepresentationID string
	LocalSite        string
	RemoteSite       string
	// Filter is a case-insensitive literal substring matched against the
	// file path.
	Filter     string
	Sort       SortField
	Descending bool
	Skip       int
	Limit      int
}

// Validate checks that the query can be executed.
func (q DetailQuery) Validate() error {
	if q.Project == "" || q.RepresentationID == "" {
		return fmt.Errorf("%w: project and representation id are required", ErrInvalidQuery)
	}
	if q.LocalSite == "" || q.RemoteSite == "" {
		return fmt.Errorf("%w: local and remote site are required", ErrInvalidQuery)
	}
	if !detailSortFields[q.Sort] {
		return fmt.Errorf("%w: cannot sort detail by %q", ErrInvalidQuery, q.Sort)
	}
	if q.Skip < 0 || q.Limit <= 0 {
		return fmt.Errorf("%w: skip=%d limit=%d", ErrInvalidQuery, q.Skip, q.Limit)
	}
	return nil
}

// SummaryPage is a page of summary rows together with the total number of
// matching rows, both read from the same snapshot.
type SummaryPage struct {
	Total   int
	Records []SyncRecord
}

// DetailPage is the per-file counterpart of SummaryPage.
type DetailPage struct {
	Total   int
	Records []SyncDetailRecord
}
