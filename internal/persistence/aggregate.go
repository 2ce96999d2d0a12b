package persistence

import (
	"cmp"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/petrijr/sitesync/pkg/api"
)

// The helpers below are the Go rendition of the aggregation the document
// stores run server-side. InMemoryStore uses them directly.

// onSites reports whether any file of r is registered on local or remote.
func onSites(r api.Representation, local, remote string) bool {
	for _, f := range r.Files {
		for _, s := range f.Sites {
			if s.Name == local || s.Name == remote {
				return true
			}
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matchesSummaryFilter(r api.Representation, filter string) bool {
	if filter == "" {
		return true
	}
	return containsFold(r.Context.Asset, filter) ||
		containsFold(r.Context.Subset, filter) ||
		containsFold(r.Context.Representation, filter)
}

type fileState struct {
	localProgress  float64
	remoteProgress float64
	localUpdated   *time.Time
	remoteUpdated  *time.Time
	localFailed    bool
	remoteFailed   bool
	local          api.FileSite
	remote         api.FileSite
}

func stateOf(f api.File, local, remote string) fileState {
	l, _ := f.Site(local)
	r, _ := f.Site(remote)
	return fileState{
		localProgress:  l.ProgressValue(),
		remoteProgress: r.ProgressValue(),
		localUpdated:   l.Touched(),
		remoteUpdated:  r.Touched(),
		localFailed:    l.Failed(),
		remoteFailed:   r.Failed(),
		local:          l,
		remote:         r,
	}
}

func maxTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}

// summarize aggregates r into a summary row. It returns false for
// representations without files.
func summarize(r api.Representation, local, remote string) (api.SyncRecord, bool) {
	if len(r.Files) == 0 {
		return api.SyncRecord{}, false
	}

	rec := api.SyncRecord{
		ID:         r.ID,
		Context:    r.Context,
		FilesCount: len(r.Files),
	}
	var sumLocal, sumRemote float64
	for _, f := range r.Files {
		st := stateOf(f, local, remote)
		rec.FilesSize += f.Size
		sumLocal += st.localProgress
		sumRemote += st.remoteProgress
		rec.LocalUpdated = maxTime(rec.LocalUpdated, st.localUpdated)
		rec.RemoteUpdated = maxTime(rec.RemoteUpdated, st.remoteUpdated)
		rec.LocalFailed = rec.LocalFailed || st.localFailed
		rec.RemoteFailed = rec.RemoteFailed || st.remoteFailed
	}
	rec.LocalProgress = sumLocal / float64(len(r.Files))
	rec.RemoteProgress = sumRemote / float64(len(r.Files))
	rec.Status = api.DeriveStatus(api.SiteState{
		LocalProgress:  rec.LocalProgress,
		RemoteProgress: rec.RemoteProgress,
		LocalFailed:    rec.LocalFailed,
		RemoteFailed:   rec.RemoteFailed,
	})
	return rec, true
}

func detailOf(f api.File, local, remote string) api.SyncDetailRecord {
	st := stateOf(f, local, remote)

	tries := 0
	switch {
	case st.local.Tries != nil:
		tries = *st.local.Tries
	case st.remote.Tries != nil:
		tries = *st.remote.Tries
	}

	return api.SyncDetailRecord{
		ID:             f.ID,
		File:           BaseName(f.Path),
		LocalProgress:  st.localProgress,
		RemoteProgress: st.remoteProgress,
		LocalUpdated:   st.localUpdated,
		RemoteUpdated:  st.remoteUpdated,
		Size:           f.Size,
		Tries:          tries,
		Error:          JoinErrors(st.remote.Error, st.local.Error),
		Status: api.DeriveStatus(api.SiteState{
			LocalProgress:  st.localProgress,
			RemoteProgress: st.remoteProgress,
			LocalFailed:    st.localFailed,
			RemoteFailed:   st.remoteFailed,
		}),
	}
}

// filepathSlash normalizes Windows separators so that path.Base works on
// paths published from any platform.
func filepathSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// BaseName returns the last element of a stored file path.
func BaseName(p string) string {
	return path.Base(filepathSlash(p))
}

// JoinErrors concatenates non-empty per-site error texts, remote first.
func JoinErrors(remote, local string) string {
	var parts []string
	if remote != "" {
		parts = append(parts, remote)
	}
	if local != "" {
		parts = append(parts, local)
	}
	return strings.Join(parts, "\n")
}

func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

func compareSummary(field api.SortField, a, b api.SyncRecord) int {
	switch field {
	case api.SortAsset:
		return cmp.Compare(a.Context.Asset, b.Context.Asset)
	case api.SortSubset:
		return cmp.Compare(a.Context.Subset, b.Context.Subset)
	case api.SortVersion:
		return cmp.Compare(a.Context.Version, b.Context.Version)
	case api.SortRepresentation:
		return cmp.Compare(a.Context.Representation, b.Context.Representation)
	case api.SortLocalUpdated:
		return compareTime(a.LocalUpdated, b.LocalUpdated)
	case api.SortRemoteUpdated:
		return compareTime(a.RemoteUpdated, b.RemoteUpdated)
	case api.SortLocalProgress:
		return cmp.Compare(a.LocalProgress, b.LocalProgress)
	case api.SortRemoteProgress:
		return cmp.Compare(a.RemoteProgress, b.RemoteProgress)
	case api.SortFilesCount:
		return cmp.Compare(a.FilesCount, b.FilesCount)
	case api.SortFilesSize:
		return cmp.Compare(a.FilesSize, b.FilesSize)
	case api.SortStatus:
		return cmp.Compare(a.Status, b.Status)
	default:
		return 0
	}
}

func compareDetail(field api.SortField, a, b api.SyncDetailRecord, pathA, pathB string) int {
	switch field {
	case api.SortPath:
		return cmp.Compare(pathA, pathB)
	case api.SortLocalUpdated:
		return compareTime(a.LocalUpdated, b.LocalUpdated)
	case api.SortRemoteUpdated:
		return compareTime(a.RemoteUpdated, b.RemoteUpdated)
	case api.SortLocalProgress:
		return cmp.Compare(a.LocalProgress, b.LocalProgress)
	case api.SortRemoteProgress:
		return cmp.Compare(a.RemoteProgress, b.RemoteProgress)
	case api.SortSize:
		return cmp.Compare(a.Size, b.Size)
	case api.SortStatus:
		return cmp.Compare(a.Status, b.Status)
	default:
		return 0
	}
}

func sortSummary(recs []api.SyncRecord, field api.SortField, desc bool) {
	slices.SortStableFunc(recs, func(a, b api.SyncRecord) int {
		c := compareSummary(field, a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func page[T any](rows []T, skip, limit int) []T {
	if skip >= len(rows) {
		return []T{}
	}
	end := skip + limit
	if end > len(rows) {
		end = len(rows)
	}
	return slices.Clone(rows[skip:end])
}
