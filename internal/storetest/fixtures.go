// Package storetest holds fixtures and a testify suite that every api.Store
// implementation runs against.
package storetest

import (
	"time"

	"github.com/petrijr/sitesync/pkg/api"
)

const (
	Project    = "demo"
	LocalSite  = "studio"
	RemoteSite = "gdrive"
)

// T0 is the reference time all fixture timestamps are offset from.
var T0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := T0.Add(d)
	return &t
}

func ptr[T any](v T) *T {
	return &v
}

func done(site string, d time.Duration) api.FileSite {
	return api.FileSite{Name: site, CreatedAt: at(d)}
}

// Fixtures returns the representations seeded by the conformance suite.
//
//	aaa chair  Synced      remote touched T0+1h
//	bbb table  InProgress  remote never touched
//	ccc lamp   Failed      remote touched T0+3h
//	ddd desk   Queued      no remote entry
//	eee ghost  no files, never listed
//	fff other  only on an unrelated site, never listed
//	ggg 100%_done Synced   remote touched T0+30m
func Fixtures() []api.Representation {
	return []api.Representation{
		{
			ID:      "aaa",
			Context: api.Context{Asset: "chair", Subset: "modelMain", Version: 1, Representation: "abc"},
			Files: []api.File{
				{ID: "f1", Path: "/proj/chair/v001/chair_model.abc", Size: 100, Sites: []api.FileSite{
					done(LocalSite, 0), done(RemoteSite, time.Hour),
				}},
				{ID: "f2", Path: "/proj/chair/v001/chair_model_lod.abc", Size: 50, Sites: []api.FileSite{
					done(LocalSite, 0), done(RemoteSite, 30*time.Minute),
				}},
			},
		},
		{
			ID:      "bbb",
			Context: api.Context{Asset: "table", Subset: "modelMain", Version: 2, Representation: "fbx"},
			Files: []api.File{
				{ID: "f1", Path: "/proj/table/v002/table_model.fbx", Size: 10, Sites: []api.FileSite{
					done(LocalSite, 2*time.Hour),
					{Name: RemoteSite, Progress: ptr(0.4)},
				}},
			},
		},
		{
			ID:      "ccc",
			Context: api.Context{Asset: "lamp", Subset: "lookDev", Version: 3, Representation: "ma"},
			Files: []api.File{
				{ID: "f1", Path: `C:\proj\lamp\v003\lamp_look.ma`, Size: 20, Sites: []api.FileSite{
					{Name: LocalSite, CreatedAt: at(0), Error: "stale lock"},
					{Name: RemoteSite, Progress: ptr(0.5), LastFailedAt: at(3 * time.Hour), Error: "quota exceeded", Tries: ptr(3)},
				}},
				{ID: "f2", Path: `C:\proj\lamp\v003\lamp_look_tex.ma`, Size: 30, Sites: []api.FileSite{
					done(LocalSite, 0), done(RemoteSite, time.Hour),
				}},
			},
		},
		{
			ID:      "ddd",
			Context: api.Context{Asset: "desk", Subset: "rigMain", Version: 1, Representation: "abc"},
			Files: []api.File{
				{ID: "f1", Path: "/proj/desk/v001/desk_rig.abc", Size: 5, Sites: []api.FileSite{
					done(LocalSite, time.Hour),
				}},
			},
		},
		{
			ID:      "eee",
			Context: api.Context{Asset: "ghost", Subset: "modelMain", Version: 1, Representation: "abc"},
		},
		{
			ID:      "fff",
			Context: api.Context{Asset: "other", Subset: "modelMain", Version: 1, Representation: "abc"},
			Files: []api.File{
				{ID: "f1", Path: "/proj/other/v001/other.abc", Size: 1, Sites: []api.FileSite{
					done("dropbox", 0),
				}},
			},
		},
		{
			ID:      "ggg",
			Context: api.Context{Asset: "100%_done", Subset: "a.b", Version: 1, Representation: "usd"},
			Files: []api.File{
				{ID: "f1", Path: "/proj/done/v001/done.usd", Size: 7, Sites: []api.FileSite{
					done(LocalSite, 0), done(RemoteSite, 30*time.Minute),
				}},
			},
		},
	}
}
