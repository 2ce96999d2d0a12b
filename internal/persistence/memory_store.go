package persistence

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/petrijr/sitesync/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe api.Store backed by maps.
// Queries aggregate in Go with the same semantics the database backends
// implement server-side. Non-durable; intended for tests and demos.
type InMemoryStore struct {
	mu       sync.RWMutex
	projects map[string]map[string]api.Representation
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		projects: make(map[string]map[string]api.Representation),
	}
}

// Ensure InMemoryStore implements the interface.
var _ api.Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveRepresentation(ctx context.Context, project string, repre api.Representation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reps, ok := s.projects[project]
	if !ok {
		reps = make(map[string]api.Representation)
		s.projects[project] = reps
	}
	reps[repre.ID] = cloneRepresentation(repre)
	return nil
}

func (s *InMemoryStore) QuerySummary(ctx context.Context, q api.SummaryQuery) (api.SummaryPage, error) {
	if err := q.Validate(); err != nil {
		return api.SummaryPage{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []api.SyncRecord
	for _, r := range s.projects[q.Project] {
		if !onSites(r, q.LocalSite, q.RemoteSite) || !matchesSummaryFilter(r, q.Filter) {
			continue
		}
		if rec, ok := summarize(r, q.LocalSite, q.RemoteSite); ok {
			recs = append(recs, rec)
		}
	}
	sortSummary(recs, q.Sort, q.Descending)

	return api.SummaryPage{
		Total:   len(recs),
		Records: page(recs, q.Skip, q.Limit),
	}, nil
}

func (s *InMemoryStore) QueryDetail(ctx context.Context, q api.DetailQuery) (api.DetailPage, error) {
	if err := q.Validate(); err != nil {
		return api.DetailPage{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.projects[q.Project][q.RepresentationID]
	if !ok {
		return api.DetailPage{}, api.ErrRepresentationNotFound
	}

	type row struct {
		path string
		rec  api.SyncDetailRecord
	}
	var rows []row
	for _, f := range r.Files {
		if q.Filter != "" && !containsFold(f.Path, q.Filter) {
			continue
		}
		rows = append(rows, row{path: f.Path, rec: detailOf(f, q.LocalSite, q.RemoteSite)})
	}
	slices.SortStableFunc(rows, func(a, b row) int {
		c := compareDetail(q.Sort, a.rec, b.rec, a.path, b.path)
		if q.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.rec.ID, b.rec.ID)
	})

	recs := make([]api.SyncDetailRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.rec)
	}
	return api.DetailPage{
		Total:   len(recs),
		Records: page(recs, q.Skip, q.Limit),
	}, nil
}

func (s *InMemoryStore) ResetSite(ctx context.Context, project, representationID, fileID, site string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.projects[project][representationID]
	if !ok {
		return api.ErrRepresentationNotFound
	}
	for i := range r.Files {
		if r.Files[i].ID != fileID {
			continue
		}
		for j := range r.Files[i].Sites {
			if r.Files[i].Sites[j].Name == site {
				r.Files[i].Sites[j] = api.FileSite{Name: site}
				return nil
			}
		}
	}
	return api.ErrFileNotFound
}

func cloneRepresentation(r api.Representation) api.Representation {
	out := r
	out.Files = make([]api.File, len(r.Files))
	for i, f := range r.Files {
		out.Files[i] = f
		out.Files[i].Sites = slices.Clone(f.Sites)
	}
	return out
}
