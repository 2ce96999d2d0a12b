package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/petrijr/sitesync/pkg/api"
)

// Suite exercises the api.Store contract. Backends embed it, set NewStore
// and call suite.Run.
type Suite struct {
	suite.Suite

	// NewStore returns an empty store. It is called before every test.
	NewStore func(t *testing.T) api.Store

	Store api.Store
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.Store = s.NewStore(s.T())
	for _, r := range Fixtures() {
		s.Require().NoError(s.Store.SaveRepresentation(s.ctx, Project, r))
	}
}

func (s *Suite) summary(sort api.SortField, desc bool, skip, limit int, filter string) api.SummaryPage {
	page, err := s.Store.QuerySummary(s.ctx, api.SummaryQuery{
		Project:    Project,
		LocalSite:  LocalSite,
		RemoteSite: RemoteSite,
		Filter:     filter,
		Sort:       sort,
		Descending: desc,
		Skip:       skip,
		Limit:      limit,
	})
	s.Require().NoError(err)
	return page
}

func (s *Suite) detail(id string, sort api.SortField, desc bool, filter string) api.DetailPage {
	page, err := s.Store.QueryDetail(s.ctx, api.DetailQuery{
		Project:          Project,
		RepresentationID: id,
		LocalSite:        LocalSite,
		RemoteSite:       RemoteSite,
		Filter:           filter,
		Sort:             sort,
		Descending:       desc,
		Limit:            30,
	})
	s.Require().NoError(err)
	return page
}

func ids(recs []api.SyncRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func byID(recs []api.SyncRecord) map[string]api.SyncRecord {
	out := make(map[string]api.SyncRecord, len(recs))
	for _, r := range recs {
		out[r.ID] = r
	}
	return out
}

func (s *Suite) TestSummary_Aggregates() {
	page := s.summary(api.SortAsset, false, 0, 50, "")
	s.Equal(5, page.Total)
	s.Len(page.Records, 5)

	rows := byID(page.Records)
	s.NotContains(rows, "eee", "representation without files must be dropped")
	s.NotContains(rows, "fff", "representation on other sites must be excluded")

	chair := rows["aaa"]
	s.Equal(api.Context{Asset: "chair", Subset: "modelMain", Version: 1, Representation: "abc"}, chair.Context)
	s.Equal(2, chair.FilesCount)
	s.Equal(int64(150), chair.FilesSize)
	s.InDelta(1.0, chair.LocalProgress, 1e-9)
	s.InDelta(1.0, chair.RemoteProgress, 1e-9)
	s.Equal(api.StatusSynced, chair.Status)
	s.Require().NotNil(chair.RemoteUpdated)
	s.WithinDuration(T0.Add(time.Hour), *chair.RemoteUpdated, time.Millisecond)
	s.Require().NotNil(chair.LocalUpdated)
	s.WithinDuration(T0, *chair.LocalUpdated, time.Millisecond)

	lamp := rows["ccc"]
	s.InDelta(0.75, lamp.RemoteProgress, 1e-9)
	s.True(lamp.RemoteFailed)
	s.False(lamp.LocalFailed)
	s.Equal(api.StatusFailed, lamp.Status)

	s.Equal(api.StatusInProgress, rows["bbb"].Status)
	s.Nil(rows["bbb"].RemoteUpdated)
	s.Equal(api.StatusQueued, rows["ddd"].Status)
	s.Equal(api.StatusSynced, rows["ggg"].Status)
}

func (s *Suite) TestSummary_SortDirectionReverses() {
	asc := s.summary(api.SortAsset, false, 0, 50, "")
	desc := s.summary(api.SortAsset, true, 0, 50, "")

	s.Equal([]string{"ggg", "aaa", "ddd", "ccc", "bbb"}, ids(asc.Records))
	s.Equal([]string{"bbb", "ccc", "ddd", "aaa", "ggg"}, ids(desc.Records))
}

func (s *Suite) TestSummary_TiesKeepIDOrder() {
	asc := s.summary(api.SortStatus, false, 0, 50, "")
	desc := s.summary(api.SortStatus, true, 0, 50, "")

	s.Equal([]string{"ddd", "ccc", "bbb", "aaa", "ggg"}, ids(asc.Records))
	s.Equal([]string{"aaa", "ggg", "bbb", "ccc", "ddd"}, ids(desc.Records))
}

func (s *Suite) TestSummary_MissingTimestampsSortFirstAscending() {
	asc := s.summary(api.SortRemoteUpdated, false, 0, 50, "")
	desc := s.summary(api.SortRemoteUpdated, true, 0, 50, "")

	s.Equal([]string{"bbb", "ddd", "ggg", "aaa", "ccc"}, ids(asc.Records))
	s.Equal([]string{"ccc", "aaa", "ggg", "bbb", "ddd"}, ids(desc.Records))
}

func (s *Suite) TestSummary_NumericSorts() {
	bySize := s.summary(api.SortFilesSize, true, 0, 50, "")
	s.Equal([]string{"aaa", "ccc", "bbb", "ggg", "ddd"}, ids(bySize.Records))

	byCount := s.summary(api.SortFilesCount, false, 0, 50, "")
	s.Equal([]string{"bbb", "ddd", "ggg", "aaa", "ccc"}, ids(byCount.Records))

	byRemote := s.summary(api.SortRemoteProgress, false, 0, 50, "")
	s.Equal([]string{"ddd", "bbb", "ccc", "aaa", "ggg"}, ids(byRemote.Records))
}

func (s *Suite) TestSummary_FilterIsCaseInsensitiveLiteral() {
	s.Equal([]string{"aaa", "bbb"}, ids(s.summary(api.SortAsset, false, 0, 50, "MODEL").Records))
	s.Equal([]string{"aaa", "ddd"}, ids(s.summary(api.SortAsset, false, 0, 50, "abc").Records))

	literal := s.summary(api.SortAsset, false, 0, 50, "%_")
	s.Equal(1, literal.Total)
	s.Equal([]string{"ggg"}, ids(literal.Records))

	dot := s.summary(api.SortAsset, false, 0, 50, "a.b")
	s.Equal([]string{"ggg"}, ids(dot.Records))

	none := s.summary(api.SortAsset, false, 0, 50, "nothing-matches")
	s.Equal(0, none.Total)
	s.Empty(none.Records)
}

func (s *Suite) TestFilter_FoldsNonASCII() {
	s.Require().NoError(s.Store.SaveRepresentation(s.ctx, Project, api.Representation{
		ID:      "hhh",
		Context: api.Context{Asset: "ÉLAN", Subset: "modelMain", Version: 1, Representation: "abc"},
		Files: []api.File{
			{ID: "f1", Path: "/proj/ÉLAN/v001/ÉLAN_model.abc", Size: 5, Sites: []api.FileSite{
				done(LocalSite, 0), done(RemoteSite, 0),
			}},
		},
	}))

	for _, filter := range []string{"élan", "ÉlAN"} {
		page := s.summary(api.SortAsset, false, 0, 50, filter)
		s.Equal(1, page.Total, filter)
		s.Equal([]string{"hhh"}, ids(page.Records), filter)
	}

	detail := s.detail("hhh", api.SortPath, false, "élan_model")
	s.Equal(1, detail.Total)
}

func (s *Suite) TestSummary_Pagination() {
	page := s.summary(api.SortAsset, false, 2, 2, "")
	s.Equal(5, page.Total)
	s.Equal([]string{"ddd", "ccc"}, ids(page.Records))

	last := s.summary(api.SortAsset, false, 4, 2, "")
	s.Equal([]string{"bbb"}, ids(last.Records))

	past := s.summary(api.SortAsset, false, 10, 2, "")
	s.Equal(5, past.Total)
	s.Empty(past.Records)
}

func (s *Suite) TestSummary_UnknownProjectIsEmpty() {
	page, err := s.Store.QuerySummary(s.ctx, api.SummaryQuery{
		Project: "nope", LocalSite: LocalSite, RemoteSite: RemoteSite, Sort: api.SortAsset, Limit: 10,
	})
	s.Require().NoError(err)
	s.Equal(0, page.Total)
	s.Empty(page.Records)
}

func (s *Suite) TestSummary_InvalidQuery() {
	_, err := s.Store.QuerySummary(s.ctx, api.SummaryQuery{Project: Project, Sort: api.SortAsset, Limit: 10})
	s.ErrorIs(err, api.ErrInvalidQuery)
}

func (s *Suite) TestDetail_Rows() {
	page := s.detail("ccc", api.SortPath, false, "")
	s.Equal(2, page.Total)
	s.Require().Len(page.Records, 2)

	failed := page.Records[0]
	s.Equal("f1", failed.ID)
	s.Equal("lamp_look.ma", failed.File)
	s.Equal(int64(20), failed.Size)
	s.Equal(3, failed.Tries)
	s.Equal("quota exceeded\nstale lock", failed.Error)
	s.InDelta(0.5, failed.RemoteProgress, 1e-9)
	s.Equal(api.StatusFailed, failed.Status)
	s.Require().NotNil(failed.RemoteUpdated)
	s.WithinDuration(T0.Add(3*time.Hour), *failed.RemoteUpdated, time.Millisecond)

	ok := page.Records[1]
	s.Equal("lamp_look_tex.ma", ok.File)
	s.Equal(0, ok.Tries)
	s.Empty(ok.Error)
	s.Equal(api.StatusSynced, ok.Status)
}

func (s *Suite) TestDetail_SortAndFilter() {
	desc := s.detail("ccc", api.SortPath, true, "")
	s.Equal("f2", desc.Records[0].ID)

	byStatus := s.detail("ccc", api.SortStatus, false, "")
	s.Equal("f1", byStatus.Records[0].ID)

	filtered := s.detail("ccc", api.SortPath, false, "TEX")
	s.Equal(1, filtered.Total)
	s.Equal("f2", filtered.Records[0].ID)
}

func (s *Suite) TestDetail_NotFound() {
	_, err := s.Store.QueryDetail(s.ctx, api.DetailQuery{
		Project: Project, RepresentationID: "missing", LocalSite: LocalSite, RemoteSite: RemoteSite,
		Sort: api.SortPath, Limit: 30,
	})
	s.ErrorIs(err, api.ErrRepresentationNotFound)
}

func (s *Suite) TestResetSite_RequeuesFile() {
	s.Require().NoError(s.Store.ResetSite(s.ctx, Project, "aaa", "f1", RemoteSite))

	rows := byID(s.summary(api.SortAsset, false, 0, 50, "").Records)
	s.InDelta(0.5, rows["aaa"].RemoteProgress, 1e-9)
	s.Equal(api.StatusInProgress, rows["aaa"].Status)

	page := s.detail("aaa", api.SortPath, false, "")
	s.Equal(api.StatusQueued, page.Records[0].Status)
	s.Nil(page.Records[0].RemoteUpdated)
}

func (s *Suite) TestResetSite_Errors() {
	s.ErrorIs(s.Store.ResetSite(s.ctx, Project, "missing", "f1", RemoteSite), api.ErrRepresentationNotFound)
	s.ErrorIs(s.Store.ResetSite(s.ctx, Project, "aaa", "nope", RemoteSite), api.ErrFileNotFound)
	s.ErrorIs(s.Store.ResetSite(s.ctx, Project, "ddd", "f1", RemoteSite), api.ErrFileNotFound)
}

func (s *Suite) TestSaveRepresentation_Replaces() {
	repl := Fixtures()[3]
	repl.Files[0].Sites = append(repl.Files[0].Sites, api.FileSite{Name: RemoteSite, CreatedAt: &T0})
	s.Require().NoError(s.Store.SaveRepresentation(s.ctx, Project, repl))

	page := s.summary(api.SortAsset, false, 0, 50, "")
	s.Equal(5, page.Total)
	s.Equal(api.StatusSynced, byID(page.Records)["ddd"].Status)
}
