package persistence

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"github.com/petrijr/sitesync/internal/storetest"
	"github.com/petrijr/sitesync/pkg/api"
)

func newTestSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	return store
}

func TestSQLiteStoreConformance(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(t *testing.T) api.Store { return newTestSQLiteStore(t) },
	})
}

func TestSQLiteStore_SchemaIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)
	_, err := NewSQLiteStore(store.db)
	require.NoError(t, err)
}

func TestSQLiteStore_CanceledContext(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.QuerySummary(ctx, api.SummaryQuery{
		Project: storetest.Project, LocalSite: storetest.LocalSite, RemoteSite: storetest.RemoteSite,
		Sort: api.SortAsset, Limit: 10,
	})
	assert.Error(t, err)
}

func TestSQLStore_RebindPostgres(t *testing.T) {
	s := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", s.rebind("a = ? AND b IN (?, ?)"))

	lite := &SQLStore{dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestStatusCase_FollowsRuleOrder(t *testing.T) {
	c := statusCase()
	require.True(t, strings.HasPrefix(c, "CASE WHEN (lp = 0 OR rp = 0) THEN 0"))
	assert.Less(t, strings.Index(c, "THEN 1"), strings.Index(c, "THEN 2"))
	assert.True(t, strings.HasSuffix(c, "ELSE -1 END"))
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, `%100\%\_done%`, likePattern("100%_DONE"))
	assert.Equal(t, `%a\\b%`, likePattern(`a\b`))
}

func TestSQLStore_OrderByCollatesTextOnPostgres(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, ` ORDER BY asset COLLATE "C" ASC NULLS FIRST, id COLLATE "C" ASC`, pg.orderBy("asset", false, "id"))
	assert.Equal(t, ` ORDER BY lp DESC NULLS LAST, fid COLLATE "C" ASC`, pg.orderBy("lp", true, "fid"))

	lite := &SQLStore{dialect: DialectSQLite}
	assert.Equal(t, " ORDER BY asset ASC NULLS FIRST, id ASC", lite.orderBy("asset", false, "id"))
}
