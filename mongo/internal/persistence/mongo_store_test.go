package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/sitesync/internal/storetest"
	"github.com/petrijr/sitesync/internal/testutil"
	"github.com/petrijr/sitesync/pkg/api"
)

const testDB = "sitesync_test"

func connectTestMongo(t *testing.T) *mongo.Client {
	t.Helper()

	uri := testutil.GetMongoURI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("mongo.Connect failed: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})
	return client
}

// TestMongoStore shares one container across subtests; the container is
// removed when the parent test finishes.
func TestMongoStore(t *testing.T) {
	client := connectTestMongo(t)

	t.Run("Conformance", func(t *testing.T) { testConformance(t, client) })
	t.Run("ObjectIDs", func(t *testing.T) { testObjectIDs(t, client) })
}

func testConformance(t *testing.T, client *mongo.Client) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(t *testing.T) api.Store {
			ctx := context.Background()
			require.NoError(t, client.Database(testDB).Collection(storetest.Project).Drop(ctx))
			store := NewMongoStore(client, testDB)
			require.NoError(t, store.EnsureIndexes(ctx, storetest.Project))
			return store
		},
	})
}

// Documents written by other tools use ObjectIDs for representation and
// file ids.
func testObjectIDs(t *testing.T, client *mongo.Client) {
	ctx := context.Background()

	const project = "objectids"
	coll := client.Database(testDB).Collection(project)
	require.NoError(t, coll.Drop(ctx))

	reprID := primitive.NewObjectID()
	fileID := primitive.NewObjectID()
	created := storetest.T0
	_, err := coll.InsertOne(ctx, bson.M{
		"_id":  reprID,
		"type": api.KindRepresentation,
		"context": bson.M{
			"asset": "tree", "subset": "modelMain", "version": 4, "representation": "abc",
		},
		"files": bson.A{bson.M{
			"_id":  fileID,
			"path": "/proj/tree/v004/tree.abc",
			"size": 42,
			"sites": bson.A{
				bson.M{"name": storetest.LocalSite, "created_dt": created},
				bson.M{"name": storetest.RemoteSite, "created_dt": created},
			},
		}},
	})
	require.NoError(t, err)

	store := NewMongoStore(client, testDB)

	summary, err := store.QuerySummary(ctx, api.SummaryQuery{
		Project: project, LocalSite: storetest.LocalSite, RemoteSite: storetest.RemoteSite,
		Sort: api.SortAsset, Limit: 19,
	})
	require.NoError(t, err)
	require.Len(t, summary.Records, 1)
	require.Equal(t, reprID.Hex(), summary.Records[0].ID)
	require.Equal(t, api.StatusSynced, summary.Records[0].Status)

	require.NoError(t, store.ResetSite(ctx, project, reprID.Hex(), fileID.Hex(), storetest.RemoteSite))

	detail, err := store.QueryDetail(ctx, api.DetailQuery{
		Project: project, RepresentationID: reprID.Hex(),
		LocalSite: storetest.LocalSite, RemoteSite: storetest.RemoteSite,
		Sort: api.SortPath, Limit: 30,
	})
	require.NoError(t, err)
	require.Len(t, detail.Records, 1)
	require.Equal(t, fileID.Hex(), detail.Records[0].ID)
	require.Equal(t, "tree.abc", detail.Records[0].File)
	require.Equal(t, api.StatusQueued, detail.Records[0].Status)
}
