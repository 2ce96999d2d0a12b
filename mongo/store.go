package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/sitesync/pkg/api"

	mstore "github.com/petrijr/sitesync/mongo/internal/persistence"
)

// Store is an api.Store over MongoDB representation collections.
type Store interface {
	api.Store
	// EnsureIndexes creates the indexes used by the sync queries on the
	// project's collection.
	EnsureIndexes(ctx context.Context, project string) error
}

// NewStore returns a Store reading the collections of dbName, one
// collection per project. An empty dbName selects "avalon".
func NewStore(client *mongo.Client, dbName string) Store {
	return mstore.NewMongoStore(client, dbName)
}
