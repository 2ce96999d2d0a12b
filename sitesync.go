package sitesync

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/sitesync/internal/notify"
	"github.com/petrijr/sitesync/internal/persistence"
	"github.com/petrijr/sitesync/internal/syncmodel"
	mongostore "github.com/petrijr/sitesync/mongo"
	"github.com/petrijr/sitesync/pkg/api"
	"github.com/petrijr/sitesync/postgres"
	redisnotify "github.com/petrijr/sitesync/redis"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Store                = api.Store
	SiteResolver         = api.SiteResolver
	StaticSites          = api.StaticSites
	Notifier             = api.Notifier
	ChangeEvent          = api.ChangeEvent
	Representation       = api.Representation
	Context              = api.Context
	File                 = api.File
	FileSite             = api.FileSite
	SyncRecord           = api.SyncRecord
	SyncDetailRecord     = api.SyncDetailRecord
	SummaryQuery         = api.SummaryQuery
	DetailQuery          = api.DetailQuery
	Status               = api.Status
	SiteState            = api.SiteState
	SiteRole             = api.SiteRole
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Model types.

type (
	Model       = syncmodel.Model
	DetailModel = syncmodel.DetailModel
	Option      = syncmodel.Option
	Listener    = syncmodel.Listener
	Order       = syncmodel.Order
	Action      = syncmodel.Action
	ErrorDetail = syncmodel.ErrorDetail
)

// Re-export common observer helpers and model options.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	WithPageSize        = syncmodel.WithPageSize
	WithRefreshInterval = syncmodel.WithRefreshInterval
	WithObserver        = syncmodel.WithObserver
	WithListener        = syncmodel.WithListener
	WithNotifier        = syncmodel.WithNotifier
	WithLogger          = syncmodel.WithLogger
	WithFilter          = syncmodel.WithFilter
	WithSort            = syncmodel.WithSort
)

// Re-export errors callers match with errors.Is.

var (
	ErrInvalidQuery           = api.ErrInvalidQuery
	ErrRepresentationNotFound = api.ErrRepresentationNotFound
	ErrFileNotFound           = api.ErrFileNotFound
	ErrUnknownProject         = api.ErrUnknownProject
	ErrInvalidSiteRole        = api.ErrInvalidSiteRole
	ErrRowOutOfRange          = syncmodel.ErrRowOutOfRange
	ErrColumnOutOfRange       = syncmodel.ErrColumnOutOfRange
	ErrActionUnavailable      = syncmodel.ErrActionUnavailable
)

// Re-export status values for convenience.

const (
	StatusUnavailable = api.StatusUnavailable
	StatusQueued      = api.StatusQueued
	StatusFailed      = api.StatusFailed
	StatusInProgress  = api.StatusInProgress
	StatusPaused      = api.StatusPaused
	StatusSynced      = api.StatusSynced

	SiteLocal  = api.SiteLocal
	SiteRemote = api.SiteRemote

	Ascending  = syncmodel.Ascending
	Descending = syncmodel.Descending
)

// Store constructors
// These wrap the internal packages so external callers never need to
// import them.

// NewInMemoryStore returns a Store that keeps representations in memory.
func NewInMemoryStore() Store {
	return persistence.NewInMemoryStore()
}

// NewSQLiteStore returns a Store backed by a SQLite database. The schema is
// created when missing.
func NewSQLiteStore(db *sql.DB) (Store, error) {
	s, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPostgresStore returns a Store backed by PostgreSQL.
func NewPostgresStore(db *sql.DB) (Store, error) {
	return postgres.NewStore(db)
}

// NewMongoStore returns a Store over the pipeline's MongoDB collections,
// one collection per project.
func NewMongoStore(client *mongo.Client, dbName string) Store {
	return mongostore.NewStore(client, dbName)
}

// Notifier constructors

// NewHub returns a Notifier delivering events within the process.
func NewHub() Notifier {
	return notify.NewHub()
}

// NewRedisNotifier returns a Notifier over Redis pub/sub.
func NewRedisNotifier(client *redis.Client, prefix string, logger *slog.Logger) Notifier {
	return redisnotify.NewNotifier(client, prefix, logger)
}

// Model constructors

// NewModel opens the representation summary of project and loads its first
// page.
func NewModel(ctx context.Context, store Store, sites SiteResolver, project string, opts ...Option) (*Model, error) {
	return syncmodel.New(ctx, store, sites, project, opts...)
}

// NewDetailModel opens the file list of one representation and loads its
// first page.
func NewDetailModel(ctx context.Context, store Store, sites SiteResolver, project, representationID string, opts ...Option) (*DetailModel, error) {
	return syncmodel.NewDetail(ctx, store, sites, project, representationID, opts...)
}

// DeriveStatus returns the status of a record from its site progress and
// failure markers.
func DeriveStatus(s SiteState) Status {
	return api.DeriveStatus(s)
}
