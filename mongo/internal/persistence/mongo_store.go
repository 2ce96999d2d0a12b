package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	corep "github.com/petrijr/sitesync/internal/persistence"
	"github.com/petrijr/sitesync/pkg/api"
)

// MongoStore is an api.Store over representation documents. Each project
// is a collection named after the project.
type MongoStore struct {
	db *mongo.Database
}

// Ensure it implements api.Store.
var _ api.Store = (*MongoStore)(nil)

// NewMongoStore creates a Mongo-backed sync store.
// dbName defaults to "avalon" if empty.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	if dbName == "" {
		dbName = "avalon"
	}
	return &MongoStore{db: client.Database(dbName)}
}

type contextDoc struct {
	Asset          string `bson:"asset"`
	Subset         string `bson:"subset"`
	Version        int    `bson:"version"`
	Representation string `bson:"representation"`
}

type siteDoc struct {
	Name         string     `bson:"name"`
	CreatedAt    *time.Time `bson:"created_dt,omitempty"`
	Progress     *float64   `bson:"progress,omitempty"`
	LastFailedAt *time.Time `bson:"last_failed_dt,omitempty"`
	Error        string     `bson:"error,omitempty"`
	Tries        *int       `bson:"tries,omitempty"`
}

type fileDoc struct {
	ID    string    `bson:"_id"`
	Path  string    `bson:"path"`
	Size  int64     `bson:"size"`
	Sites []siteDoc `bson:"sites"`
}

type representationDoc struct {
	ID      string     `bson:"_id"`
	Type    string     `bson:"type"`
	Context contextDoc `bson:"context"`
	Files   []fileDoc  `bson:"files"`
}

type countDoc struct {
	N int `bson:"n"`
}

type summaryRow struct {
	ID         bson.RawValue `bson:"_id"`
	Context    contextDoc    `bson:"context"`
	FilesCount int           `bson:"files_count"`
	FilesSize  int64         `bson:"files_size"`
	LP         float64       `bson:"lp"`
	RP         float64       `bson:"rp"`
	LF         int           `bson:"lf"`
	RF         int           `bson:"rf"`
	LU         *time.Time    `bson:"lu"`
	RU         *time.Time    `bson:"ru"`
	Status     int           `bson:"status"`
}

type detailRow struct {
	ID     bson.RawValue `bson:"_id"`
	Path   string        `bson:"path"`
	Size   int64         `bson:"size"`
	LP     float64       `bson:"lp"`
	RP     float64       `bson:"rp"`
	LU     *time.Time    `bson:"lu"`
	RU     *time.Time    `bson:"ru"`
	Tries  int           `bson:"tries"`
	LErr   string        `bson:"lerr"`
	RErr   string        `bson:"rerr"`
	Status int           `bson:"status"`
}

type facet[T any] struct {
	Total []countDoc `bson:"total"`
	Rows  []T        `bson:"rows"`
}

func (f facet[T]) total() int {
	if len(f.Total) == 0 {
		return 0
	}
	return f.Total[0].N
}

// idString renders stored ids; ObjectIDs become hex strings.
func idString(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	return v.String()
}

// idFilter matches id whether it was stored as a string or an ObjectID.
func idFilter(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$in": bson.A{id, oid}}
	}
	return id
}

func (s *MongoStore) coll(project string) *mongo.Collection {
	return s.db.Collection(project)
}

// EnsureIndexes creates the indexes the sync queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context, project string) error {
	_, err := s.coll(project).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "type", Value: 1}, {Key: "files.sites.name", Value: 1}},
	})
	return err
}

func (s *MongoStore) SaveRepresentation(ctx context.Context, project string, repre api.Representation) error {
	doc := representationDoc{
		ID:   repre.ID,
		Type: api.KindRepresentation,
		Context: contextDoc{
			Asset:          repre.Context.Asset,
			Subset:         repre.Context.Subset,
			Version:        repre.Context.Version,
			Representation: repre.Context.Representation,
		},
		Files: make([]fileDoc, 0, len(repre.Files)),
	}
	for _, f := range repre.Files {
		fd := fileDoc{ID: f.ID, Path: f.Path, Size: f.Size, Sites: make([]siteDoc, 0, len(f.Sites))}
		for _, site := range f.Sites {
			fd.Sites = append(fd.Sites, siteDoc(site))
		}
		doc.Files = append(doc.Files, fd)
	}

	_, err := s.coll(project).ReplaceOne(ctx, bson.M{"_id": repre.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) QuerySummary(ctx context.Context, q api.SummaryQuery) (api.SummaryPage, error) {
	if err := q.Validate(); err != nil {
		return api.SummaryPage{}, err
	}

	var res facet[summaryRow]
	if err := s.aggregateOne(ctx, q.Project, SummaryPipeline(q), &res); err != nil {
		return api.SummaryPage{}, fmt.Errorf("query summary: %w", err)
	}

	recs := make([]api.SyncRecord, 0, len(res.Rows))
	for _, r := range res.Rows {
		recs = append(recs, api.SyncRecord{
			ID: idString(r.ID),
			Context: api.Context{
				Asset:          r.Context.Asset,
				Subset:         r.Context.Subset,
				Version:        r.Context.Version,
				Representation: r.Context.Representation,
			},
			LocalProgress:  r.LP,
			RemoteProgress: r.RP,
			FilesCount:     r.FilesCount,
			FilesSize:      r.FilesSize,
			LocalFailed:    r.LF == 1,
			RemoteFailed:   r.RF == 1,
			LocalUpdated:   utc(r.LU),
			RemoteUpdated:  utc(r.RU),
			Status:         api.Status(r.Status),
		})
	}
	return api.SummaryPage{Total: res.total(), Records: recs}, nil
}

func (s *MongoStore) QueryDetail(ctx context.Context, q api.DetailQuery) (api.DetailPage, error) {
	if err := q.Validate(); err != nil {
		return api.DetailPage{}, err
	}

	reprID, err := s.findRepresentationID(ctx, q.Project, q.RepresentationID)
	if err != nil {
		return api.DetailPage{}, err
	}

	var res facet[detailRow]
	if err := s.aggregateOne(ctx, q.Project, DetailPipeline(q, reprID), &res); err != nil {
		return api.DetailPage{}, fmt.Errorf("query detail: %w", err)
	}

	recs := make([]api.SyncDetailRecord, 0, len(res.Rows))
	for _, r := range res.Rows {
		recs = append(recs, api.SyncDetailRecord{
			ID:             idString(r.ID),
			File:           corep.BaseName(r.Path),
			LocalProgress:  r.LP,
			RemoteProgress: r.RP,
			LocalUpdated:   utc(r.LU),
			RemoteUpdated:  utc(r.RU),
			Size:           r.Size,
			Tries:          r.Tries,
			Error:          corep.JoinErrors(r.RErr, r.LErr),
			Status:         api.Status(r.Status),
		})
	}
	return api.DetailPage{Total: res.total(), Records: recs}, nil
}

func (s *MongoStore) ResetSite(ctx context.Context, project, representationID, fileID, site string) error {
	reprID, err := s.findRepresentationID(ctx, project, representationID)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":   reprID,
		"files": bson.M{"$elemMatch": bson.M{"_id": idFilter(fileID), "sites.name": site}},
	}
	update := bson.M{"$unset": bson.M{
		"files.$[f].sites.$[s].created_dt":     "",
		"files.$[f].sites.$[s].progress":       "",
		"files.$[f].sites.$[s].last_failed_dt": "",
		"files.$[f].sites.$[s].error":          "",
		"files.$[f].sites.$[s].tries":          "",
	}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{
			bson.M{"f._id": idFilter(fileID)},
			bson.M{"s.name": site},
		},
	})

	res, err := s.coll(project).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return api.ErrFileNotFound
	}
	return nil
}

// findRepresentationID returns the stored _id value of the representation.
func (s *MongoStore) findRepresentationID(ctx context.Context, project, id string) (any, error) {
	var doc struct {
		ID bson.RawValue `bson:"_id"`
	}
	err := s.coll(project).FindOne(ctx,
		bson.M{"_id": idFilter(id), "type": api.KindRepresentation},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, api.ErrRepresentationNotFound
		}
		return nil, err
	}
	if oid, ok := doc.ID.ObjectIDOK(); ok {
		return oid, nil
	}
	return idString(doc.ID), nil
}

func (s *MongoStore) aggregateOne(ctx context.Context, project string, pipeline bson.A, out any) error {
	cur, err := s.coll(project).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return err
		}
		return nil
	}
	return cur.Decode(out)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
