package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/petrijr/sitesync/pkg/api"
)

// Dialect selects the SQL flavor spoken by SQLStore.
type Dialect int

const (
	// DialectSQLite expects a "modernc.org/sqlite" connection.
	DialectSQLite Dialect = iota
	// DialectPostgres expects a "github.com/jackc/pgx/v5/stdlib" connection.
	DialectPostgres
)

// SQLStore is an api.Store backed by a relational database.
//
// Representation documents are normalized into three tables. Summary and
// detail rows are aggregated by SQL; status is computed by a CASE built from
// api.StatusRules. Filtered columns are also stored lowercased by Go;
// SQLite's LOWER folds ASCII only.
//
// The caller is responsible for importing the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure SQLStore implements the interface.
var _ api.Store = (*SQLStore)(nil)

// NewSQLiteStore initializes the schema in db and returns a store using the
// SQLite dialect.
func NewSQLiteStore(db *sql.DB) (*SQLStore, error) {
	return NewSQLStore(db, DialectSQLite)
}

// NewSQLStore initializes the schema in db and returns a new SQLStore.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("init sync schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	intType, floatType := "INTEGER", "REAL"
	if s.dialect == DialectPostgres {
		intType, floatType = "BIGINT", "DOUBLE PRECISION"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS representations (
			project TEXT NOT NULL,
			id TEXT NOT NULL,
			asset TEXT NOT NULL,
			subset TEXT NOT NULL,
			version INTEGER NOT NULL,
			name TEXT NOT NULL,
			asset_fold TEXT NOT NULL DEFAULT '',
			subset_fold TEXT NOT NULL DEFAULT '',
			name_fold TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (project, id)
		)`,
		`CREATE TABLE IF NOT EXISTS repr_files (
			project TEXT NOT NULL,
			representation_id TEXT NOT NULL,
			id TEXT NOT NULL,
			path TEXT NOT NULL,
			size ` + intType + ` NOT NULL DEFAULT 0,
			path_fold TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (project, representation_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS file_sites (
			project TEXT NOT NULL,
			representation_id TEXT NOT NULL,
			file_id TEXT NOT NULL,
			site TEXT NOT NULL,
			created_ns ` + intType + `,
			progress ` + floatType + `,
			last_failed_ns ` + intType + `,
			error TEXT NOT NULL DEFAULT '',
			tries INTEGER,
			PRIMARY KEY (project, representation_id, file_id, site)
		)`,
		`CREATE INDEX IF NOT EXISTS file_sites_site ON file_sites (project, site)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites '?' placeholders to the dialect's form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) readTx(ctx context.Context) (*sql.Tx, error) {
	opts := &sql.TxOptions{}
	if s.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return s.db.BeginTx(ctx, opts)
}

func (s *SQLStore) SaveRepresentation(ctx context.Context, project string, repre api.Representation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM file_sites WHERE project = ? AND representation_id = ?`,
		`DELETE FROM repr_files WHERE project = ? AND representation_id = ?`,
		`DELETE FROM representations WHERE project = ? AND id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(stmt), project, repre.ID); err != nil {
			return err
		}
	}

	c := repre.Context
	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO representations (project, id, asset, subset, version, name, asset_fold, subset_fold, name_fold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		project, repre.ID, c.Asset, c.Subset, c.Version, c.Representation,
		strings.ToLower(c.Asset), strings.ToLower(c.Subset), strings.ToLower(c.Representation),
	); err != nil {
		return err
	}

	insFile := s.rebind(`
		INSERT INTO repr_files (project, representation_id, id, path, size, path_fold)
		VALUES (?, ?, ?, ?, ?, ?)`)
	insSite := s.rebind(`
		INSERT INTO file_sites (project, representation_id, file_id, site, created_ns, progress, last_failed_ns, error, tries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, f := range repre.Files {
		if _, err := tx.ExecContext(ctx, insFile, project, repre.ID, f.ID, f.Path, f.Size, strings.ToLower(f.Path)); err != nil {
			return err
		}
		for _, site := range f.Sites {
			var tries sql.NullInt64
			if site.Tries != nil {
				tries = sql.NullInt64{Int64: int64(*site.Tries), Valid: true}
			}
			var progress sql.NullFloat64
			if site.Progress != nil {
				progress = sql.NullFloat64{Float64: *site.Progress, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, insSite,
				project, repre.ID, f.ID, site.Name,
				toNanos(site.CreatedAt), progress, toNanos(site.LastFailedAt),
				site.Error, tries,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *SQLStore) ResetSite(ctx context.Context, project, representationID, fileID, site string) error {
	if err := s.requireRepresentation(ctx, s.db, project, representationID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE file_sites
		SET created_ns = NULL, progress = NULL, last_failed_ns = NULL, error = '', tries = NULL
		WHERE project = ? AND representation_id = ? AND file_id = ? AND site = ?`),
		project, representationID, fileID, site,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return api.ErrFileNotFound
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) requireRepresentation(ctx context.Context, q queryer, project, id string) error {
	var one int
	err := q.QueryRowContext(ctx, s.rebind(
		`SELECT 1 FROM representations WHERE project = ? AND id = ?`), project, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return api.ErrRepresentationNotFound
	}
	return err
}

// perFileCTE computes per-file progress, last-touched time and failure flag
// for the local and remote site. Placeholders: local, remote, project.
const perFileCTE = `
	per_file AS (
		SELECT f.representation_id AS rid, f.id AS fid, f.path AS path, f.path_fold AS path_fold, f.size AS size,
			CASE WHEN l.progress IS NOT NULL THEN l.progress WHEN l.created_ns IS NOT NULL THEN 1.0 ELSE 0.0 END AS lp,
			CASE WHEN r.progress IS NOT NULL THEN r.progress WHEN r.created_ns IS NOT NULL THEN 1.0 ELSE 0.0 END AS rp,
			COALESCE(l.created_ns, l.last_failed_ns) AS lu,
			COALESCE(r.created_ns, r.last_failed_ns) AS ru,
			CASE WHEN l.last_failed_ns IS NOT NULL THEN 1 ELSE 0 END AS lf,
			CASE WHEN r.last_failed_ns IS NOT NULL THEN 1 ELSE 0 END AS rf,
			l.tries AS ltries, r.tries AS rtries,
			COALESCE(l.error, '') AS lerr, COALESCE(r.error, '') AS rerr
		FROM repr_files f
		LEFT JOIN file_sites l
			ON l.project = f.project AND l.representation_id = f.representation_id AND l.file_id = f.id AND l.site = ?
		LEFT JOIN file_sites r
			ON r.project = f.project AND r.representation_id = f.representation_id AND r.file_id = f.id AND r.site = ?
		WHERE f.project = ?
	)`

// statusCase renders api.StatusRules as a CASE over the lp, rp, lf and rf
// columns.
func statusCase() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, rule := range api.StatusRules {
		fmt.Fprintf(&b, " WHEN %s THEN %d", predicateSQL(rule.When), int(rule.Status))
	}
	fmt.Fprintf(&b, " ELSE %d END", int(api.StatusUnavailable))
	return b.String()
}

func predicateSQL(p api.Predicate) string {
	switch p {
	case api.AnyProgressZero:
		return "(lp = 0 OR rp = 0)"
	case api.AnyFailed:
		return "(lf = 1 OR rf = 1)"
	case api.AnyProgressPartial:
		return "((lp > 0 AND lp < 1) OR (rp > 0 AND rp < 1))"
	case api.AllProgressComplete:
		return "(lp = 1 AND rp = 1)"
	default:
		return "1 = 0"
	}
}

var summaryColumns = map[api.SortField]string{
	api.SortAsset:          "asset",
	api.SortSubset:         "subset",
	api.SortVersion:        "version",
	api.SortRepresentation: "name",
	api.SortLocalUpdated:   "lu",
	api.SortRemoteUpdated:  "ru",
	api.SortLocalProgress:  "lp",
	api.SortRemoteProgress: "rp",
	api.SortFilesCount:     "files_count",
	api.SortFilesSize:      "files_size",
	api.SortStatus:         "status",
}

var detailColumns = map[api.SortField]string{
	api.SortPath:           "path",
	api.SortLocalUpdated:   "lu",
	api.SortRemoteUpdated:  "ru",
	api.SortLocalProgress:  "lp",
	api.SortRemoteProgress: "rp",
	api.SortSize:           "size",
	api.SortStatus:         "status",
}

// textColumns are compared byte-wise on every dialect.
var textColumns = map[string]bool{
	"id": true, "fid": true, "asset": true, "subset": true, "name": true, "path": true,
}

func (s *SQLStore) orderBy(column string, desc bool, tiebreak string) string {
	column, tiebreak = s.collate(column), s.collate(tiebreak)
	if desc {
		return fmt.Sprintf(" ORDER BY %s DESC NULLS LAST, %s ASC", column, tiebreak)
	}
	return fmt.Sprintf(" ORDER BY %s ASC NULLS FIRST, %s ASC", column, tiebreak)
}

// collate pins text columns to byte order on Postgres, whose default
// collation depends on the database locale. SQLite compares with BINARY.
func (s *SQLStore) collate(column string) string {
	if s.dialect == DialectPostgres && textColumns[column] {
		return column + ` COLLATE "C"`
	}
	return column
}

func likePattern(filter string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(filter)) + "%"
}

func (s *SQLStore) QuerySummary(ctx context.Context, q api.SummaryQuery) (api.SummaryPage, error) {
	if err := q.Validate(); err != nil {
		return api.SummaryPage{}, err
	}

	args := []any{q.LocalSite, q.RemoteSite, q.Project, q.Project, q.LocalSite, q.RemoteSite}
	filter := ""
	if q.Filter != "" {
		filter = ` AND (rep.asset_fold LIKE ? ESCAPE '\' OR rep.subset_fold LIKE ? ESCAPE '\' OR rep.name_fold LIKE ? ESCAPE '\')`
		p := likePattern(q.Filter)
		args = append(args, p, p, p)
	}

	with := `WITH` + perFileCTE + `,
	grouped AS (
		SELECT rep.id AS id, rep.asset AS asset, rep.subset AS subset, rep.version AS version, rep.name AS name,
			COUNT(*) AS files_count,
			CAST(COALESCE(SUM(pf.size), 0) AS BIGINT) AS files_size,
			AVG(pf.lp) AS lp, AVG(pf.rp) AS rp,
			MAX(pf.lf) AS lf, MAX(pf.rf) AS rf,
			MAX(pf.lu) AS lu, MAX(pf.ru) AS ru
		FROM representations rep
		JOIN per_file pf ON pf.rid = rep.id
		WHERE rep.project = ?
			AND EXISTS (
				SELECT 1 FROM file_sites fs
				WHERE fs.project = rep.project AND fs.representation_id = rep.id AND fs.site IN (?, ?)
			)` + filter + `
		GROUP BY rep.id, rep.asset, rep.subset, rep.version, rep.name
	),
	summary AS (
		SELECT grouped.*, ` + statusCase() + ` AS status FROM grouped
	)`

	tx, err := s.readTx(ctx)
	if err != nil {
		return api.SummaryPage{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx, s.rebind(with+` SELECT COUNT(*) FROM summary`), args...).Scan(&total); err != nil {
		return api.SummaryPage{}, fmt.Errorf("count summary: %w", err)
	}

	pageSQL := with + `
	SELECT id, asset, subset, version, name, files_count, files_size, lp, rp, lf, rf, lu, ru, status
	FROM summary` + s.orderBy(summaryColumns[q.Sort], q.Descending, "id") + ` LIMIT ? OFFSET ?`
	rows, err := tx.QueryContext(ctx, s.rebind(pageSQL), append(args, q.Limit, q.Skip)...)
	if err != nil {
		return api.SummaryPage{}, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	recs := []api.SyncRecord{}
	for rows.Next() {
		var rec api.SyncRecord
		var lf, rf, status int
		var lu, ru sql.NullInt64
		if err := rows.Scan(
			&rec.ID, &rec.Context.Asset, &rec.Context.Subset, &rec.Context.Version, &rec.Context.Representation,
			&rec.FilesCount, &rec.FilesSize, &rec.LocalProgress, &rec.RemoteProgress,
			&lf, &rf, &lu, &ru, &status,
		); err != nil {
			return api.SummaryPage{}, err
		}
		rec.LocalFailed = lf == 1
		rec.RemoteFailed = rf == 1
		rec.LocalUpdated = fromNanos(lu)
		rec.RemoteUpdated = fromNanos(ru)
		rec.Status = api.Status(status)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return api.SummaryPage{}, err
	}

	return api.SummaryPage{Total: total, Records: recs}, nil
}

func (s *SQLStore) QueryDetail(ctx context.Context, q api.DetailQuery) (api.DetailPage, error) {
	if err := q.Validate(); err != nil {
		return api.DetailPage{}, err
	}

	tx, err := s.readTx(ctx)
	if err != nil {
		return api.DetailPage{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.requireRepresentation(ctx, tx, q.Project, q.RepresentationID); err != nil {
		return api.DetailPage{}, err
	}

	args := []any{q.LocalSite, q.RemoteSite, q.Project, q.RepresentationID}
	filter := ""
	if q.Filter != "" {
		filter = ` AND path_fold LIKE ? ESCAPE '\'`
		args = append(args, likePattern(q.Filter))
	}

	with := `WITH` + perFileCTE + `,
	detail AS (
		SELECT per_file.*, ` + statusCase() + ` AS status
		FROM per_file
		WHERE rid = ?` + filter + `
	)`

	var total int
	if err := tx.QueryRowContext(ctx, s.rebind(with+` SELECT COUNT(*) FROM detail`), args...).Scan(&total); err != nil {
		return api.DetailPage{}, fmt.Errorf("count detail: %w", err)
	}

	pageSQL := with + `
	SELECT fid, path, size, lp, rp, lu, ru, COALESCE(ltries, rtries, 0), lerr, rerr, status
	FROM detail` + s.orderBy(detailColumns[q.Sort], q.Descending, "fid") + ` LIMIT ? OFFSET ?`
	rows, err := tx.QueryContext(ctx, s.rebind(pageSQL), append(args, q.Limit, q.Skip)...)
	if err != nil {
		return api.DetailPage{}, fmt.Errorf("query detail: %w", err)
	}
	defer rows.Close()

	recs := []api.SyncDetailRecord{}
	for rows.Next() {
		var rec api.SyncDetailRecord
		var path, lerr, rerr string
		var lu, ru sql.NullInt64
		var status int
		if err := rows.Scan(
			&rec.ID, &path, &rec.Size, &rec.LocalProgress, &rec.RemoteProgress,
			&lu, &ru, &rec.Tries, &lerr, &rerr, &status,
		); err != nil {
			return api.DetailPage{}, err
		}
		rec.File = BaseName(path)
		rec.LocalUpdated = fromNanos(lu)
		rec.RemoteUpdated = fromNanos(ru)
		rec.Error = JoinErrors(rerr, lerr)
		rec.Status = api.Status(status)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return api.DetailPage{}, err
	}

	return api.DetailPage{Total: total, Records: recs}, nil
}

func toNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
