package persistence

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/petrijr/sitesync/pkg/api"
)

var summarySortKeys = map[api.SortField]string{
	api.SortAsset:          "context.asset",
	api.SortSubset:         "context.subset",
	api.SortVersion:        "context.version",
	api.SortRepresentation: "context.representation",
	api.SortLocalUpdated:   "lu",
	api.SortRemoteUpdated:  "ru",
	api.SortLocalProgress:  "lp",
	api.SortRemoteProgress: "rp",
	api.SortFilesCount:     "files_count",
	api.SortFilesSize:      "files_size",
	api.SortStatus:         "status",
}

var detailSortKeys = map[api.SortField]string{
	api.SortPath:           "path",
	api.SortLocalUpdated:   "lu",
	api.SortRemoteUpdated:  "ru",
	api.SortLocalProgress:  "lp",
	api.SortRemoteProgress: "rp",
	api.SortSize:           "size",
	api.SortStatus:         "status",
}

// literal matches filter as a case-insensitive substring.
func literal(filter string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(filter), Options: "i"}
}

func siteEntry(site string) bson.M {
	return bson.M{"$first": bson.M{"$filter": bson.M{
		"input": "$files.sites",
		"as":    "s",
		"cond":  bson.M{"$eq": bson.A{"$$s.name", site}},
	}}}
}

func isDate(field string) bson.M {
	return bson.M{"$eq": bson.A{bson.M{"$type": field}, "date"}}
}

// fileStages unwinds files and computes per-file progress, last-touched
// time and failure flag for both sites.
func fileStages(local, remote string) bson.A {
	perSite := func(alias string) (progress, touched, failed bson.M) {
		progress = bson.M{"$ifNull": bson.A{
			"$" + alias + ".progress",
			bson.M{"$cond": bson.A{isDate("$" + alias + ".created_dt"), 1, 0}},
		}}
		touched = bson.M{"$ifNull": bson.A{"$" + alias + ".created_dt", "$" + alias + ".last_failed_dt"}}
		failed = bson.M{"$cond": bson.A{isDate("$" + alias + ".last_failed_dt"), 1, 0}}
		return progress, touched, failed
	}
	lp, lu, lf := perSite("ls")
	rp, ru, rf := perSite("rs")

	return bson.A{
		bson.M{"$unwind": "$files"},
		bson.M{"$addFields": bson.M{"ls": siteEntry(local), "rs": siteEntry(remote)}},
		bson.M{"$addFields": bson.M{
			"lp": lp, "rp": rp,
			"lu": lu, "ru": ru,
			"lf": lf, "rf": rf,
			"size": bson.M{"$ifNull": bson.A{"$files.size", 0}},
		}},
	}
}

func predicateExpr(p api.Predicate) bson.M {
	partial := func(f string) bson.M {
		return bson.M{"$and": bson.A{bson.M{"$gt": bson.A{f, 0}}, bson.M{"$lt": bson.A{f, 1}}}}
	}
	switch p {
	case api.AnyProgressZero:
		return bson.M{"$or": bson.A{bson.M{"$eq": bson.A{"$lp", 0}}, bson.M{"$eq": bson.A{"$rp", 0}}}}
	case api.AnyFailed:
		return bson.M{"$or": bson.A{bson.M{"$eq": bson.A{"$lf", 1}}, bson.M{"$eq": bson.A{"$rf", 1}}}}
	case api.AnyProgressPartial:
		return bson.M{"$or": bson.A{partial("$lp"), partial("$rp")}}
	case api.AllProgressComplete:
		return bson.M{"$and": bson.A{bson.M{"$eq": bson.A{"$lp", 1}}, bson.M{"$eq": bson.A{"$rp", 1}}}}
	default:
		return bson.M{"$literal": false}
	}
}

// statusStage renders api.StatusRules as a $switch.
func statusStage() bson.M {
	branches := make(bson.A, 0, len(api.StatusRules))
	for _, rule := range api.StatusRules {
		branches = append(branches, bson.M{"case": predicateExpr(rule.When), "then": int(rule.Status)})
	}
	return bson.M{"$addFields": bson.M{"status": bson.M{"$switch": bson.M{
		"branches": branches,
		"default":  int(api.StatusUnavailable),
	}}}}
}

// facetStage returns the total count and one sorted page in a single
// result document.
func facetStage(sortKey string, desc bool, skip, limit int) bson.M {
	dir := 1
	if desc {
		dir = -1
	}
	return bson.M{"$facet": bson.M{
		"total": bson.A{bson.M{"$count": "n"}},
		"rows": bson.A{
			bson.M{"$sort": bson.D{{Key: sortKey, Value: dir}, {Key: "_id", Value: 1}}},
			bson.M{"$skip": skip},
			bson.M{"$limit": limit},
		},
	}}
}

// SummaryPipeline builds the aggregation behind QuerySummary.
func SummaryPipeline(q api.SummaryQuery) bson.A {
	match := bson.M{
		"type":             api.KindRepresentation,
		"files.sites.name": bson.M{"$in": bson.A{q.LocalSite, q.RemoteSite}},
	}
	if q.Filter != "" {
		re := literal(q.Filter)
		match["$or"] = bson.A{
			bson.M{"context.asset": re},
			bson.M{"context.subset": re},
			bson.M{"context.representation": re},
		}
	}

	pipeline := bson.A{bson.M{"$match": match}}
	pipeline = append(pipeline, fileStages(q.LocalSite, q.RemoteSite)...)
	pipeline = append(pipeline,
		bson.M{"$group": bson.M{
			"_id":         "$_id",
			"context":     bson.M{"$first": "$context"},
			"files_count": bson.M{"$sum": 1},
			"files_size":  bson.M{"$sum": "$size"},
			"lp":          bson.M{"$avg": "$lp"},
			"rp":          bson.M{"$avg": "$rp"},
			"lf":          bson.M{"$max": "$lf"},
			"rf":          bson.M{"$max": "$rf"},
			"lu":          bson.M{"$max": "$lu"},
			"ru":          bson.M{"$max": "$ru"},
		}},
		statusStage(),
		facetStage(summarySortKeys[q.Sort], q.Descending, q.Skip, q.Limit),
	)
	return pipeline
}

// DetailPipeline builds the aggregation behind QueryDetail. reprID is the
// already converted document id.
func DetailPipeline(q api.DetailQuery, reprID any) bson.A {
	pipeline := bson.A{bson.M{"$match": bson.M{"_id": reprID, "type": api.KindRepresentation}}}
	pipeline = append(pipeline, fileStages(q.LocalSite, q.RemoteSite)...)
	if q.Filter != "" {
		pipeline = append(pipeline, bson.M{"$match": bson.M{"files.path": literal(q.Filter)}})
	}
	pipeline = append(pipeline,
		bson.M{"$project": bson.M{
			"_id":  "$files._id",
			"path": "$files.path",
			"size": 1,
			"lp":   1, "rp": 1,
			"lu": 1, "ru": 1,
			"lf": 1, "rf": 1,
			"tries": bson.M{"$ifNull": bson.A{"$ls.tries", bson.M{"$ifNull": bson.A{"$rs.tries", 0}}}},
			"lerr":  bson.M{"$ifNull": bson.A{"$ls.error", ""}},
			"rerr":  bson.M{"$ifNull": bson.A{"$rs.error", ""}},
		}},
		statusStage(),
		facetStage(detailSortKeys[q.Sort], q.Descending, q.Skip, q.Limit),
	)
	return pipeline
}
