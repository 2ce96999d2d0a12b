// Package api contains the core types shared by the sitesync stores and
// views: stored representation documents, the summary and detail rows
// derived from them, paged queries, and observability hooks.
//
// Most users interact with the higher-level sitesync package, which
// re-exports selected types and constructors from this package.
//
// # Documents and rows
//
// A Representation is a published deliverable made of files. Each file
// carries one FileSite entry per storage site it is registered on. Stores
// aggregate those entries into rows:
//
//   - SyncRecord: one row per representation, progress averaged over files.
//   - SyncDetailRecord: one row per file of a single representation.
//
// Rows are never mutated once returned; a refresh replaces them.
//
// # Status
//
// Status is derived by StatusRules, an ordered rule list evaluated
// first-match-wins. Stores translate the same list into their own query
// language, so that sorting by status is done store-side and pagination
// stays consistent with the displayed values.
//
// # Paging
//
// SummaryQuery and DetailQuery return a page together with the total match
// count read from the same snapshot, so a view can decide whether more rows
// exist without issuing a second query.
//
// # Observability
//
// The Observer interface receives model lifecycle events. LoggingObserver
// writes them with log/slog, BasicMetrics counts them, and
// NewCompositeObserver combines several observers.
package api
