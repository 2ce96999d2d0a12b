// Package sitesync provides paginated, sortable and filterable views over the
// file synchronization state between a local studio site and a remote site.
//
// Sitesync reads representation documents of a pipeline database and derives,
// for every representation and every file of it, how far the transfer has
// progressed on each site. The views are designed for interactive browsers:
// they fetch rows page by page, keep their ordering stable across requery and
// refresh themselves in the background.
//
// # Core Concepts
//
//  1. Store
//  2. Model and DetailModel
//  3. Notifier
//  4. Bundle
//  5. Watcher
//
// # Store
//
// A Store answers summary and detail queries. Every query returns the total
// number of matching rows and one page of them from the same snapshot, so
// a view never shows a row count that disagrees with its rows. Stores are
// available for:
//
//   - In-memory (best for tests)
//   - SQLite (embedded)
//   - Postgres
//   - MongoDB (the pipeline's native document store)
//
// # Model
//
// A Model is the representation summary of one project. It materializes a
// growing window of rows:
//
//	m, err := sitesync.NewModel(ctx, store, sites, "demo")
//	for m.CanFetchMore() {
//	    if err := m.FetchMore(ctx); err != nil {
//	        return err
//	    }
//	}
//
// A DetailModel lists the files of a single representation and can reset a
// file on one of the sites so that it is transferred again.
//
// # Notifier
//
// A Notifier carries change events from the process that modified sync state
// to the views showing it. NewHub works within one process; NewRedisNotifier
// spans processes over Redis pub/sub.
//
// # Bundle and Watcher
//
// A Bundle groups a Store, a Notifier and a SiteResolver that belong
// together. A Watcher runs the background refresh loops of several models
// and stops them together.
package sitesync
