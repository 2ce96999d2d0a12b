package syncmodel

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/petrijr/sitesync/pkg/api"
)

// Column is a table column and the store field it sorts by.
type Column struct {
	Header string
	Sort   api.SortField
}

// Order is the sort direction of a column.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// SummaryColumns are the columns of the representation table. Priority is
// not stored yet and sorts by asset.
var SummaryColumns = []Column{
	{Header: "asset", Sort: api.SortAsset},
	{Header: "subset", Sort: api.SortSubset},
	{Header: "version", Sort: api.SortVersion},
	{Header: "representation", Sort: api.SortRepresentation},
	{Header: "created_dt", Sort: api.SortLocalUpdated},
	{Header: "sync_dt", Sort: api.SortRemoteUpdated},
	{Header: "local_site", Sort: api.SortLocalProgress},
	{Header: "remote_site", Sort: api.SortRemoteProgress},
	{Header: "files_count", Sort: api.SortFilesCount},
	{Header: "files_size", Sort: api.SortFilesSize},
	{Header: "priority", Sort: api.SortAsset},
	{Header: "state", Sort: api.SortStatus},
}

// DetailColumns are the columns of the per-file table. Priority sorts by
// file path.
var DetailColumns = []Column{
	{Header: "file", Sort: api.SortPath},
	{Header: "created_dt", Sort: api.SortLocalUpdated},
	{Header: "sync_dt", Sort: api.SortRemoteUpdated},
	{Header: "local_site", Sort: api.SortLocalProgress},
	{Header: "remote_site", Sort: api.SortRemoteProgress},
	{Header: "size", Sort: api.SortSize},
	{Header: "priority", Sort: api.SortPath},
	{Header: "state", Sort: api.SortStatus},
}

const (
	summarySyncDtColumn = 5
	detailFileColumn    = 0
)

// TimestampLayout is the display format of created_dt and sync_dt.
const TimestampLayout = "20060102T150405Z"

// priorityPlaceholder is shown until priorities are stored.
const priorityPlaceholder = "1"

// FormatTimestamp renders t in TimestampLayout; nil renders empty.
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// FormatSite renders a site cell as "<site> <progress>".
func FormatSite(site string, progress float64) string {
	return site + " " + strconv.FormatFloat(progress, 'f', -1, 64)
}

// FormatSize renders a byte count with IEC units.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// FormatVersion renders a version number as v001.
func FormatVersion(v int) string {
	return fmt.Sprintf("v%03d", v)
}

func summaryCell(r api.SyncRecord, col int, local, remote string) string {
	switch col {
	case 0:
		return r.Context.Asset
	case 1:
		return r.Context.Subset
	case 2:
		return FormatVersion(r.Context.Version)
	case 3:
		return r.Context.Representation
	case 4:
		return FormatTimestamp(r.LocalUpdated)
	case 5:
		return FormatTimestamp(r.RemoteUpdated)
	case 6:
		return FormatSite(local, r.LocalProgress)
	case 7:
		return FormatSite(remote, r.RemoteProgress)
	case 8:
		return strconv.Itoa(r.FilesCount)
	case 9:
		return FormatSize(r.FilesSize)
	case 10:
		return priorityPlaceholder
	case 11:
		return r.Status.String()
	default:
		return ""
	}
}

func detailCell(r api.SyncDetailRecord, col int, local, remote string) string {
	switch col {
	case 0:
		return r.File
	case 1:
		return FormatTimestamp(r.LocalUpdated)
	case 2:
		return FormatTimestamp(r.RemoteUpdated)
	case 3:
		return FormatSite(local, r.LocalProgress)
	case 4:
		return FormatSite(remote, r.RemoteProgress)
	case 5:
		return FormatSize(r.Size)
	case 6:
		return priorityPlaceholder
	case 7:
		return r.Status.String()
	default:
		return ""
	}
}
