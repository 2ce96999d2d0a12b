package api

// Status is the synchronization state of a representation or a single file
// between the local and the remote site.
type Status int

const (
	StatusUnavailable Status = -1
	StatusQueued      Status = 0
	StatusFailed      Status = 1
	StatusInProgress  Status = 2
	// StatusPaused is reserved; no rule derives it yet.
	StatusPaused Status = 3
	StatusSynced Status = 4
)

var statusLabels = map[Status]string{
	StatusQueued:      "Queued",
	StatusFailed:      "Failed",
	StatusInProgress:  "In Progress",
	StatusPaused:      "Paused",
	StatusSynced:      "Synced OK",
	StatusUnavailable: "Not available",
}

// String returns the label shown in the state column.
func (s Status) String() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusUnavailable]
}

// SiteState is the input of status derivation: progress per site in [0,1]
// and whether any file failed on that site.
type SiteState struct {
	LocalProgress  float64
	RemoteProgress float64
	LocalFailed    bool
	RemoteFailed   bool
}

// Predicate is one condition of the status rule list. Backends translate
// predicates into their own query language so that status can be computed
// (and sorted on) store-side.
type Predicate int

const (
	// AnyProgressZero holds when either site has not started.
	AnyProgressZero Predicate = iota
	// AnyFailed holds when either site reported a failure.
	AnyFailed
	// AnyProgressPartial holds when either site is strictly between 0 and 1.
	AnyProgressPartial
	// AllProgressComplete holds when both sites are at 1.
	AllProgressComplete
)

// Eval evaluates the predicate against s.
func (p Predicate) Eval(s SiteState) bool {
	switch p {
	case AnyProgressZero:
		return s.LocalProgress == 0 || s.RemoteProgress == 0
	case AnyFailed:
		return s.LocalFailed || s.RemoteFailed
	case AnyProgressPartial:
		return partial(s.LocalProgress) || partial(s.RemoteProgress)
	case AllProgressComplete:
		return s.LocalProgress == 1 && s.RemoteProgress == 1
	default:
		return false
	}
}

func partial(p float64) bool {
	return p > 0 && p < 1
}

// StatusRule maps a predicate to the status it yields.
type StatusRule struct {
	Status Status
	When   Predicate
}

// StatusRules is evaluated top to bottom; the first matching rule wins and
// StatusUnavailable is the fallback. Every Store implementation derives
// status from this list.
var StatusRules = []StatusRule{
	{Status: StatusQueued, When: AnyProgressZero},
	{Status: StatusFailed, When: AnyFailed},
	{Status: StatusInProgress, When: AnyProgressPartial},
	{Status: StatusSynced, When: AllProgressComplete},
}

// DeriveStatus applies StatusRules to s.
func DeriveStatus(s SiteState) Status {
	for _, r := range StatusRules {
		if r.When.Eval(s) {
			return r.Status
		}
	}
	return StatusUnavailable
}
