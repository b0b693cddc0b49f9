package domain

// Resolution selects how a conflict between a local and a remote version of
// the same bookmark is settled.
type Resolution string

const (
	// ResolutionKeepLocal keeps the local record untouched; the remote copy
	// is overwritten on the next push.
	ResolutionKeepLocal Resolution = "keepLocal"
	// ResolutionKeepRemote replaces the local title, notes and modification
	// date with the remote ones.
	ResolutionKeepRemote Resolution = "keepRemote"
	// ResolutionMerge combines both sides: the later side wins the title,
	// differing notes are concatenated, the modification date becomes the
	// maximum of the two.
	ResolutionMerge Resolution = "merge"
)

// Conflict pairs the local and remote versions of a record whose edits
// diverged since the last sync. It exists only between detection and
// resolution.
type Conflict struct {
	RecordID   string     `json:"recordId"`
	Local      Bookmark   `json:"local"`
	Remote     Bookmark   `json:"remote"`
	Resolution Resolution `json:"resolution"`
}
