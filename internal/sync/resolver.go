package sync

import "github.com/omprakashjha/URLBookmarks/internal/domain"

// NotesSeparator joins both sides' notes when a merge cannot pick one.
const NotesSeparator = "\n---\n"

// Resolve returns the record the local store should hold after settling the
// conflict with the given policy.
func Resolve(conflict domain.Conflict, resolution domain.Resolution) domain.Bookmark {
	switch resolution {
	case domain.ResolutionKeepLocal:
		return conflict.Local
	case domain.ResolutionKeepRemote:
		resolved := conflict.Local
		resolved.Title = conflict.Remote.Title
		resolved.Notes = conflict.Remote.Notes
		resolved.Updated = conflict.Remote.Updated
		return resolved
	default:
		return Merge(conflict.Local, conflict.Remote)
	}
}

// Merge combines divergent edits: the side with the later modification date
// wins the title (ties go to local), differing non-empty notes are
// concatenated with NotesSeparator, and the modification date becomes the
// maximum of the two sides.
func Merge(local, remote domain.Bookmark) domain.Bookmark {
	merged := local
	if remote.Updated.After(local.Updated) {
		merged.Title = remote.Title
	}
	switch {
	case local.Notes == "":
		merged.Notes = remote.Notes
	case remote.Notes == "" || remote.Notes == local.Notes:
		merged.Notes = local.Notes
	default:
		merged.Notes = local.Notes + NotesSeparator + remote.Notes
	}
	if remote.Updated.After(merged.Updated) {
		merged.Updated = remote.Updated
	}
	return merged
}
