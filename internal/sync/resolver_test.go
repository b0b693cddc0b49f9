package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

func TestMergeLaterSideWinsTitle(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	local := domain.Bookmark{ID: "r1", URL: "https://a.example", Title: "local", Updated: base}
	remote := local
	remote.Title = "remote"
	remote.Updated = base.Add(time.Minute)

	merged := Merge(local, remote)
	assert.Equal(t, "remote", merged.Title)
	assert.True(t, merged.Updated.Equal(remote.Updated), "modification date becomes the maximum")

	// the other way around the local title survives, and so do ties
	merged = Merge(remote, local)
	assert.Equal(t, "remote", merged.Title)
	merged = Merge(local, domain.Bookmark{ID: "r1", Title: "same instant", Updated: base})
	assert.Equal(t, "local", merged.Title)
}

func TestMergeNotes(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	local := domain.Bookmark{ID: "r1", Notes: "local notes", Updated: base}
	remote := domain.Bookmark{ID: "r1", Notes: "remote notes", Updated: base}

	merged := Merge(local, remote)
	assert.Equal(t, "local notes"+NotesSeparator+"remote notes", merged.Notes)

	// identical or one-sided notes are not duplicated
	merged = Merge(local, domain.Bookmark{ID: "r1", Notes: "local notes", Updated: base})
	assert.Equal(t, "local notes", merged.Notes)
	merged = Merge(domain.Bookmark{ID: "r1", Updated: base}, remote)
	assert.Equal(t, "remote notes", merged.Notes)
	merged = Merge(local, domain.Bookmark{ID: "r1", Updated: base})
	assert.Equal(t, "local notes", merged.Notes)
}

func TestResolvePolicies(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	conflict := domain.Conflict{
		RecordID: "r1",
		Local:    domain.Bookmark{ID: "r1", Title: "local", Notes: "ln", Updated: base},
		Remote:   domain.Bookmark{ID: "r1", Title: "remote", Notes: "rn", Updated: base.Add(-time.Hour)},
	}

	kept := Resolve(conflict, domain.ResolutionKeepLocal)
	assert.Equal(t, conflict.Local, kept)

	// keepRemote takes the remote content and date, even when that moves the
	// modification date backwards
	remote := Resolve(conflict, domain.ResolutionKeepRemote)
	assert.Equal(t, "remote", remote.Title)
	assert.Equal(t, "rn", remote.Notes)
	assert.True(t, remote.Updated.Equal(conflict.Remote.Updated))

	merged := Resolve(conflict, domain.ResolutionMerge)
	assert.Equal(t, "local", merged.Title)
	assert.Equal(t, "ln"+NotesSeparator+"rn", merged.Notes)
	assert.True(t, merged.Updated.Equal(base))
}
