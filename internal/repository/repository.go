package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

// Store is the durable local table of bookmark records plus the offline queue
// and the sync watermark. There is a single Store owner per device; sqlite in
// WAL mode serializes the writers behind it.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func (store *Store) InitAndVerifyDb(dbFilename string) error {
	var err error
	store.db, err = sql.Open("sqlite3", "file:"+dbFilename+"?_foreign_keys=on")
	if err != nil {
		return err
	}
	store.now = time.Now
	return migrateSchema(store.db)
}

func (store *Store) Close() {
	store.db.Close()
}

// Add validates the URL and creates a new active record. If an active record
// with the same URL already exists it is returned together with ErrDuplicate:
// first write wins, the caller gets the existing record either way.
func (store *Store) Add(url, title, notes string) (domain.Bookmark, error) {
	if err := domain.ValidateURL(url); err != nil {
		return domain.Bookmark{}, err
	}
	existing, err := store.findActiveByURL(url)
	if err != nil {
		return domain.Bookmark{}, err
	}
	if existing != nil {
		return *existing, domain.ErrDuplicate
	}
	now := store.now()
	bookmark := domain.Bookmark{
		ID:      uuid.New().String(),
		URL:     url,
		Title:   title,
		Notes:   notes,
		Created: now,
		Updated: now,
	}
	_, err = store.db.Exec(
		"INSERT INTO bookmarks (id, url, title, notes, created, updated, deleted) VALUES (?, ?, ?, ?, ?, ?, 0)",
		bookmark.ID, bookmark.URL, bookmark.Title, bookmark.Notes, now.Unix(), now.Unix())
	if isUniqueConstraint(err) {
		// lost a check-then-insert race against a concurrent add of the same
		// URL; the unique index is the arbiter, hand back the winner
		existing, findErr := store.findActiveByURL(url)
		if findErr != nil {
			return domain.Bookmark{}, findErr
		}
		if existing != nil {
			return *existing, domain.ErrDuplicate
		}
	}
	if err != nil {
		return domain.Bookmark{}, err
	}
	return bookmark, nil
}

// Update merges the non-nil fields into the record and bumps the modification
// date. Tombstones are never resurrected by an ordinary update.
func (store *Store) Update(id string, title, notes *string) (domain.Bookmark, error) {
	bookmark, err := store.Get(id)
	if err != nil {
		return domain.Bookmark{}, err
	}
	if bookmark.Deleted {
		return domain.Bookmark{}, domain.ErrNotFound
	}
	if title != nil {
		bookmark.Title = *title
	}
	if notes != nil {
		bookmark.Notes = *notes
	}
	bookmark.Updated = store.bumpUpdated(bookmark.Updated)
	_, err = store.db.Exec("UPDATE bookmarks SET title = ?, notes = ?, updated = ? WHERE id = ?",
		bookmark.Title, bookmark.Notes, bookmark.Updated.Unix(), id)
	if err != nil {
		return domain.Bookmark{}, err
	}
	return bookmark, nil
}

// SoftDelete marks the record as a tombstone and bumps the modification date
// so the deletion propagates on the next sync.
func (store *Store) SoftDelete(id string) error {
	bookmark, err := store.Get(id)
	if err != nil {
		return err
	}
	if bookmark.Deleted {
		return nil
	}
	updated := store.bumpUpdated(bookmark.Updated)
	_, err = store.db.Exec("UPDATE bookmarks SET deleted = 1, updated = ? WHERE id = ?", updated.Unix(), id)
	return err
}

func (store *Store) Get(id string) (domain.Bookmark, error) {
	row := store.db.QueryRow(
		"SELECT id, url, title, notes, created, updated, deleted FROM bookmarks WHERE id = ?", id)
	bookmark, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bookmark{}, domain.ErrNotFound
	}
	return bookmark, err
}

// Search returns active records whose url, title or notes contain the query
// as a case-insensitive substring, newest modification first, paginated with
// offset and limit so large sets don't blow up memory. An empty query matches
// everything.
func (store *Store) Search(query string, offset, limit int) ([]domain.Bookmark, error) {
	rows, err := store.db.Query(
		`
		SELECT id, url, title, notes, created, updated, deleted
		FROM bookmarks
		WHERE deleted = 0
		AND (? = '' OR instr(lower(url), lower(?)) > 0 OR instr(lower(title), lower(?)) > 0 OR instr(lower(notes), lower(?)) > 0)
		ORDER BY updated DESC, id
		LIMIT ? OFFSET ?`,
		query, query, query, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookmarks(rows)
}

// ModifiedSince returns every record, tombstones included, modified strictly
// after the given time. Used by the sync orchestrator to compute the push set.
func (store *Store) ModifiedSince(t time.Time) ([]domain.Bookmark, error) {
	rows, err := store.db.Query(
		"SELECT id, url, title, notes, created, updated, deleted FROM bookmarks WHERE updated > ? ORDER BY updated, id",
		t.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookmarks(rows)
}

// Upsert merges a record pulled from the remote backend into the local table
// with last-write-wins semantics. A local tombstone is never resurrected by a
// remote copy; only an incoming deletion may touch it. An incoming record
// whose URL collides with a different active local record is reconciled via
// reconcileURLCollision instead of tripping the unique index.
func (store *Store) Upsert(bookmark domain.Bookmark) error {
	if !bookmark.Deleted {
		if err := store.reconcileURLCollision(&bookmark); err != nil {
			return err
		}
	}
	local, err := store.Get(bookmark.ID)
	if errors.Is(err, domain.ErrNotFound) {
		_, err = store.db.Exec(
			"INSERT INTO bookmarks (id, url, title, notes, created, updated, deleted) VALUES (?, ?, ?, ?, ?, ?, ?)",
			bookmark.ID, bookmark.URL, bookmark.Title, bookmark.Notes,
			bookmark.Created.Unix(), bookmark.Updated.Unix(), boolToInt(bookmark.Deleted))
		return err
	}
	if err != nil {
		return err
	}
	if local.Deleted && !bookmark.Deleted {
		return nil
	}
	if bookmark.Updated.Before(local.Updated) {
		return nil
	}
	_, err = store.db.Exec("UPDATE bookmarks SET url = ?, title = ?, notes = ?, updated = ?, deleted = ? WHERE id = ?",
		bookmark.URL, bookmark.Title, bookmark.Notes, bookmark.Updated.Unix(), boolToInt(bookmark.Deleted), bookmark.ID)
	return err
}

// PurgeDeletedOlderThan permanently removes tombstones whose last modification
// is past the retention window. Returns the number of purged records.
func (store *Store) PurgeDeletedOlderThan(retention time.Duration) (int64, error) {
	cutoff := store.now().Add(-retention).Unix()
	result, err := store.db.Exec("DELETE FROM bookmarks WHERE deleted = 1 AND updated <= ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (store *Store) LastSyncDate() (time.Time, error) {
	var lastSync int64
	err := store.db.QueryRow("SELECT last_sync FROM sync_state WHERE id = 1").Scan(&lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(lastSync, 0), nil
}

func (store *Store) SetLastSyncDate(t time.Time) error {
	_, err := store.db.Exec("INSERT OR REPLACE INTO sync_state (id, last_sync) VALUES (1, ?)", t.Unix())
	return err
}

// BookmarksNeedingTitle returns active records without a title that have had
// fewer than maxAttempts fetch attempts, limited to a batch.
func (store *Store) BookmarksNeedingTitle(maxAttempts, limit int) ([]domain.TitleCandidate, error) {
	rows, err := store.db.Query(
		`
		SELECT id, url, title_fetch_attempts
		FROM bookmarks
		WHERE deleted = 0
		AND title = ''
		AND title_fetch_attempts < ?
		LIMIT ?`,
		maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	candidates := make([]domain.TitleCandidate, 0)
	for rows.Next() {
		var candidate domain.TitleCandidate
		if err := rows.Scan(&candidate.ID, &candidate.URL, &candidate.Attempts); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

// SaveFetchedTitle stores a crawled title. The modification date is bumped so
// the new title propagates on the next sync.
func (store *Store) SaveFetchedTitle(id, title string, attempts int) error {
	bookmark, err := store.Get(id)
	if err != nil {
		return err
	}
	updated := store.bumpUpdated(bookmark.Updated)
	_, err = store.db.Exec("UPDATE bookmarks SET title = ?, title_fetch_attempts = ?, updated = ? WHERE id = ?",
		title, attempts, updated.Unix(), id)
	return err
}

func (store *Store) MarkTitleFetchFailed(id string, attempts int) error {
	_, err := store.db.Exec("UPDATE bookmarks SET title_fetch_attempts = ? WHERE id = ?", attempts, id)
	return err
}

// SaveResolved overwrites a record's content with the outcome of a conflict
// resolution. Unlike Upsert it applies unconditionally, a keepRemote
// resolution may legitimately move the modification date backwards in wall
// time (it stays the chosen side's value, never a new stamp).
func (store *Store) SaveResolved(bookmark domain.Bookmark) error {
	result, err := store.db.Exec("UPDATE bookmarks SET title = ?, notes = ?, updated = ? WHERE id = ?",
		bookmark.Title, bookmark.Notes, bookmark.Updated.Unix(), bookmark.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// reconcileURLCollision settles two devices having independently added the
// same URL under different ids. The record created first stays active (ties
// broken by id so every device picks the same winner); the other becomes a
// tombstone. Applied to pulled records before they reach the unique index.
func (store *Store) reconcileURLCollision(bookmark *domain.Bookmark) error {
	existing, err := store.findActiveByURL(bookmark.URL)
	if err != nil {
		return err
	}
	if existing == nil || existing.ID == bookmark.ID {
		return nil
	}
	if firstWriter(*existing, *bookmark) {
		// the local record wins, the incoming duplicate lands as a tombstone
		bookmark.Deleted = true
		bookmark.Updated = store.bumpUpdated(bookmark.Updated)
		return nil
	}
	// the incoming record wins, retire the local duplicate
	updated := store.bumpUpdated(existing.Updated)
	_, err = store.db.Exec("UPDATE bookmarks SET deleted = 1, updated = ? WHERE id = ?",
		updated.Unix(), existing.ID)
	return err
}

func firstWriter(a, b domain.Bookmark) bool {
	if a.Created.Equal(b.Created) {
		return a.ID < b.ID
	}
	return a.Created.Before(b.Created)
}

func isUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (store *Store) findActiveByURL(url string) (*domain.Bookmark, error) {
	row := store.db.QueryRow(
		"SELECT id, url, title, notes, created, updated, deleted FROM bookmarks WHERE url = ? AND deleted = 0", url)
	bookmark, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bookmark, nil
}

// bumpUpdated keeps the per-record modification date monotonically
// non-decreasing even if the wall clock jumps backwards.
func (store *Store) bumpUpdated(previous time.Time) time.Time {
	now := store.now()
	if now.Before(previous) {
		return previous
	}
	return now
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (domain.Bookmark, error) {
	var bookmark domain.Bookmark
	var created, updated int64
	var deleted int
	err := row.Scan(&bookmark.ID, &bookmark.URL, &bookmark.Title, &bookmark.Notes, &created, &updated, &deleted)
	if err != nil {
		return domain.Bookmark{}, err
	}
	bookmark.Created = time.Unix(created, 0)
	bookmark.Updated = time.Unix(updated, 0)
	bookmark.Deleted = deleted == 1
	return bookmark, nil
}

func collectBookmarks(rows *sql.Rows) ([]domain.Bookmark, error) {
	bookmarks := make([]domain.Bookmark, 0)
	for rows.Next() {
		bookmark, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, bookmark)
	}
	return bookmarks, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
