package repository

import "database/sql"

type migration struct {
	SequenceId int
	Sql        string
}

var bookmarkMigrations = []migration{
	{1,
		`
		CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT NOT NULL PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0
		);

		-- duplicate URLs are only rejected among active records, tombstones
		-- may share a URL with a later re-add
		CREATE UNIQUE INDEX IF NOT EXISTS bookmarks_active_url_idx ON bookmarks(url) WHERE deleted = 0;
		CREATE INDEX IF NOT EXISTS bookmarks_updated_idx ON bookmarks(updated);
		`,
	},
	// the offline queue and the sync watermark live next to the bookmarks so
	// a single database file carries the whole device state
	{2,
		`
		CREATE TABLE IF NOT EXISTS pending_operations (
		seq INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		record_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at INTEGER NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS sync_state (
		id INTEGER NOT NULL PRIMARY KEY CHECK (id = 1),
		last_sync INTEGER NOT NULL
		);
		`,
	},
	// bookmarks added without a title get their real title fetched in the
	// background; track attempts so we don't hammer dead pages forever
	{3,
		`
		ALTER TABLE bookmarks ADD COLUMN title_fetch_attempts INTEGER NOT NULL DEFAULT 0;
		`,
	},
	{4,
		`
		-- Enable WAL mode on the database to allow for concurrent reads and writes
		PRAGMA journal_mode=WAL;
		`,
	},
}

func migrateSchema(db *sql.DB) error {
	exists, err := existsMigrationTable(db)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := db.Exec("CREATE TABLE IF NOT EXISTS migrations (sequence_id INTEGER NOT NULL PRIMARY KEY)"); err != nil {
			return err
		}
	}
	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}
	for _, m := range bookmarkMigrations {
		if applied[m.SequenceId] {
			continue
		}
		if _, err := db.Exec(m.Sql); err != nil {
			return err
		}
		if _, err := db.Exec("INSERT INTO migrations (sequence_id) VALUES (?)", m.SequenceId); err != nil {
			return err
		}
	}
	return nil
}

func existsMigrationTable(db *sql.DB) (bool, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name='migrations'")
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), nil
}

func appliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT sequence_id FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	applied := make(map[int]bool)
	for rows.Next() {
		var sequenceId int
		if err := rows.Scan(&sequenceId); err != nil {
			return nil, err
		}
		applied[sequenceId] = true
	}
	return applied, rows.Err()
}
