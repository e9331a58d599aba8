package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create history",
		SQL: `
			CREATE TABLE history (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				session_key  TEXT NOT NULL,
				role         TEXT NOT NULL,
				content      TEXT NOT NULL DEFAULT '',
				tool_calls   TEXT,
				tool_call_id TEXT,
				name         TEXT,
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_history_session ON history (session_key, id);
		`,
	},
	{
		Version: 2,
		Name:    "create facts",
		SQL: `
			CREATE TABLE facts (
				key         TEXT PRIMARY KEY,
				value       TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 3,
		Name:    "create documents with FTS5",
		SQL: `
			CREATE TABLE documents (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				source      TEXT NOT NULL,
				content     TEXT NOT NULL,
				metadata    TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_documents_source ON documents (source);

			CREATE VIRTUAL TABLE documents_fts USING fts5(
				source,
				content,
				content='documents',
				content_rowid='id'
			);

			CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO documents_fts(rowid, source, content)
				VALUES (new.id, new.source, new.content);
			END;

			CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, source, content)
				VALUES ('delete', old.id, old.source, old.content);
			END;

			CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, source, content)
				VALUES ('delete', old.id, old.source, old.content);
				INSERT INTO documents_fts(rowid, source, content)
				VALUES (new.id, new.source, new.content);
			END;
		`,
	},
}
