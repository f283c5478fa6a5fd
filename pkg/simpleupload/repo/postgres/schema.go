package postgres

// Schema creates the files table used by the repository
const Schema = `
CREATE TABLE IF NOT EXISTS upload_files (
	key          TEXT PRIMARY KEY,
	file_name    TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	access_role  TEXT NOT NULL DEFAULT '',
	size         BIGINT NOT NULL DEFAULT 0,
	upload_id    TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	confirmed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS upload_files_unconfirmed_idx
	ON upload_files (created_at) WHERE status <> 'confirmed';
`
