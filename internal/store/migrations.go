package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	business_id   TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL,
	recv_host     TEXT NOT NULL,
	recv_port     INTEGER NOT NULL,
	recv_security TEXT NOT NULL DEFAULT 'ssl',
	recv_username TEXT NOT NULL,
	recv_password TEXT NOT NULL,
	send_host     TEXT NOT NULL,
	send_port     INTEGER NOT NULL,
	send_security TEXT NOT NULL DEFAULT 'starttls',
	send_username TEXT NOT NULL,
	send_password TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS folders (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	user_created   INTEGER NOT NULL DEFAULT 0 CHECK(user_created IN (0, 1)),
	remote_missing INTEGER NOT NULL DEFAULT 0 CHECK(remote_missing IN (0, 1)),
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(account_id, name)
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	folder_name TEXT NOT NULL,
	message_id  TEXT NOT NULL,
	from_name   TEXT NOT NULL DEFAULT '',
	from_addr   TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	body_html   TEXT NOT NULL DEFAULT '',
	date        DATETIME NOT NULL,
	read        INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	favourite   INTEGER NOT NULL DEFAULT 0 CHECK(favourite IN (0, 1)),
	archived    INTEGER NOT NULL DEFAULT 0 CHECK(archived IN (0, 1)),
	fetched_at  DATETIME NOT NULL,
	UNIQUE(account_id, message_id)
);

CREATE TABLE IF NOT EXISTS attachments (
	id           TEXT PRIMARY KEY,
	message_id   TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	filename     TEXT NOT NULL DEFAULT '',
	mime_type    TEXT NOT NULL DEFAULT '',
	size         INTEGER NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL UNIQUE,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_state (
	account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	folder_name TEXT NOT NULL,
	last_uid    INTEGER NOT NULL DEFAULT 0,
	last_sync   DATETIME NOT NULL,
	PRIMARY KEY (account_id, folder_name)
);

CREATE INDEX IF NOT EXISTS idx_accounts_business ON accounts(business_id);
CREATE INDEX IF NOT EXISTS idx_folders_account ON folders(account_id);
CREATE INDEX IF NOT EXISTS idx_messages_account ON messages(account_id);
CREATE INDEX IF NOT EXISTS idx_messages_folder ON messages(account_id, folder_name);
CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date);
CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_read ON messages(account_id, read);
CREATE INDEX IF NOT EXISTS idx_messages_archived ON messages(account_id, archived);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
