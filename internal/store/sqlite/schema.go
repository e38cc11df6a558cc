package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bindings (
    git_dir    TEXT PRIMARY KEY,
    binding_id TEXT NOT NULL,
    forge      TEXT NOT NULL,
    repo       TEXT NOT NULL,
    token_ref  TEXT NOT NULL DEFAULT '',
    linked_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_bindings_binding_id ON bindings(binding_id);

-- One row per (binding, key). Labels and assignees are stored as
-- structured JSON documents so a reader always gets back a consistent
-- snapshot of one issue row -- never partially-updated labels.
CREATE TABLE IF NOT EXISTS issues (
    binding_id  TEXT NOT NULL,
    key         TEXT NOT NULL,
    native_id   TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL DEFAULT '',
    body        TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL DEFAULT 'open',
    author      TEXT NOT NULL DEFAULT '',
    labels_json TEXT NOT NULL DEFAULT '[]',
    assignees_json TEXT NOT NULL DEFAULT '[]',
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL,
    forge       TEXT NOT NULL,
    tombstone   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (binding_id, key)
);

CREATE INDEX IF NOT EXISTS idx_issues_state ON issues(binding_id, state);
CREATE INDEX IF NOT EXISTS idx_issues_tombstone ON issues(binding_id, tombstone);

CREATE TABLE IF NOT EXISTS pending_ops (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    binding_id TEXT NOT NULL,
    kind       TEXT NOT NULL,
    payload    BLOB NOT NULL,
    status     TEXT NOT NULL DEFAULT 'pending',
    notice     TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pending_ops_binding ON pending_ops(binding_id, id);

CREATE TABLE IF NOT EXISTS sync_state (
    binding_id      TEXT PRIMARY KEY,
    last_synced_at  DATETIME,
    last_row_count  INTEGER NOT NULL DEFAULT 0,
    cursor          TEXT NOT NULL DEFAULT '',
    needs_reauth    INTEGER NOT NULL DEFAULT 0,
    rate_limited_at DATETIME
);

CREATE TABLE IF NOT EXISTS worktree_issues (
    git_dir    TEXT PRIMARY KEY,
    binding_id TEXT NOT NULL,
    issue_key  TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
