package storage

const schemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT    PRIMARY KEY,
	contract    TEXT    NOT NULL DEFAULT '',
	base_url    TEXT    NOT NULL DEFAULT '',
	started_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
	finished_at TEXT,
	total       INTEGER NOT NULL DEFAULT 0,
	success     INTEGER NOT NULL DEFAULT 0,
	warnings    INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS test_cases (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	test_id           TEXT    NOT NULL,
	fuzzer            TEXT    NOT NULL DEFAULT '',
	scenario          TEXT    NOT NULL DEFAULT '',
	expected_result   TEXT    NOT NULL DEFAULT '',
	path              TEXT    NOT NULL DEFAULT '',
	full_request_path TEXT    NOT NULL DEFAULT '',
	method            TEXT    NOT NULL DEFAULT '',
	status_code       INTEGER NOT NULL DEFAULT 0,
	request           TEXT    NOT NULL DEFAULT '{}',
	response          TEXT    NOT NULL DEFAULT '{}',
	result            TEXT    NOT NULL,
	result_details    TEXT    NOT NULL DEFAULT '',
	body_diff         TEXT    NOT NULL DEFAULT '',
	started_at        TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE INDEX IF NOT EXISTS idx_test_cases_run_id ON test_cases(run_id, id);
CREATE INDEX IF NOT EXISTS idx_test_cases_result ON test_cases(run_id, result);
`

// migrations holds incremental schema changes after the initial schema.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 2,
		sql: `
ALTER TABLE test_cases ADD COLUMN body_diff TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_test_cases_result ON test_cases(run_id, result);
`,
	},
}
