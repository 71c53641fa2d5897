// ABOUTME: SQLite database schema for conversation history
// ABOUTME: One append-only table of session turns
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Session turns (one row per user or assistant message)
CREATE TABLE IF NOT EXISTS session_turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id, id);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
