// ABOUTME: Turn log operations for SQLite
// ABOUTME: Appends, loads, trims and deletes per-session conversation turns
package sqlite

import (
	"fmt"

	"github.com/harper/askdocs/internal/models"
)

// TurnStore handles turn persistence
type TurnStore struct {
	db *DB
}

// NewTurnStore creates a new TurnStore
func NewTurnStore(db *DB) *TurnStore {
	return &TurnStore{db: db}
}

// Append writes turns for a session in one transaction
func (s *TurnStore) Append(sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO session_turns (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, turn := range turns {
		if _, err := stmt.Exec(sessionID, string(turn.Role), turn.Text, turn.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	return tx.Commit()
}

// BySession returns the most recent limit turns of a session, oldest first.
// A limit <= 0 returns the full history.
func (s *TurnStore) BySession(sessionID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.query(`
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at
			FROM session_turns
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	turns := []models.Turn{}
	for rows.Next() {
		var (
			turn models.Turn
			role string
		)
		if err := rows.Scan(&role, &turn.Text, &turn.Timestamp); err != nil {
			return nil, err
		}
		turn.Role = models.Role(role)
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

// Trim deletes all but the newest keep turns of a session
func (s *TurnStore) Trim(sessionID string, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.exec(`
		DELETE FROM session_turns
		WHERE session_id = ? AND id NOT IN (
			SELECT id FROM session_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
		)
	`, sessionID, sessionID, keep)
	return err
}

// DeleteSession removes every turn of a session
func (s *TurnStore) DeleteSession(sessionID string) error {
	_, err := s.db.exec("DELETE FROM session_turns WHERE session_id = ?", sessionID)
	return err
}

// Sessions lists session ids that have stored turns
func (s *TurnStore) Sessions() ([]string, error) {
	rows, err := s.db.query("SELECT DISTINCT session_id FROM session_turns ORDER BY session_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored turns for a session
func (s *TurnStore) Count(sessionID string) (int, error) {
	var n int
	err := s.db.queryRow("SELECT COUNT(*) FROM session_turns WHERE session_id = ?", sessionID).Scan(&n)
	return n, err
}
