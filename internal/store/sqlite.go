package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/deskagent/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		model TEXT NOT NULL,
		provider TEXT NOT NULL,
		system_prompt TEXT,
		max_tokens INTEGER NOT NULL,
		vnc_display TEXT,
		vnc_port INTEGER,
		vnc_password TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		last_activity INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, last_activity);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		message_type TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata_json TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (session_id, title, status, model, provider, system_prompt,
		max_tokens, vnc_display, vnc_port, vnc_password, created_at, updated_at, last_activity)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.Title, string(session.Status), session.Model, session.Provider,
		nullString(session.SystemPrompt), session.MaxTokens,
		nullString(session.VNCDisplay), nullInt(session.VNCPort), nullString(session.VNCPassword),
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(), session.LastActivity.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `session_id, title, status, model, provider, system_prompt,
	max_tokens, vnc_display, vnc_port, vnc_password, created_at, updated_at, last_activity`

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = ?`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions ordered by creation time, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, status *domain.SessionStatus, limit, offset int) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer closeRows(rows, "sessions")

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

// UpdateSession applies a partial update.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) (*domain.Session, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().Unix()}

	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.SystemPrompt != nil {
		sets = append(sets, "system_prompt = ?")
		args = append(args, *upd.SystemPrompt)
	}
	if upd.MaxTokens != nil {
		sets = append(sets, "max_tokens = ?")
		args = append(args, *upd.MaxTokens)
	}

	query := `UPDATE sessions SET ` + strings.Join(sets, ", ") + ` WHERE session_id = ?`
	args = append(args, sessionID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}
	return s.GetSession(ctx, sessionID)
}

// DeleteSession removes a session and all of its messages.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback session delete", "error", rollbackErr)
		}
	}()

	msgResult, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session messages: %w", err)
	}

	sessResult, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit session delete: %w", err)
	}

	msgCount, _ := msgResult.RowsAffected()
	sessCount, err := sessResult.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	slog.Info("Session deleted", "session_id", sessionID, "messages_deleted", msgCount)
	return sessCount > 0, nil
}

// TouchSession updates the session's last-activity timestamp.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE session_id = ?`, at.Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("TouchSession affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// ExpireIdleSessions marks stale active sessions inactive and returns their IDs.
func (s *SQLiteStore) ExpireIdleSessions(ctx context.Context, ttl time.Duration) ([]string, error) {
	threshold := time.Now().Add(-ttl).Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions WHERE status = ? AND last_activity < ?`,
		string(domain.SessionStatusActive), threshold)
	if err != nil {
		return nil, fmt.Errorf("query idle sessions: %w", err)
	}
	defer closeRows(rows, "idle sessions")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan idle session row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idle session rows: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE status = ? AND last_activity < ?`,
		string(domain.SessionStatusInactive), time.Now().Unix(),
		string(domain.SessionStatusActive), threshold)
	if err != nil {
		return nil, fmt.Errorf("expire idle sessions: %w", err)
	}
	return ids, nil
}

// CreateMessage appends a message to a session's history.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, message_type, content, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.SessionID, string(msg.Role), string(msg.Type), msg.Content,
		nullString(msg.MetadataJSON), msg.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get message id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages returns a session's messages in creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, message_type, content, metadata_json, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var role, msgType string
		var metadata sql.NullString
		var createdAt int64

		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msgType, &msg.Content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		msg.Type = domain.MessageType(msgType)
		msg.MetadataJSON = metadata.String
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var status string
	var systemPrompt, vncDisplay, vncPassword sql.NullString
	var vncPort sql.NullInt64
	var createdAt, updatedAt, lastActivity int64

	err := row.Scan(
		&session.ID, &session.Title, &status, &session.Model, &session.Provider,
		&systemPrompt, &session.MaxTokens, &vncDisplay, &vncPort, &vncPassword,
		&createdAt, &updatedAt, &lastActivity,
	)
	if err != nil {
		return nil, err
	}

	session.Status = domain.SessionStatus(status)
	session.SystemPrompt = systemPrompt.String
	session.VNCDisplay = vncDisplay.String
	session.VNCPort = int(vncPort.Int64)
	session.VNCPassword = vncPassword.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	session.LastActivity = time.Unix(lastActivity, 0)
	return &session, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}
