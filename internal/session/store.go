// Package session implements the durable session store and crash-recovery
// helpers: a SQLite metadata index paired with an append-only per-session
// JSONL message log.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ringo380/agentik/pkg/models"
)

// ErrSessionNotFound is returned when a session id has no matching row.
var ErrSessionNotFound = errors.New("session: not found")

const schemaVersion = 1

// Store backs the durable sessions directory:
//
//	<base>/sessions.db                     — metadata index
//	<base>/sessions/<session_id>/messages.jsonl — per-session append log
type Store struct {
	db      *sql.DB
	baseDir string
	locker  *Locker

	stmtInsertSession   *sql.Stmt
	stmtGetSession      *sql.Stmt
	stmtUpdateMetadata  *sql.Stmt
	stmtDeleteSession   *sql.Stmt
	stmtInsertTag       *sql.Stmt
	stmtDeleteTags      *sql.Stmt
	stmtGetTags         *sql.Stmt
	stmtInsertMsgIndex  *sql.Stmt
	stmtGetMsgIndex     *sql.Stmt
	stmtTouchSession    *sql.Stmt
	stmtSetState        *sql.Stmt
	stmtApplyCompaction *sql.Stmt
	stmtMostRecent      *sql.Stmt
}

// sessionRow mirrors the sessions table's columns, used to scan before
// reassembling a models.SessionMetadata.
type sessionRow struct {
	id               string
	version          int
	state            string
	workingDirectory string
	title            sql.NullString
	parentSessionID  sql.NullString
	createdAt        time.Time
	updatedAt        time.Time
	lastActiveAt     time.Time
	gitContext       sql.NullString
	metrics          string
	modelConfig      string
	compactBoundary  int
	summary          sql.NullString
	messageFile      string
	messageCount     int
}

// Open creates or opens the session store rooted at baseDir, creating the
// schema on first use.
func Open(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("session: base dir is required")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "sessions"), 0o755); err != nil {
		return nil, fmt.Errorf("session: create sessions dir: %w", err)
	}

	dbPath := filepath.Join(baseDir, "sessions.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 + WAL: serialize writers through one *sql.DB connection

	s := &Store{db: db, baseDir: baseDir, locker: NewLocker(DefaultLockTimeout)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			state TEXT NOT NULL,
			working_directory TEXT NOT NULL,
			title TEXT,
			parent_session_id TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_active_at TIMESTAMP NOT NULL,
			git_context TEXT,
			metrics TEXT NOT NULL,
			model_config TEXT NOT NULL,
			compact_boundary INTEGER NOT NULL DEFAULT 0,
			summary TEXT,
			message_file TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS session_tags (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			UNIQUE(session_id, tag)
		)`,
		`CREATE TABLE IF NOT EXISTS message_index (
			session_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			role TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			file_offset INTEGER NOT NULL,
			byte_length INTEGER NOT NULL,
			token_count INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_index_session ON message_index(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active_at)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS session_fts USING fts5(session_id UNINDEXED, title, content)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			// fts5 is an optional build tag of mattn/go-sqlite3 (sqlite_fts5);
			// degrade gracefully rather than fail the whole store when it's
			// unavailable, since full-text search is explicitly optional (§4.E).
			if strings.Contains(stmt, "VIRTUAL TABLE") {
				continue
			}
			return fmt.Errorf("session: migrate: %w", err)
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("session: read schema_version: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec(`INSERT INTO schema_version(version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("session: seed schema_version: %w", err)
		}
	}
	return nil
}

func (s *Store) prepareStatements() error {
	var err error
	prep := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = s.db.Prepare(query)
	}

	prep(&s.stmtInsertSession, `
		INSERT INTO sessions (id, version, state, working_directory, title, parent_session_id,
			created_at, updated_at, last_active_at, git_context, metrics, model_config,
			compact_boundary, summary, message_file, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	prep(&s.stmtGetSession, `
		SELECT id, version, state, working_directory, title, parent_session_id,
			created_at, updated_at, last_active_at, git_context, metrics, model_config,
			compact_boundary, summary, message_file, message_count
		FROM sessions WHERE id = ?
	`)
	prep(&s.stmtUpdateMetadata, `
		UPDATE sessions SET version = ?, state = ?, working_directory = ?, title = ?,
			parent_session_id = ?, updated_at = ?, last_active_at = ?, git_context = ?,
			metrics = ?, model_config = ?
		WHERE id = ?
	`)
	prep(&s.stmtDeleteSession, `DELETE FROM sessions WHERE id = ?`)
	prep(&s.stmtInsertTag, `INSERT OR IGNORE INTO session_tags(session_id, tag) VALUES (?, ?)`)
	prep(&s.stmtDeleteTags, `DELETE FROM session_tags WHERE session_id = ?`)
	prep(&s.stmtGetTags, `SELECT tag FROM session_tags WHERE session_id = ?`)
	prep(&s.stmtInsertMsgIndex, `
		INSERT INTO message_index(session_id, message_id, role, timestamp, file_offset, byte_length, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	prep(&s.stmtGetMsgIndex, `
		SELECT message_id, role, timestamp, file_offset, byte_length, token_count
		FROM message_index WHERE session_id = ? ORDER BY file_offset ASC
	`)
	prep(&s.stmtTouchSession, `UPDATE sessions SET last_active_at = ? WHERE id = ?`)
	prep(&s.stmtSetState, `UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`)
	prep(&s.stmtApplyCompaction, `UPDATE sessions SET summary = ?, compact_boundary = ?, updated_at = ? WHERE id = ?`)
	prep(&s.stmtMostRecent, `SELECT id FROM sessions ORDER BY last_active_at DESC LIMIT 1`)

	if err != nil {
		return fmt.Errorf("session: prepare statements: %w", err)
	}
	return nil
}

// Close releases the database handle and prepared statements.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.baseDir, "sessions", id)
}

func (s *Store) messagesPath(id string) string {
	return filepath.Join(s.sessionDir(id), "messages.jsonl")
}

// Create persists a new session's metadata and creates its message log
// directory. The session must not already exist.
func (s *Store) Create(ctx context.Context, sess *models.Session) error {
	if sess.Metadata.ID == "" {
		return errors.New("session: id is required")
	}
	if err := os.MkdirAll(s.sessionDir(sess.Metadata.ID), 0o755); err != nil {
		return fmt.Errorf("session: create session dir: %w", err)
	}

	meta := sess.Metadata
	gitContext, err := marshalPtr(meta.GitContext)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return fmt.Errorf("session: marshal metrics: %w", err)
	}
	modelConfig, err := json.Marshal(meta.ModelConfig)
	if err != nil {
		return fmt.Errorf("session: marshal model_config: %w", err)
	}
	var summary []byte
	if sess.Summary != nil {
		if summary, err = json.Marshal(sess.Summary); err != nil {
			return fmt.Errorf("session: marshal summary: %w", err)
		}
	}

	_, err = s.stmtInsertSession.ExecContext(ctx,
		meta.ID, meta.Version, string(meta.State), meta.WorkingDirectory, meta.Title, meta.ParentSessionID,
		meta.CreatedAt, meta.UpdatedAt, meta.LastActiveAt, nullableString(gitContext), string(metrics), string(modelConfig),
		sess.CompactBoundary, nullableString(summary), s.messagesPath(meta.ID), len(sess.Messages),
	)
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	for _, tag := range meta.Tags {
		if _, err := s.stmtInsertTag.ExecContext(ctx, meta.ID, tag); err != nil {
			return fmt.Errorf("session: insert tag: %w", err)
		}
	}

	for _, msg := range sess.Messages {
		if _, _, err := s.AppendMessage(ctx, meta.ID, msg); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a session's metadata and full message history.
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.GetMessages(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	summary, boundary, err := s.readSummaryAndBoundary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		Metadata:        *meta,
		Messages:        messages,
		Summary:         summary,
		CompactBoundary: boundary,
	}, nil
}

func (s *Store) readSummaryAndBoundary(ctx context.Context, id string) (*models.CompactedSummary, int, error) {
	var summary sql.NullString
	var boundary int
	err := s.db.QueryRowContext(ctx, `SELECT summary, compact_boundary FROM sessions WHERE id = ?`, id).Scan(&summary, &boundary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrSessionNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("session: read summary: %w", err)
	}
	if !summary.Valid || summary.String == "" {
		return nil, boundary, nil
	}
	var out models.CompactedSummary
	if err := json.Unmarshal([]byte(summary.String), &out); err != nil {
		return nil, boundary, fmt.Errorf("session: unmarshal summary: %w", err)
	}
	return &out, boundary, nil
}

// GetMetadata loads only a session's metadata row.
func (s *Store) GetMetadata(ctx context.Context, id string) (*models.SessionMetadata, error) {
	row := sessionRow{}
	err := s.stmtGetSession.QueryRowContext(ctx, id).Scan(
		&row.id, &row.version, &row.state, &row.workingDirectory, &row.title, &row.parentSessionID,
		&row.createdAt, &row.updatedAt, &row.lastActiveAt, &row.gitContext, &row.metrics, &row.modelConfig,
		&row.compactBoundary, &row.summary, &row.messageFile, &row.messageCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get metadata: %w", err)
	}

	tagRows, err := s.stmtGetTags.QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: get tags: %w", err)
	}
	defer tagRows.Close()
	var tags []string
	for tagRows.Next() {
		var tag string
		if err := tagRows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return rowToMetadata(row, tags)
}

func rowToMetadata(row sessionRow, tags []string) (*models.SessionMetadata, error) {
	meta := &models.SessionMetadata{
		ID:               row.id,
		Version:          row.version,
		State:            models.SessionState(row.state),
		WorkingDirectory: row.workingDirectory,
		Title:            row.title.String,
		Tags:             tags,
		ParentSessionID:  row.parentSessionID.String,
		CreatedAt:        row.createdAt,
		UpdatedAt:        row.updatedAt,
		LastActiveAt:     row.lastActiveAt,
	}
	if row.gitContext.Valid && row.gitContext.String != "" {
		var gc models.GitContext
		if err := json.Unmarshal([]byte(row.gitContext.String), &gc); err != nil {
			return nil, fmt.Errorf("session: unmarshal git_context: %w", err)
		}
		meta.GitContext = &gc
	}
	if err := json.Unmarshal([]byte(row.metrics), &meta.Metrics); err != nil {
		return nil, fmt.Errorf("session: unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(row.modelConfig), &meta.ModelConfig); err != nil {
		return nil, fmt.Errorf("session: unmarshal model_config: %w", err)
	}
	return meta, nil
}

// UpdateMetadata persists metadata field changes (not messages).
func (s *Store) UpdateMetadata(ctx context.Context, meta models.SessionMetadata) error {
	gitContext, err := marshalPtr(meta.GitContext)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return fmt.Errorf("session: marshal metrics: %w", err)
	}
	modelConfig, err := json.Marshal(meta.ModelConfig)
	if err != nil {
		return fmt.Errorf("session: marshal model_config: %w", err)
	}

	return s.locker.WithLock(ctx, meta.ID, func() error {
		res, err := s.stmtUpdateMetadata.ExecContext(ctx,
			meta.Version, string(meta.State), meta.WorkingDirectory, meta.Title, meta.ParentSessionID,
			meta.UpdatedAt, meta.LastActiveAt, nullableString(gitContext), string(metrics), string(modelConfig),
			meta.ID,
		)
		if err != nil {
			return fmt.Errorf("session: update metadata: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrSessionNotFound
		}

		if _, err := s.stmtDeleteTags.ExecContext(ctx, meta.ID); err != nil {
			return fmt.Errorf("session: clear tags: %w", err)
		}
		for _, tag := range meta.Tags {
			if _, err := s.stmtInsertTag.ExecContext(ctx, meta.ID, tag); err != nil {
				return fmt.Errorf("session: insert tag: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a session's metadata, tags, index rows, and its on-disk
// message directory.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.locker.WithLock(ctx, id, func() error {
		if _, err := s.stmtDeleteTags.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("session: delete tags: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM message_index WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("session: delete message index: %w", err)
		}
		res, err := s.stmtDeleteSession.ExecContext(ctx, id)
		if err != nil {
			return fmt.Errorf("session: delete: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrSessionNotFound
		}
		if err := os.RemoveAll(s.sessionDir(id)); err != nil {
			return fmt.Errorf("session: remove session dir: %w", err)
		}
		return nil
	})
}

// SessionQuery filters and paginates List results.
type SessionQuery struct {
	State            *models.SessionState
	WorkingDirectory string
	Tag              string
	FullTextSearch   string
	Limit            int
	Offset           int
}

// List returns sessions matching query, ordered by last_active_at DESC.
func (s *Store) List(ctx context.Context, query SessionQuery) ([]*models.SessionMetadata, error) {
	var (
		conditions []string
		args       []any
	)
	base := `SELECT DISTINCT sessions.id, sessions.version, sessions.state, sessions.working_directory,
		sessions.title, sessions.parent_session_id, sessions.created_at, sessions.updated_at,
		sessions.last_active_at, sessions.git_context, sessions.metrics, sessions.model_config,
		sessions.compact_boundary, sessions.summary, sessions.message_file, sessions.message_count
		FROM sessions`

	if query.Tag != "" {
		base += ` JOIN session_tags ON session_tags.session_id = sessions.id`
		conditions = append(conditions, "session_tags.tag = ?")
		args = append(args, query.Tag)
	}
	if query.FullTextSearch != "" {
		base += ` JOIN session_fts ON session_fts.session_id = sessions.id`
		conditions = append(conditions, "session_fts MATCH ?")
		args = append(args, query.FullTextSearch)
	}
	if query.State != nil {
		conditions = append(conditions, "sessions.state = ?")
		args = append(args, string(*query.State))
	}
	if query.WorkingDirectory != "" {
		conditions = append(conditions, "sessions.working_directory = ?")
		args = append(args, query.WorkingDirectory)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY sessions.last_active_at DESC"

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	base += " LIMIT ? OFFSET ?"
	args = append(args, limit, query.Offset)

	rows, err := s.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	var out []*models.SessionMetadata
	for rows.Next() {
		row := sessionRow{}
		if err := rows.Scan(
			&row.id, &row.version, &row.state, &row.workingDirectory, &row.title, &row.parentSessionID,
			&row.createdAt, &row.updatedAt, &row.lastActiveAt, &row.gitContext, &row.metrics, &row.modelConfig,
			&row.compactBoundary, &row.summary, &row.messageFile, &row.messageCount,
		); err != nil {
			return nil, err
		}
		tags, err := s.tagsFor(ctx, row.id)
		if err != nil {
			return nil, err
		}
		meta, err := rowToMetadata(row, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (s *Store) tagsFor(ctx context.Context, id string) ([]string, error) {
	rows, err := s.stmtGetTags.QueryContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// GetMostRecent returns the session with the highest last_active_at, or
// ErrSessionNotFound if the store is empty.
func (s *Store) GetMostRecent(ctx context.Context) (*models.SessionMetadata, error) {
	var id string
	if err := s.stmtMostRecent.QueryRowContext(ctx).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("session: get most recent: %w", err)
	}
	return s.GetMetadata(ctx, id)
}

// FindByPrefix returns up to 10 sessions whose id starts with prefix (§4.E
// prefix search: SQL LIKE 'prefix%' capped at 10 hits).
func (s *Store) FindByPrefix(ctx context.Context, prefix string) ([]*models.SessionMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE id LIKE ? ORDER BY last_active_at DESC LIMIT 10`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("session: find by prefix: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.SessionMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.GetMetadata(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// AppendMessage implements the §4.E append contract: open the JSONL for
// append, record the file offset, write the serialized message followed by
// a newline, flush, then insert the index row and bump message_count and
// last_active_at — all under the session's lock so offset capture and the
// index insert stay consistent with each other.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg models.Message) (offset int64, byteLength int, err error) {
	lockErr := s.locker.WithLock(ctx, sessionID, func() error {
		payload, marshalErr := json.Marshal(msg)
		if marshalErr != nil {
			return fmt.Errorf("session: marshal message: %w", marshalErr)
		}
		line := append(payload, '\n')

		f, openErr := os.OpenFile(s.messagesPath(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if openErr != nil {
			return fmt.Errorf("session: open message log: %w", openErr)
		}
		defer f.Close()

		info, statErr := f.Stat()
		if statErr != nil {
			return fmt.Errorf("session: stat message log: %w", statErr)
		}
		offset = info.Size()

		if _, writeErr := f.Write(line); writeErr != nil {
			return fmt.Errorf("session: write message: %w", writeErr)
		}
		if syncErr := f.Sync(); syncErr != nil {
			return fmt.Errorf("session: flush message log: %w", syncErr)
		}
		byteLength = len(payload)

		var tokenCount any
		if msg.TokenCount != nil {
			tokenCount = *msg.TokenCount
		}
		if _, execErr := s.stmtInsertMsgIndex.ExecContext(ctx, sessionID, msg.ID, string(msg.Role), msg.Timestamp, offset, byteLength, tokenCount); execErr != nil {
			return fmt.Errorf("session: insert message index: %w", execErr)
		}
		now := msg.Timestamp
		if now.IsZero() {
			now = time.Now()
		}
		if _, execErr := s.db.ExecContext(ctx, `UPDATE sessions SET message_count = message_count + 1, last_active_at = ? WHERE id = ?`, now, sessionID); execErr != nil {
			return fmt.Errorf("session: bump message_count: %w", execErr)
		}
		return nil
	})
	if lockErr != nil {
		return 0, 0, lockErr
	}
	return offset, byteLength, nil
}

// messageIndexEntry mirrors one message_index row.
type messageIndexEntry struct {
	messageID  string
	role       string
	timestamp  time.Time
	offset     int64
	byteLength int
}

// GetMessages reads messages from the JSONL log starting at position from
// (0-based into the ordered index), up to limit messages (0 = no limit).
// Readers tolerate a trailing partial line left by a crash mid-append.
func (s *Store) GetMessages(ctx context.Context, sessionID string, from int, limit int) ([]models.Message, error) {
	rows, err := s.stmtGetMsgIndex.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: read message index: %w", err)
	}
	defer rows.Close()

	var entries []messageIndexEntry
	for rows.Next() {
		var e messageIndexEntry
		var tokenCount sql.NullInt64
		if err := rows.Scan(&e.messageID, &e.role, &e.timestamp, &e.offset, &e.byteLength, &tokenCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if from < 0 {
		from = 0
	}
	if from >= len(entries) {
		return nil, nil
	}
	entries = entries[from:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	if len(entries) == 0 {
		return nil, nil
	}

	f, err := os.Open(s.messagesPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: open message log: %w", err)
	}
	defer f.Close()

	out := make([]models.Message, 0, len(entries))
	for _, e := range entries {
		buf := make([]byte, e.byteLength)
		if _, err := f.ReadAt(buf, e.offset); err != nil {
			if errors.Is(err, io.EOF) {
				// Trailing entry whose bytes never fully reached the log.
				break
			}
			return nil, fmt.Errorf("session: read message at offset %d: %w", e.offset, err)
		}
		var msg models.Message
		if err := json.Unmarshal(buf, &msg); err != nil {
			// Trailing partial line from a crash mid-append; stop rather
			// than surface a parse error to the caller.
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

// ApplyCompaction stores a new summary and boundary. A later summary
// supersedes and adopts the boundary, as §3.1 permits.
func (s *Store) ApplyCompaction(ctx context.Context, sessionID string, summary models.CompactedSummary, boundary int) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("session: marshal summary: %w", err)
	}
	return s.locker.WithLock(ctx, sessionID, func() error {
		res, execErr := s.stmtApplyCompaction.ExecContext(ctx, string(payload), boundary, time.Now(), sessionID)
		if execErr != nil {
			return fmt.Errorf("session: apply compaction: %w", execErr)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

// SetState transitions a session's lifecycle state (§3.2).
func (s *Store) SetState(ctx context.Context, sessionID string, state models.SessionState) error {
	return s.locker.WithLock(ctx, sessionID, func() error {
		res, err := s.stmtSetState.ExecContext(ctx, string(state), time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("session: set state: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

// Touch updates last_active_at to now.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	return s.locker.WithLock(ctx, sessionID, func() error {
		res, err := s.stmtTouchSession.ExecContext(ctx, time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("session: touch: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

// AggregatedStats summarizes usage across sessions for GetAggregatedStats.
type AggregatedStats struct {
	SessionCount    int
	TotalTokensIn   int64
	TotalTokensOut  int64
	TotalCostUSD    float64
	TotalToolCalls  int
	TotalTurnCount  int
}

// GetAggregatedStats sums metrics across sessions active since the given
// time (nil = all time).
func (s *Store) GetAggregatedStats(ctx context.Context, since *time.Time) (AggregatedStats, error) {
	query := `SELECT metrics FROM sessions`
	var args []any
	if since != nil {
		query += ` WHERE last_active_at >= ?`
		args = append(args, *since)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return AggregatedStats{}, fmt.Errorf("session: aggregated stats: %w", err)
	}
	defer rows.Close()

	var stats AggregatedStats
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return AggregatedStats{}, err
		}
		var m models.SessionMetrics
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return AggregatedStats{}, fmt.Errorf("session: unmarshal metrics: %w", err)
		}
		stats.SessionCount++
		stats.TotalTokensIn += m.TokensIn
		stats.TotalTokensOut += m.TokensOut
		stats.TotalCostUSD += m.CostUSD
		stats.TotalToolCalls += m.ToolCalls
		stats.TotalTurnCount += m.TurnCount
	}
	return stats, rows.Err()
}

func marshalPtr[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}
	return payload, nil
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
