package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/threads/domain"
)

// SQLiteStore implements Store using SQLite.
//
// Appends for one session are serialized by a per-session mutex so the
// sequence number and timestamp assignment stay monotonic. Operations on
// different sessions share no lock.
type SQLiteStore struct {
	db        *sql.DB
	idleAfter time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	expireMu sync.Mutex
	expireFn func(*domain.Session)

	now func() time.Time
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{
		db:        db,
		idleAfter: opts.InactivityThreshold,
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
	if store.idleAfter <= 0 {
		store.idleAfter = 24 * time.Hour
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			credential_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			topic TEXT,
			created_at_ns INTEGER NOT NULL,
			last_message_at_ns INTEGER,
			message_count INTEGER NOT NULL DEFAULT 0,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_credential ON sessions(credential_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, last_message_at_ns)`,
		`CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ns INTEGER NOT NULL,
			tool_call_id TEXT,
			metadata TEXT,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OnExpire registers the expiry hook.
func (s *SQLiteStore) OnExpire(fn func(*domain.Session)) {
	s.expireMu.Lock()
	defer s.expireMu.Unlock()
	s.expireFn = fn
}

func (s *SQLiteStore) notifyExpired(session *domain.Session) {
	s.expireMu.Lock()
	fn := s.expireFn
	s.expireMu.Unlock()
	if fn != nil {
		fn(session)
	}
}

// sessionLock returns the mutex serializing appends for one session.
func (s *SQLiteStore) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[sessionID] = mu
	}
	return mu
}

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	var metadata sql.NullString
	if session.Metadata != nil {
		metadata = sql.NullString{String: string(session.Metadata), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, credential_id, status, created_at_ns, message_count, metadata)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		session.ID, session.CredentialID, session.Status, session.CreatedAt.UnixNano(), metadata)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session, applying the lazy expiry check: an
// ACTIVE session past the inactivity threshold is transitioned to
// EXPIRED before it is returned.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.readSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.expireIfIdle(ctx, session) {
		s.notifyExpired(session)
	}
	return session, nil
}

func (s *SQLiteStore) readSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, credential_id, status, topic, created_at_ns, last_message_at_ns, message_count, metadata
		 FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var topic, metadata sql.NullString
	var createdNS int64
	var lastNS sql.NullInt64
	err := row.Scan(&session.ID, &session.CredentialID, &session.Status, &topic,
		&createdNS, &lastNS, &session.MessageCount, &metadata)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	session.CreatedAt = time.Unix(0, createdNS).UTC()
	if lastNS.Valid {
		t := time.Unix(0, lastNS.Int64).UTC()
		session.LastMessageAt = &t
	}
	if topic.Valid {
		session.Topic = topic.String
	}
	if metadata.Valid {
		session.Metadata = []byte(metadata.String)
	}
	return &session, nil
}

// expireIfIdle applies ACTIVE -> EXPIRED when the inactivity threshold
// has passed. The UPDATE is guarded on status so the transition commits
// exactly once no matter how many readers race on it. Returns true only
// for the caller that applied it.
func (s *SQLiteStore) expireIfIdle(ctx context.Context, session *domain.Session) bool {
	if session.Status != domain.SessionStatusActive {
		return false
	}
	if s.now().Sub(session.IdleSince()) <= s.idleAfter {
		return false
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE session_id = ? AND status = ?`,
		domain.SessionStatusExpired, session.ID, domain.SessionStatusActive)
	session.Status = domain.SessionStatusExpired
	if err != nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n == 1
}

// CloseSession forces CLOSED. Idempotent: closing a session that already
// left ACTIVE reports false with no error, and nothing ever transitions
// out of CLOSED.
func (s *SQLiteStore) CloseSession(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.readSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session.Status == domain.SessionStatusClosed {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE session_id = ? AND status != ?`,
		domain.SessionStatusClosed, sessionID, domain.SessionStatusClosed)
	if err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// The slot is only held while ACTIVE; an EXPIRED session already
	// released it.
	return n == 1 && session.Status == domain.SessionStatusActive, nil
}

// SetTopic records the derived topic. Only the first write wins; the
// topic is immutable once set.
func (s *SQLiteStore) SetTopic(ctx context.Context, sessionID, topic string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET topic = ? WHERE session_id = ? AND (topic IS NULL OR topic = '')`,
		topic, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set topic: %w", err)
	}
	return nil
}

// ExpireIdle is the background sweep: it transitions every ACTIVE
// session past the inactivity threshold and returns how many it moved.
func (s *SQLiteStore) ExpireIdle(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.idleAfter).UnixNano()
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, credential_id, status, topic, created_at_ns, last_message_at_ns, message_count, metadata
		 FROM sessions
		 WHERE status = ? AND COALESCE(last_message_at_ns, created_at_ns) < ?`,
		domain.SessionStatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query idle sessions: %w", err)
	}

	var candidates []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		candidates = append(candidates, session)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	expired := 0
	for _, session := range candidates {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET status = ? WHERE session_id = ? AND status = ?`,
			domain.SessionStatusExpired, session.ID, domain.SessionStatusActive)
		if err != nil {
			return expired, fmt.Errorf("failed to expire session %s: %w", session.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			// Lost the race to a lazy check or an append refreshed it.
			continue
		}
		session.Status = domain.SessionStatusExpired
		s.notifyExpired(session)
		expired++
	}
	return expired, nil
}

// AppendMessage appends a message to a session's log. It assigns the
// next sequence number and a timestamp no earlier than the previous
// message's, bumps message_count and last_message_at, and commits all of
// it atomically. Fails with ErrSessionNotActive for EXPIRED/CLOSED
// sessions, including those that cross the threshold on this call.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *domain.Message) (*domain.Message, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.readSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.expireIfIdle(ctx, session) {
		s.notifyExpired(session)
	}
	if !session.Status.Writable() {
		return nil, domain.ErrSessionNotActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	var lastSeq, lastNS int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(created_at_ns), 0) FROM messages WHERE session_id = ?`,
		sessionID).Scan(&lastSeq, &lastNS)
	if err != nil {
		return nil, fmt.Errorf("failed to read log tail: %w", err)
	}

	// Monotonicity: if the clock stepped backward, nudge past the
	// previous message instead.
	ts := s.now().UnixNano()
	if ts <= lastNS {
		ts = lastNS + 1
	}

	stored := *msg
	stored.ID = lastSeq + 1
	stored.SessionID = sessionID
	stored.CreatedAt = time.Unix(0, ts).UTC()

	var toolCallID, metadata sql.NullString
	if stored.ToolCallID != "" {
		toolCallID = sql.NullString{String: stored.ToolCallID, Valid: true}
	}
	if stored.Metadata != nil {
		metadata = sql.NullString{String: string(stored.Metadata), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, type, content, created_at_ns, tool_call_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, stored.ID, stored.Type, stored.Content, ts, toolCallID, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1, last_message_at_ns = ? WHERE session_id = ?`,
		ts, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to update session counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}
	return &stored, nil
}

// RangeMessages returns one page of a session's log. Cursors compare on
// the message id alone, so concurrent tail appends never re-return or
// skip rows within one direction of traversal.
func (s *SQLiteStore) RangeMessages(ctx context.Context, sessionID string, q domain.RangeQuery) ([]domain.Message, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT seq, type, content, created_at_ns, tool_call_id, metadata FROM messages WHERE session_id = ?`
	args := []interface{}{sessionID}

	// After takes precedence when both cursors are given.
	switch {
	case q.After > 0:
		query += ` AND seq > ?`
		args = append(args, q.After)
	case q.Before > 0:
		query += ` AND seq < ?`
		args = append(args, q.Before)
	}

	if q.Order == domain.OrderDesc {
		query += ` ORDER BY seq DESC`
	} else {
		query += ` ORDER BY seq ASC`
	}
	query += fmt.Sprintf(" LIMIT %d", q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var createdNS int64
		var toolCallID, metadata sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Type, &msg.Content, &createdNS, &toolCallID, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.SessionID = sessionID
		msg.CreatedAt = time.Unix(0, createdNS).UTC()
		if toolCallID.Valid {
			msg.ToolCallID = toolCallID.String
		}
		if metadata.Valid {
			msg.Metadata = []byte(metadata.String)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
