package storage

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"pulsehr/module/chat/model"
	"pulsehr/tools/errs"
)

// PgStore is the Postgres-backed MessageStore. Message ids are SERIAL in
// the table and converted to canonical strings at this boundary; nothing
// above storage ever sees a numeric id.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// OpenPool connects a pgxpool from a connection string.
func OpenPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return pool, nil
}

// InitSchema creates the messages table if missing. The users table is
// owned by the HR side of the platform; only the columns the recent
// conversations projection joins on are assumed (id, fullname, email).
func (s *PgStore) InitSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS messages (
		id          SERIAL PRIMARY KEY,
		sender_id   INTEGER NOT NULL,
		receiver_id INTEGER NOT NULL,
		message     TEXT NOT NULL,
		status      VARCHAR(20) DEFAULT 'sent',
		is_edited   BOOLEAN DEFAULT FALSE,
		is_deleted  BOOLEAN DEFAULT FALSE,
		created_at  TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_pair
		ON messages (sender_id, receiver_id, created_at);`
	_, err := s.pool.Exec(ctx, ddl)
	return errors.Wrap(err, "init messages schema")
}

func (s *PgStore) Create(ctx context.Context, senderID, receiverID, text string) (*model.Message, error) {
	const q = `
		INSERT INTO messages (sender_id, receiver_id, message, status)
		VALUES ($1, $2, $3, 'sent')
		RETURNING id, sender_id, receiver_id, message, status, is_edited, is_deleted, created_at`
	row := s.pool.QueryRow(ctx, q, senderID, receiverID, text)
	m, err := scanMessage(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	return m, nil
}

func (s *PgStore) Get(ctx context.Context, id string) (*model.Message, error) {
	const q = `
		SELECT id, sender_id, receiver_id, message, status, is_edited, is_deleted, created_at
		FROM messages WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrRecordNotFound.WithDetail("message " + id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get message")
	}
	return m, nil
}

func (s *PgStore) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Message, error) {
	if !status.Valid() {
		return nil, errs.ErrArgs.WithDetail("status " + string(status))
	}
	const q = `
		UPDATE messages SET status = $1 WHERE id = $2
		RETURNING id, sender_id, receiver_id, message, status, is_edited, is_deleted, created_at`
	row := s.pool.QueryRow(ctx, q, string(status), id)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrRecordNotFound.WithDetail("message " + id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	return m, nil
}

func (s *PgStore) Edit(ctx context.Context, id, text string) (*model.Message, error) {
	const q = `
		UPDATE messages SET message = $1, is_edited = TRUE WHERE id = $2
		RETURNING id, sender_id, receiver_id, message, status, is_edited, is_deleted, created_at`
	row := s.pool.QueryRow(ctx, q, text, id)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrRecordNotFound.WithDetail("message " + id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "edit message")
	}
	return m, nil
}

func (s *PgStore) SoftDelete(ctx context.Context, id string) (*model.Message, error) {
	const q = `
		UPDATE messages SET is_deleted = TRUE, message = '' WHERE id = $1
		RETURNING id, sender_id, receiver_id, message, status, is_edited, is_deleted, created_at`
	row := s.pool.QueryRow(ctx, q, id)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrRecordNotFound.WithDetail("message " + id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "soft delete message")
	}
	return m, nil
}

func (s *PgStore) History(ctx context.Context, userA, userB string) ([]*model.Message, error) {
	const q = `
		SELECT id, sender_id, receiver_id, message, status, is_edited, is_deleted, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, q, userA, userB)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan history row")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "history rows")
}

func (s *PgStore) RecentConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	const q = `
		SELECT DISTINCT ON (other_user_id)
			other_user_id,
			u.fullname,
			u.email,
			CASE WHEN m.is_deleted THEN $2 ELSE m.message END,
			m.created_at,
			m.status,
			m.sender_id
		FROM (
			SELECT
				CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS other_user_id,
				message, created_at, is_deleted, status, sender_id
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		) m
		JOIN users u ON u.id = m.other_user_id
		ORDER BY other_user_id, m.created_at DESC`
	rows, err := s.pool.Query(ctx, q, userID, model.DeletedPlaceholder)
	if err != nil {
		return nil, errors.Wrap(err, "query recent conversations")
	}
	defer rows.Close()

	var out []*model.Conversation
	for rows.Next() {
		var (
			otherID  int64
			senderID int64
			status   string
			c        model.Conversation
		)
		if err := rows.Scan(&otherID, &c.Name, &c.Role, &c.LastMessage, &c.LastAt, &status, &senderID); err != nil {
			return nil, errors.Wrap(err, "scan conversation row")
		}
		c.UserID = strconv.FormatInt(otherID, 10)
		c.LastSenderID = strconv.FormatInt(senderID, 10)
		c.Status = model.Status(status)
		// unread: the counterpart spoke last and we have not read it
		c.Unread = c.LastSenderID == c.UserID && c.Status != model.StatusRead
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "conversation rows")
	}

	// newest conversation first, matching the UI ordering
	sortConversations(out)
	return out, nil
}

func sortConversations(cs []*model.Conversation) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].LastAt.After(cs[j].LastAt) })
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (*model.Message, error) {
	var (
		id       int64
		sender   int64
		receiver int64
		status   string
		m        model.Message
		created  time.Time
	)
	if err := r.Scan(&id, &sender, &receiver, &m.Text, &status, &m.IsEdited, &m.IsDeleted, &created); err != nil {
		return nil, err
	}
	m.ID = strconv.FormatInt(id, 10)
	m.SenderID = strconv.FormatInt(sender, 10)
	m.ReceiverID = strconv.FormatInt(receiver, 10)
	m.Status = model.Status(status)
	m.CreatedAt = created.UTC()
	return &m, nil
}
