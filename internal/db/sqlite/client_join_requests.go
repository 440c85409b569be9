package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

type joinRequestRow struct {
	ChatID     int64         `db:"chat_id"`
	UserID     int64         `db:"user_id"`
	UserChatID int64         `db:"user_chat_id"`
	Status     string        `db:"status"`
	Questions  db.StringList `db:"questions"`
	Answers    db.StringList `db:"answers"`
	CreatedAt  int64         `db:"created_at"`
	ExpiresAt  sql.NullInt64 `db:"expires_at"`
}

func (r *joinRequestRow) toJoinRequest() *db.JoinRequest {
	req := &db.JoinRequest{
		ChatID:     r.ChatID,
		UserID:     r.UserID,
		UserChatID: r.UserChatID,
		Status:     db.JoinRequestStatus(r.Status),
		Questions:  []string(r.Questions),
		Answers:    []string(r.Answers),
		CreatedAt:  time.Unix(r.CreatedAt, 0),
	}
	if r.ExpiresAt.Valid {
		expiresAt := time.Unix(r.ExpiresAt.Int64, 0)
		req.ExpiresAt = &expiresAt
	}
	return req
}

const joinRequestColumns = `chat_id, user_id, user_chat_id, status, questions, answers, created_at, expires_at`

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// UpsertJoinRequest opens a new pending request cycle for the member, dropping any earlier answers.
func (c *sqliteClient) UpsertJoinRequest(ctx context.Context, req *db.JoinRequest) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `
		INSERT INTO join_requests (` + joinRequestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			user_chat_id = excluded.user_chat_id,
			status = excluded.status,
			questions = excluded.questions,
			answers = excluded.answers,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`
	_, err := c.db.ExecContext(ctx, query,
		req.ChatID,
		req.UserID,
		req.UserChatID,
		string(db.JoinRequestPending),
		db.StringList(req.Questions),
		db.StringList{},
		createdAt.Unix(),
		nullUnix(req.ExpiresAt),
	)
	return err
}

func (c *sqliteClient) getJoinRequest(ctx context.Context, chatID, userID int64) (*db.JoinRequest, error) {
	var row joinRequestRow
	err := c.db.GetContext(ctx, &row,
		`SELECT `+joinRequestColumns+` FROM join_requests WHERE chat_id = ? AND user_id = ?`,
		chatID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toJoinRequest(), nil
}

func (c *sqliteClient) GetJoinRequest(ctx context.Context, chatID, userID int64) (*db.JoinRequest, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.getJoinRequest(ctx, chatID, userID)
}

func (c *sqliteClient) StoreJoinAnswers(ctx context.Context, chatID, userID int64, answers []string) (*db.JoinRequest, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx,
		`UPDATE join_requests SET answers = ? WHERE chat_id = ? AND user_id = ?`,
		db.StringList(answers), chatID, userID,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return c.getJoinRequest(ctx, chatID, userID)
}

// SetJoinRequestStatus moves a request along pending -> approved|rejected. Leaving
// pending clears the expiry.
func (c *sqliteClient) SetJoinRequestStatus(ctx context.Context, chatID, userID int64, status db.JoinRequestStatus) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	current, err := c.getJoinRequest(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("join request %d/%d: %w", chatID, userID, ngerrors.ErrNotFound)
	}
	if !current.Status.CanTransition(status) {
		return fmt.Errorf("join request %d/%d %s -> %s: %w", chatID, userID, current.Status, status, ngerrors.ErrInvalidTransition)
	}
	query := `UPDATE join_requests SET status = ? WHERE chat_id = ? AND user_id = ?`
	if status != db.JoinRequestPending {
		query = `UPDATE join_requests SET status = ?, expires_at = NULL WHERE chat_id = ? AND user_id = ?`
	}
	_, err = c.db.ExecContext(ctx, query, string(status), chatID, userID)
	return err
}

func (c *sqliteClient) ListPendingJoinRequests(ctx context.Context, chatID int64) ([]*db.JoinRequest, error) {
	return c.selectJoinRequests(ctx,
		`SELECT `+joinRequestColumns+` FROM join_requests WHERE chat_id = ? AND status = ? ORDER BY created_at ASC`,
		chatID, string(db.JoinRequestPending),
	)
}

func (c *sqliteClient) GetExpiredJoinRequests(ctx context.Context, now time.Time) ([]*db.JoinRequest, error) {
	return c.selectJoinRequests(ctx,
		`SELECT `+joinRequestColumns+` FROM join_requests WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ? ORDER BY expires_at ASC`,
		string(db.JoinRequestPending), now.Unix(),
	)
}

func (c *sqliteClient) selectJoinRequests(ctx context.Context, query string, args ...interface{}) ([]*db.JoinRequest, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var rows []joinRequestRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	requests := make([]*db.JoinRequest, 0, len(rows))
	for i := range rows {
		requests = append(requests, rows[i].toJoinRequest())
	}
	return requests, nil
}

func (c *sqliteClient) DeleteJoinRequest(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM join_requests WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}
