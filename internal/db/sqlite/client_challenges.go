package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
)

type captchaRow struct {
	ChatID    int64  `db:"chat_id"`
	UserID    int64  `db:"user_id"`
	Token     string `db:"correct_token"`
	Attempts  int    `db:"attempts"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

func (r *captchaRow) toCaptcha() *db.PendingCaptcha {
	return &db.PendingCaptcha{
		ChatID:    r.ChatID,
		UserID:    r.UserID,
		Token:     r.Token,
		Attempts:  r.Attempts,
		CreatedAt: time.Unix(r.CreatedAt, 0),
		ExpiresAt: time.Unix(r.ExpiresAt, 0),
	}
}

const captchaColumns = `chat_id, user_id, correct_token, attempts, created_at, expires_at`

// CreateCaptcha replaces any challenge already pending for the same chat member.
func (c *sqliteClient) CreateCaptcha(ctx context.Context, captcha *db.PendingCaptcha) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO pending_captchas (` + captchaColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			correct_token = excluded.correct_token,
			attempts = excluded.attempts,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`
	_, err := c.db.ExecContext(ctx, query,
		captcha.ChatID,
		captcha.UserID,
		captcha.Token,
		captcha.Attempts,
		captcha.CreatedAt.Unix(),
		captcha.ExpiresAt.Unix(),
	)
	return err
}

func (c *sqliteClient) GetCaptcha(ctx context.Context, chatID, userID int64) (*db.PendingCaptcha, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var row captchaRow
	err := c.db.GetContext(ctx, &row,
		`SELECT `+captchaColumns+` FROM pending_captchas WHERE chat_id = ? AND user_id = ?`,
		chatID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toCaptcha(), nil
}

func (c *sqliteClient) UpdateCaptcha(ctx context.Context, captcha *db.PendingCaptcha) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		UPDATE pending_captchas
		SET correct_token = ?, attempts = ?, expires_at = ?
		WHERE chat_id = ? AND user_id = ?
	`,
		captcha.Token,
		captcha.Attempts,
		captcha.ExpiresAt.Unix(),
		captcha.ChatID,
		captcha.UserID,
	)
	return err
}

func (c *sqliteClient) DeleteCaptcha(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM pending_captchas WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}

func (c *sqliteClient) GetExpiredCaptchas(ctx context.Context, now time.Time) ([]*db.PendingCaptcha, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var rows []captchaRow
	err := c.db.SelectContext(ctx, &rows,
		`SELECT `+captchaColumns+` FROM pending_captchas WHERE expires_at < ? ORDER BY expires_at`,
		now.Unix(),
	)
	if err != nil {
		return nil, err
	}
	captchas := make([]*db.PendingCaptcha, 0, len(rows))
	for i := range rows {
		captchas = append(captchas, rows[i].toCaptcha())
	}
	return captchas, nil
}
