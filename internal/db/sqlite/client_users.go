package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/jmoiron/sqlx"

	"github.com/iamwavecut/ngguard/internal/db"
)

const userStateColumns = `chat_id, user_id, warnings, reputation, is_trusted, is_whitelisted`

func (c *sqliteClient) ensureUserState(ctx context.Context, chatID, userID int64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_states (chat_id, user_id, updated_at) VALUES (?, ?, ?)`,
		chatID, userID, time.Now().Unix(),
	)
	return err
}

func (c *sqliteClient) GetUserState(ctx context.Context, chatID, userID int64) (*db.UserState, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.ensureUserState(ctx, chatID, userID); err != nil {
		return nil, fmt.Errorf("ensure user state: %w", err)
	}
	var state db.UserState
	err := c.db.GetContext(ctx, &state,
		`SELECT `+userStateColumns+` FROM user_states WHERE chat_id = ? AND user_id = ?`,
		chatID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get user state: %w", err)
	}
	return &state, nil
}

func (c *sqliteClient) AddWarning(ctx context.Context, chatID, userID int64) (int, error) {
	return c.bumpCounter(ctx, chatID, userID, "warnings", 1)
}

func (c *sqliteClient) AdjustReputation(ctx context.Context, chatID, userID int64, delta int) (int, error) {
	return c.bumpCounter(ctx, chatID, userID, "reputation", delta)
}

func (c *sqliteClient) bumpCounter(ctx context.Context, chatID, userID int64, column string, delta int) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.ensureUserState(ctx, chatID, userID); err != nil {
		return 0, fmt.Errorf("ensure user state: %w", err)
	}
	query := fmt.Sprintf(`UPDATE user_states SET %[1]s = %[1]s + ?, updated_at = ? WHERE chat_id = ? AND user_id = ?`, column)
	if _, err := c.db.ExecContext(ctx, query, delta, time.Now().Unix(), chatID, userID); err != nil {
		return 0, fmt.Errorf("update %s: %w", column, err)
	}
	var value int
	if err := c.db.GetContext(ctx, &value, fmt.Sprintf(`SELECT %s FROM user_states WHERE chat_id = ? AND user_id = ?`, column), chatID, userID); err != nil {
		return 0, fmt.Errorf("read %s: %w", column, err)
	}
	return value, nil
}

func (c *sqliteClient) ResetWarnings(ctx context.Context, chatID, userID int64) error {
	return c.setColumn(ctx, chatID, userID, "warnings", 0)
}

func (c *sqliteClient) SetTrust(ctx context.Context, chatID, userID int64, trusted bool) error {
	return c.setColumn(ctx, chatID, userID, "is_trusted", boolInt(trusted))
}

func (c *sqliteClient) SetWhitelist(ctx context.Context, chatID, userID int64, whitelisted bool) error {
	return c.setColumn(ctx, chatID, userID, "is_whitelisted", boolInt(whitelisted))
}

func (c *sqliteClient) setColumn(ctx context.Context, chatID, userID int64, column string, value int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.ensureUserState(ctx, chatID, userID); err != nil {
		return fmt.Errorf("ensure user state: %w", err)
	}
	query := fmt.Sprintf(`UPDATE user_states SET %s = ?, updated_at = ? WHERE chat_id = ? AND user_id = ?`, column)
	return tool.Err(c.db.ExecContext(ctx, query, value, time.Now().Unix(), chatID, userID))
}

func (c *sqliteClient) ListUserStates(ctx context.Context, chatID int64) ([]*db.UserState, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var states []*db.UserState
	err := c.db.SelectContext(ctx, &states,
		`SELECT `+userStateColumns+` FROM user_states WHERE chat_id = ? ORDER BY user_id`, chatID)
	return states, err
}

func (c *sqliteClient) ListWhitelisted(ctx context.Context, chatID int64) ([]*db.UserState, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var states []*db.UserState
	err := c.db.SelectContext(ctx, &states,
		`SELECT `+userStateColumns+` FROM user_states WHERE chat_id = ? AND is_whitelisted = 1 ORDER BY user_id`, chatID)
	return states, err
}

func (c *sqliteClient) DeleteUserStates(ctx context.Context, chatID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query, args, err := sqlx.In(`DELETE FROM user_states WHERE chat_id = ? AND user_id IN (?)`, chatID, userIDs)
	if err != nil {
		return err
	}
	query = c.db.Rebind(query)
	_, err = c.db.ExecContext(ctx, query, args...)
	return err
}
