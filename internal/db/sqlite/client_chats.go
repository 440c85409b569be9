package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/settings"
)

type chatRow struct {
	ID        int64             `db:"id"`
	Title     string            `db:"title"`
	Username  string            `db:"username"`
	Settings  db.SettingsColumn `db:"settings"`
	CreatedAt int64             `db:"created_at"`
	UpdatedAt int64             `db:"updated_at"`
}

func (r *chatRow) toChat() *db.Chat {
	return &db.Chat{
		ID:        r.ID,
		Title:     r.Title,
		Username:  r.Username,
		Settings:  r.Settings,
		CreatedAt: time.Unix(r.CreatedAt, 0),
		UpdatedAt: time.Unix(r.UpdatedAt, 0),
	}
}

// EnsureChat registers the chat with default settings on first sight and keeps
// its title and username current afterwards.
func (c *sqliteClient) EnsureChat(ctx context.Context, chatID int64, title, username string) (*settings.ChatSettings, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now().Unix()
	query := `
		INSERT INTO chats (id, title, username, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
			username = CASE WHEN excluded.username != '' THEN excluded.username ELSE chats.username END,
			updated_at = excluded.updated_at
	`
	defaults := db.SettingsColumn{ChatSettings: settings.Default()}
	if _, err := c.db.ExecContext(ctx, query, chatID, title, username, defaults, now, now); err != nil {
		return nil, fmt.Errorf("ensure chat %d: %w", chatID, err)
	}

	var row chatRow
	if err := c.db.GetContext(ctx, &row, `SELECT id, title, username, settings, created_at, updated_at FROM chats WHERE id = ?`, chatID); err != nil {
		return nil, fmt.Errorf("load chat %d: %w", chatID, err)
	}
	return row.Settings.ChatSettings, nil
}

func (c *sqliteClient) GetSettings(ctx context.Context, chatID int64) (*settings.ChatSettings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var column db.SettingsColumn
	err := c.db.GetContext(ctx, &column, `SELECT settings FROM chats WHERE id = ?`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat %d: %w", chatID, ngerrors.ErrChatNotRegistered)
		}
		return nil, fmt.Errorf("get settings for chat %d: %w", chatID, err)
	}
	return column.ChatSettings, nil
}

func (c *sqliteClient) SaveSettings(ctx context.Context, chatID int64, s *settings.ChatSettings) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx,
		`UPDATE chats SET settings = ?, updated_at = ? WHERE id = ?`,
		db.SettingsColumn{ChatSettings: s}, time.Now().Unix(), chatID,
	)
	if err != nil {
		return fmt.Errorf("save settings for chat %d: %w", chatID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("chat %d: %w", chatID, ngerrors.ErrChatNotRegistered)
	}
	return nil
}

func (c *sqliteClient) ListChats(ctx context.Context) ([]*db.Chat, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var rows []chatRow
	if err := c.db.SelectContext(ctx, &rows, `SELECT id, title, username, settings, created_at, updated_at FROM chats ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	chats := make([]*db.Chat, 0, len(rows))
	for i := range rows {
		chats = append(chats, rows[i].toChat())
	}
	return chats, nil
}
