package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamwavecut/tool"

	"github.com/groupmate/groupmate/internal/db"
)

func (c *Client) GetChat(ctx context.Context, chatID int64) (*db.Chat, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	chat := &db.Chat{}
	err := c.db.GetContext(ctx, chat, `SELECT * FROM chats WHERE id = ?`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat %d: %w", chatID, err)
	}
	return chat, nil
}

func (c *Client) CreateChat(ctx context.Context, chat *db.Chat) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO chats (id, type, username, language, group_id, role, familiarity, registered)
		VALUES (:id, :type, :username, :language, :group_id, :role, :familiarity, :registered)
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, chat))
}

func (c *Client) UpdateChatRole(ctx context.Context, chatID int64, role db.Role) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE chats SET role = ? WHERE id = ?`, role, chatID)
	if err != nil {
		return fmt.Errorf("failed to update role of chat %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) UpdateChatLanguage(ctx context.Context, chatID int64, language db.Language) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE chats SET language = ? WHERE id = ?`, language, chatID)
	if err != nil {
		return fmt.Errorf("failed to update language of chat %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) UpdateChatFamiliarity(ctx context.Context, chatID int64, familiarity db.Familiarity) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE chats SET familiarity = ? WHERE id = ?`, familiarity, chatID)
	if err != nil {
		return fmt.Errorf("failed to update familiarity of chat %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) SetChatFeedback(ctx context.Context, chatID int64, feedback string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE chats SET feedback = ? WHERE id = ?`, feedback, chatID)
	if err != nil {
		return fmt.Errorf("failed to set feedback of chat %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat %d: %w", chatID, err)
	}
	return nil
}

// DeleteGroupChats removes every chat of a group. The group reference is not
// a declared foreign key, the cleanup is explicit.
func (c *Client) DeleteGroupChats(ctx context.Context, groupID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM chats WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete chats of group %d: %w", groupID, err)
	}
	return nil
}

func (c *Client) GroupStudents(ctx context.Context, groupID int64) ([]db.Chat, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var students []db.Chat
	err := c.db.SelectContext(ctx, &students,
		`SELECT * FROM chats WHERE group_id = ? AND type = ? ORDER BY id`, groupID, db.ChatTypePrivate)
	if err != nil {
		return nil, fmt.Errorf("failed to select students of group %d: %w", groupID, err)
	}
	return students, nil
}

func (c *Client) GroupLeader(ctx context.Context, groupID int64) (*db.Chat, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	leader := &db.Chat{}
	err := c.db.GetContext(ctx, leader,
		`SELECT * FROM chats WHERE group_id = ? AND role = ?`, groupID, db.RoleLeader)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get leader of group %d: %w", groupID, err)
	}
	return leader, nil
}

// FirstGroupChat returns the group's earliest registered non-private chat.
func (c *Client) FirstGroupChat(ctx context.Context, groupID int64) (*db.Chat, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	chat := &db.Chat{}
	err := c.db.GetContext(ctx, chat,
		`SELECT * FROM chats WHERE group_id = ? AND type <> ? ORDER BY registered LIMIT 1`,
		groupID, db.ChatTypePrivate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get group chat of group %d: %w", groupID, err)
	}
	return chat, nil
}

func (c *Client) CountStudents(ctx context.Context, groupID int64) (int, error) {
	return c.countChats(ctx, `SELECT COUNT(id) FROM chats WHERE group_id = ? AND type = ?`,
		groupID, db.ChatTypePrivate)
}

func (c *Client) CountAdmins(ctx context.Context, groupID int64) (int, error) {
	return c.countChats(ctx, `SELECT COUNT(id) FROM chats WHERE group_id = ? AND role = ?`,
		groupID, db.RoleAdmin)
}

func (c *Client) countChats(ctx context.Context, query string, args ...interface{}) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	if err := c.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count chats: %w", err)
	}
	return count, nil
}
