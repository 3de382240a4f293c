package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamwavecut/tool"

	"github.com/groupmate/groupmate/internal/db"
)

func (c *Client) CreateGroup(ctx context.Context, group *db.Group) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `INSERT INTO groups (id, name) VALUES (:id, :name)`
	return tool.Err(c.db.NamedExecContext(ctx, query, group))
}

func (c *Client) GetGroup(ctx context.Context, groupID int64) (*db.Group, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	group := &db.Group{}
	err := c.db.GetContext(ctx, group, `SELECT * FROM groups WHERE id = ?`, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get group %d: %w", groupID, err)
	}
	return group, nil
}

// DepartmentGroups lists groups whose id belongs to the department code
// prefix. Group ids are departmentCode*1000 + index, so an integer division
// recovers the department.
func (c *Client) DepartmentGroups(ctx context.Context, departmentCode int64) ([]db.Group, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var groups []db.Group
	err := c.db.SelectContext(ctx, &groups,
		`SELECT * FROM groups WHERE id / 1000 = ? ORDER BY id`, departmentCode)
	if err != nil {
		return nil, fmt.Errorf("failed to select groups of department %d: %w", departmentCode, err)
	}
	return groups, nil
}

func (c *Client) SetGroupGraduation(ctx context.Context, groupID int64, year int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE groups SET graduation = ? WHERE id = ?`, year, groupID)
	if err != nil {
		return fmt.Errorf("failed to set graduation of group %d: %w", groupID, err)
	}
	return nil
}

// SetGroupInfo replaces the group's saved info, nil clears it back to NULL.
func (c *Client) SetGroupInfo(ctx context.Context, groupID int64, info *string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE groups SET info = ? WHERE id = ?`, info, groupID)
	if err != nil {
		return fmt.Errorf("failed to set info of group %d: %w", groupID, err)
	}
	return nil
}

// SetGroupEvents replaces the group's events column, nil clears it back to
// NULL once every event has passed.
func (c *Client) SetGroupEvents(ctx context.Context, groupID int64, events *string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE groups SET events = ? WHERE id = ?`, events, groupID)
	if err != nil {
		return fmt.Errorf("failed to set events of group %d: %w", groupID, err)
	}
	return nil
}

func (c *Client) GroupsWithEvents(ctx context.Context) ([]db.Group, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var groups []db.Group
	err := c.db.SelectContext(ctx, &groups,
		`SELECT * FROM groups WHERE events IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select groups with events: %w", err)
	}
	return groups, nil
}

func (c *Client) DeleteGroup(ctx context.Context, groupID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group %d: %w", groupID, err)
	}
	return nil
}

// PurgeGraduated drops the chats and the group rows of every group whose
// graduation year has arrived. Runs in one transaction, chats first.
func (c *Client) PurgeGraduated(ctx context.Context, year int64) (int64, int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin purge tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM chats WHERE group_id IN (SELECT id FROM groups WHERE graduation = ?)`, year)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to purge graduated chats: %w", err)
	}
	chats, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count purged chats: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM groups WHERE graduation = ?`, year)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to purge graduated groups: %w", err)
	}
	groups, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count purged groups: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit purge tx: %w", err)
	}
	return groups, chats, nil
}
