package sqlite

import (
	"context"
	"fmt"

	"github.com/iamwavecut/tool"

	"github.com/groupmate/groupmate/internal/db"
)

func (c *Client) LinkECampusAccount(ctx context.Context, account *db.ECampusAccount) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO ecampus (id, login, password, points)
		VALUES (:id, :login, :password, :points)
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, account))
}

func (c *Client) ECampusAccounts(ctx context.Context, chatID int64) ([]db.ECampusAccount, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var accounts []db.ECampusAccount
	err := c.db.SelectContext(ctx, &accounts,
		`SELECT * FROM ecampus WHERE id = ? ORDER BY login`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to select ecampus accounts of chat %d: %w", chatID, err)
	}
	return accounts, nil
}

func (c *Client) AllECampusAccounts(ctx context.Context) ([]db.ECampusAccount, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var accounts []db.ECampusAccount
	err := c.db.SelectContext(ctx, &accounts, `SELECT * FROM ecampus ORDER BY id, login`)
	if err != nil {
		return nil, fmt.Errorf("failed to select ecampus accounts: %w", err)
	}
	return accounts, nil
}

func (c *Client) UpdateECampusPoints(ctx context.Context, login string, points int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `UPDATE ecampus SET points = ? WHERE login = ?`, points, login)
	if err != nil {
		return fmt.Errorf("failed to update points of login %q: %w", login, err)
	}
	return nil
}

func (c *Client) DeleteECampusAccounts(ctx context.Context, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM ecampus WHERE id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete ecampus accounts of chat %d: %w", chatID, err)
	}
	return nil
}
