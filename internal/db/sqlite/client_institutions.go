package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamwavecut/tool"

	"github.com/groupmate/groupmate/internal/db"
)

func (c *Client) CreateInstitution(ctx context.Context, institution *db.Institution) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO institutions (id, name, city, departments)
		VALUES (:id, :name, :city, :departments)
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, institution))
}

func (c *Client) GetInstitutionByName(ctx context.Context, name string) (*db.Institution, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	institution := &db.Institution{}
	err := c.db.GetContext(ctx, institution, `SELECT * FROM institutions WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get institution %q: %w", name, err)
	}
	return institution, nil
}

func (c *Client) ListInstitutions(ctx context.Context) ([]db.Institution, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var institutions []db.Institution
	err := c.db.SelectContext(ctx, &institutions, `SELECT * FROM institutions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}
	return institutions, nil
}
