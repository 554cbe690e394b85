package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/taskcards/internal/database"
)

// resetOrder lists data tables children first so foreign keys never block a
// delete.
var resetOrder = []string{"work_item_links", "work_items", "iterations", "teams"}

// MaintenanceService holds destructive operations on the local database.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset deletes every row of every data table, leaving the schema and the
// migration version untouched, and returns how many rows went.
func (s *MaintenanceService) Reset(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, fmt.Errorf("maintenance: db not configured")
	}
	var deleted int64
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, table := range resetOrder {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
			if err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("clear %s: rows affected: %w", table, err)
			}
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	// best effort
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return deleted, nil
}
