package repository

import (
	"context"
	"strings"

	"github.com/jask/taskcards/internal/workitem"
)

// LinkRepo handles work item links.
type LinkRepo struct {
	db DBTX
}

func NewLinkRepo(db DBTX) *LinkRepo { return &LinkRepo{db: db} }

func (r *LinkRepo) Upsert(ctx context.Context, l workitem.Link) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO work_item_links(source_id, target_id, link_type) VALUES (?, ?, ?)
	`, l.SourceID, l.TargetID, l.Type)
	return err
}

// Outgoing lists the links leaving sourceID whose target matches every
// filter. Links whose target row is missing are kept when there are no
// filters, so callers can detect dangling links.
func (r *LinkRepo) Outgoing(ctx context.Context, sourceID int, target []Filter) ([]workitem.Link, error) {
	where, args, err := whereClause("w.", target)
	if err != nil {
		return nil, err
	}
	query := `SELECT l.source_id, l.target_id, l.link_type
	FROM work_item_links l LEFT JOIN work_items w ON w.id = l.target_id`
	if where == "" {
		query += " WHERE l.source_id = ?"
	} else {
		query += where + " AND l.source_id = ?"
	}
	query += " ORDER BY l.link_type, l.target_id"
	args = append(args, sourceID)

	rows, err := r.db.QueryContext(ctx, strings.TrimSpace(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workitem.Link
	for rows.Next() {
		var l workitem.Link
		if err := rows.Scan(&l.SourceID, &l.TargetID, &l.Type); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
