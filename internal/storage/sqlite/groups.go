package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
)

// CreateGroup persists a group and its initial members in join order.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	return s.execTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)`,
			group.ID, group.Name, group.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}
		return addMembersTx(ctx, tx, group.ID, group.Members)
	})
}

// addMembersTx appends members with monotonically increasing positions.
// Position drives equal-split remainder distribution, so it never changes
// once assigned.
func addMembersTx(ctx context.Context, tx *sql.Tx, groupID string, userIDs []string) error {
	var next int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM group_members WHERE group_id = ?`,
		groupID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read member positions: %w", err)
	}

	now := time.Now().Unix()
	for _, userID := range userIDs {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO group_members (group_id, user_id, position, joined_at)
			 VALUES (?, ?, ?, ?)`,
			groupID, userID, next, now)
		if err != nil {
			return fmt.Errorf("failed to insert group member %s: %w", userID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}
	return nil
}

// GetGroup retrieves a group with members in join order.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM groups WHERE id = ?`, groupID).
		Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: group %s", models.ErrNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		group.Members = append(group.Members, userID)
	}
	return group, rows.Err()
}

// AddGroupMembers appends members preserving join order.
func (s *SQLiteStore) AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error {
	return s.execTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE id = ?`, groupID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: group %s", models.ErrNotFound, groupID)
		}
		if err != nil {
			return fmt.Errorf("failed to check group: %w", err)
		}
		return addMembersTx(ctx, tx, groupID, userIDs)
	})
}

// ListGroupsForUser returns the groups a user belongs to, newest first.
func (s *SQLiteStore) ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.created_at
		 FROM groups g JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? ORDER BY g.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Hydrate members; group counts are small enough that N+1 is fine here.
	for _, g := range groups {
		full, err := s.GetGroup(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		g.Members = full.Members
	}
	return groups, nil
}
