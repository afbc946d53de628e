package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Directory is a minimal group/user directory backed by the users, groups and
// group_members tables. Departed members keep their row with left_at set, so they
// remain historical members for settling up.
type Directory struct {
	db *sql.DB
}

// CreateUser inserts a new user into the database.
func (d *Directory) CreateUser(ctx context.Context, user *models.User) error {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		user.ID,
		user.DisplayName,
		user.Email,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrDuplicate)
	}
	return nil
}

// ResolveUser retrieves a user by ID. Returns storage.ErrNotFound if absent.
func (d *Directory) ResolveUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := d.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, created_at FROM users WHERE id = ?",
		id,
	).Scan(&user.ID, &user.DisplayName, &user.Email, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUsersByIDs retrieves multiple users by their IDs.
// Returns a map of user ID to User object.
// Users that don't exist are omitted from the result.
func (d *Directory) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(ids) == 0 {
		return users, nil
	}

	query := `
		SELECT id, display_name, email, created_at
		FROM users
		WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// CreateGroup persists a new group with its initial members.
// Every member must already exist as a user.
func (d *Directory) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING",
		group.ID, group.Name, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrDuplicate)
	}

	for _, userID := range group.Members {
		if err := addMember(ctx, tx, group.ID, userID, group.CreatedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddMember (re)joins a user to a group.
func (d *Directory) AddMember(ctx context.Context, groupID, userID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}

	if err := addMember(ctx, tx, groupID, userID, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func addMember(ctx context.Context, tx *sql.Tx, groupID, userID string, joinedAt int64) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT (group_id, user_id) DO UPDATE SET left_at = NULL`,
		groupID, userID, joinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember marks a current member as departed.
func (d *Directory) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := d.db.ExecContext(ctx,
		"UPDATE group_members SET left_at = ? WHERE group_id = ? AND user_id = ? AND left_at IS NULL",
		time.Now().Unix(), groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s in %s: %w", userID, groupID, storage.ErrNotFound)
	}
	return nil
}

// GroupExists reports whether the group is known.
func (d *Directory) GroupExists(ctx context.Context, groupID string) (bool, error) {
	var exists int
	err := d.db.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}
	return true, nil
}

// IsMember reports whether the user is or ever was a member of the group.
func (d *Directory) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists int
	err := d.db.QueryRowContext(ctx,
		"SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

// GetGroup retrieves a group with its current members, ordered by user ID.
func (d *Directory) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := d.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT user_id FROM group_members WHERE group_id = ? AND left_at IS NULL ORDER BY user_id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		group.Members = append(group.Members, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return group, nil
}
