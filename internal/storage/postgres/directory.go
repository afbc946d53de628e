package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Directory is the group/user directory kept in the users, groups and group_members tables.
type Directory struct {
	db *gorm.DB
}

// CreateUser inserts a new user.
func (d *Directory) CreateUser(ctx context.Context, user *models.User) error {
	row := userRow{ID: user.ID, DisplayName: user.DisplayName, Email: user.Email, CreatedAt: user.CreatedAt}
	res := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to create user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrDuplicate)
	}
	return nil
}

// ResolveUser retrieves a user by ID. Returns storage.ErrNotFound if absent.
func (d *Directory) ResolveUser(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return row.toModel(), nil
}

// GetUsersByIDs retrieves multiple users by ID. Unknown IDs are omitted.
func (d *Directory) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(ids) == 0 {
		return users, nil
	}

	var rows []userRow
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	for i := range rows {
		users[rows[i].ID] = rows[i].toModel()
	}
	return users, nil
}

// CreateGroup persists a new group with its initial members.
func (d *Directory) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&groupRow{ID: group.ID, Name: group.Name, CreatedAt: group.CreatedAt})
		if res.Error != nil {
			return fmt.Errorf("failed to insert group: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("group %s: %w", group.ID, storage.ErrDuplicate)
		}

		for _, userID := range group.Members {
			if err := addMember(tx, group.ID, userID, group.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddMember (re)joins a user to a group.
func (d *Directory) AddMember(ctx context.Context, groupID, userID string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&groupRow{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to get group: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		return addMember(tx, groupID, userID, time.Now().Unix())
	})
}

func addMember(tx *gorm.DB, groupID, userID string, joinedAt int64) error {
	var count int64
	if err := tx.Model(&userRow{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}

	row := memberRow{GroupID: groupID, UserID: userID, JoinedAt: joinedAt}
	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"left_at": nil}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember marks a current member as departed.
func (d *Directory) RemoveMember(ctx context.Context, groupID, userID string) error {
	res := d.db.WithContext(ctx).Model(&memberRow{}).
		Where("group_id = ? AND user_id = ? AND left_at IS NULL", groupID, userID).
		Update("left_at", time.Now().Unix())
	if res.Error != nil {
		return fmt.Errorf("failed to remove group member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s in %s: %w", userID, groupID, storage.ErrNotFound)
	}
	return nil
}

// GroupExists reports whether the group is known.
func (d *Directory) GroupExists(ctx context.Context, groupID string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&groupRow{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}
	return count > 0, nil
}

// IsMember reports whether the user is or ever was a member of the group.
func (d *Directory) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&memberRow{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// GetGroup retrieves a group with its current members, ordered by user ID.
func (d *Directory) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var row groupRow
	err := d.db.WithContext(ctx).Where("id = ?", groupID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	group := &models.Group{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
	err = d.db.WithContext(ctx).Model(&memberRow{}).
		Where("group_id = ? AND left_at IS NULL", groupID).
		Order("user_id").
		Pluck("user_id", &group.Members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	return group, nil
}

func (r *userRow) toModel() *models.User {
	return &models.User{ID: r.ID, DisplayName: r.DisplayName, Email: r.Email, CreatedAt: r.CreatedAt}
}
