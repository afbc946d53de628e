package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

type groupRecord struct {
	name      string
	createdAt int64
	// members maps user ID to true while current, false once departed.
	members map[string]bool
}

// Directory is an in-memory user and group directory, mainly for tests.
type Directory struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	groups map[string]*groupRecord
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[string]*models.User),
		groups: make(map[string]*groupRecord),
	}
}

// AddUser registers a user.
func (d *Directory) AddUser(u *models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// AddGroup registers a group with its initial members, creating unknown users on the fly.
func (d *Directory) AddGroup(groupID, name string, members ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g := &groupRecord{name: name, createdAt: time.Now().Unix(), members: make(map[string]bool)}
	for _, m := range members {
		if _, ok := d.users[m]; !ok {
			d.users[m] = models.NewUser(m, m, "")
		}
		g.members[m] = true
	}
	d.groups[groupID] = g
}

// AddMember (re)joins a user to a group.
func (d *Directory) AddMember(groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[groupID]
	if !ok {
		return storage.ErrNotFound
	}
	g.members[userID] = true
	return nil
}

// RemoveMember marks a user as departed. They stay a historical member.
func (d *Directory) RemoveMember(groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[groupID]
	if !ok {
		return storage.ErrNotFound
	}
	if current, ok := g.members[userID]; !ok || !current {
		return storage.ErrNotFound
	}
	g.members[userID] = false
	return nil
}

// GroupExists reports whether the group is known.
func (d *Directory) GroupExists(_ context.Context, groupID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.groups[groupID]
	return ok, nil
}

// IsMember reports whether the user is or ever was a member of the group.
func (d *Directory) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	g, ok := d.groups[groupID]
	if !ok {
		return false, nil
	}
	_, member := g.members[userID]
	return member, nil
}

// ResolveUser returns the user or storage.ErrNotFound.
func (d *Directory) ResolveUser(_ context.Context, userID string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *u
	return &c, nil
}

// GetGroup returns the group with its current members.
func (d *Directory) GetGroup(_ context.Context, groupID string) (*models.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	g, ok := d.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	group := &models.Group{ID: groupID, Name: g.name, CreatedAt: g.createdAt}
	for userID, current := range g.members {
		if current {
			group.Members = append(group.Members, userID)
		}
	}
	sort.Strings(group.Members)
	return group, nil
}
