package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/postgres"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

// AdminDirectory is the directory as seen by operators: the engine's read side plus
// the provisioning calls normally made by the external membership system.
type AdminDirectory interface {
	ledger.Directory

	CreateUser(ctx context.Context, user *models.User) error
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	CreateGroup(ctx context.Context, group *models.Group) error
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
}

var (
	_ AdminDirectory = (*sqlite.Directory)(nil)
	_ AdminDirectory = (*postgres.Directory)(nil)
	_ AdminDirectory = memoryDirectory{}
)

// backend is an opened store, its directory and an engine over both.
type backend struct {
	store  storage.Store
	dir    AdminDirectory
	engine *ledger.Engine
}

func (b *backend) Close() error {
	return b.store.Close()
}

// openBackend opens the configured storage driver. reg may be nil.
func openBackend(opts *RootOptions, reg prometheus.Registerer) (*backend, error) {
	cfg := opts.cfg

	var (
		store storage.Store
		dir   AdminDirectory
	)
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		store, dir = s, s.Directory()
	case config.DriverPostgres:
		s, err := postgres.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		store, dir = s, s.Directory()
	case config.DriverMemory:
		store, dir = memory.New(), memoryDirectory{memory.NewDirectory()}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	opts.logger.Debug("Storage initialized", "driver", cfg.Storage.Driver)

	engine := ledger.New(store, dir,
		ledger.WithLogger(opts.logger),
		ledger.WithMetrics(ledger.NewMetrics(reg)),
		ledger.WithLockTimeout(cfg.Ledger.LockTimeout),
	)
	return &backend{store: store, dir: dir, engine: engine}, nil
}

// memoryDirectory gives the in-memory directory the provisioning API of the SQL ones.
type memoryDirectory struct {
	*memory.Directory
}

func (d memoryDirectory) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := d.ResolveUser(ctx, user.ID); err == nil {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrDuplicate)
	}
	d.AddUser(user)
	return nil
}

func (d memoryDirectory) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, err := d.ResolveUser(ctx, id); err == nil {
			users[id] = u
		}
	}
	return users, nil
}

func (d memoryDirectory) CreateGroup(ctx context.Context, group *models.Group) error {
	if exists, _ := d.GroupExists(ctx, group.ID); exists {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrDuplicate)
	}
	for _, m := range group.Members {
		if _, err := d.ResolveUser(ctx, m); err != nil {
			return fmt.Errorf("member %s: %w", m, err)
		}
	}
	d.AddGroup(group.ID, group.Name, group.Members...)
	return nil
}

func (d memoryDirectory) AddMember(ctx context.Context, groupID, userID string) error {
	if _, err := d.ResolveUser(ctx, userID); err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	return d.Directory.AddMember(groupID, userID)
}

func (d memoryDirectory) RemoveMember(_ context.Context, groupID, userID string) error {
	return d.Directory.RemoveMember(groupID, userID)
}
