package sqlstore

import (
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	pendingTTL time.Duration

	accountStore *AccountStore
	pendingStore *PendingAuthStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// WithPendingTTL sets the sweep horizon for the durable pending store. Must
// be called before BuildStores.
func (f *RepositoryFactory) WithPendingTTL(ttl time.Duration) *RepositoryFactory {
	if f != nil && ttl > 0 {
		f.pendingTTL = ttl
	}
	return f
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.accountStore != nil && f.pendingStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) AccountStore() *AccountStore {
	if f == nil {
		return nil
	}
	return f.accountStore
}

func (f *RepositoryFactory) PendingStore() *PendingAuthStore {
	if f == nil {
		return nil
	}
	return f.pendingStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	accountRepo := repository.NewRepository[*accountRecord](f.db, accountHandlers())
	if validator, ok := accountRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid account repository wiring: %w", err)
		}
	}

	pendingRepo := repository.NewRepository[*pendingAuthRecord](f.db, pendingAuthHandlers())
	if validator, ok := pendingRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid pending auth repository wiring: %w", err)
		}
	}

	f.accountStore = &AccountStore{
		db:   f.db,
		repo: accountRepo,
	}
	f.pendingStore = &PendingAuthStore{
		db:   f.db,
		repo: pendingRepo,
		ttl:  f.pendingTTL,
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
