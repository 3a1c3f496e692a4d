package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	seen      interfaces.SeenStore
	posts     interfaces.PostStore
	cursors   interfaces.CursorStore
	portfolio interfaces.PortfolioStore
	kv        interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		seen:      NewSeenStorage(db, logger),
		posts:     NewPostStorage(db, logger),
		cursors:   NewCursorStorage(db, logger),
		portfolio: NewPortfolioStorage(db, logger),
		kv:        NewKVStorage(db, logger),
		logger:    logger,
	}

	db.StartGC()

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SeenStore returns the seen-set storage interface
func (m *Manager) SeenStore() interfaces.SeenStore {
	return m.seen
}

// PostStore returns the post record storage interface
func (m *Manager) PostStore() interfaces.PostStore {
	return m.posts
}

// CursorStore returns the poll cursor storage interface
func (m *Manager) CursorStore() interfaces.CursorStore {
	return m.cursors
}

// PortfolioStore returns the portfolio storage interface
func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolio
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
