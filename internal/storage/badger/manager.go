package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	source  interfaces.SourceStorage
	ledger  interfaces.LedgerStorage
	history interfaces.HistoryStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		source:  NewSourceStorage(db, logger),
		ledger:  NewLedgerStorage(db, logger),
		history: NewHistoryStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SourceStorage returns the Source storage interface
func (m *Manager) SourceStorage() interfaces.SourceStorage {
	return m.source
}

// LedgerStorage returns the Ledger storage interface
func (m *Manager) LedgerStorage() interfaces.LedgerStorage {
	return m.ledger
}

// HistoryStorage returns the History storage interface
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
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
