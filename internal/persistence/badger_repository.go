package persistence

import (
	"encoding/json"
	"errors"

	"grid-trading-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// badgerRepository is the BadgerDB implementation of the StateRepository.
type badgerRepository struct {
	db         *badger.DB
	sessionKey []byte
}

// NewBadgerRepository creates a repository backed by a BadgerDB database at
// the given path.
func NewBadgerRepository(dbPath string) (StateRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is disabled to keep the application logs clean.
	// Errors are still returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{
		db:         db,
		sessionKey: []byte("session_state"),
	}, nil
}

// SaveSession marshals the snapshot to JSON and stores it under a single
// fixed key inside one transaction.
func (r *badgerRepository) SaveSession(state *models.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(r.sessionKey, data)
	})
}

// LoadSession loads the last snapshot. A missing key is the expected
// fresh-start case and returns (nil, nil).
func (r *badgerRepository) LoadSession() (*models.SessionState, error) {
	var state models.SessionState

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.sessionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("session state value is empty in database")
			}
			return json.Unmarshal(val, &state)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *badgerRepository) Close() error {
	return r.db.Close()
}
