package persistence

import "grid-trading-bot-go/internal/models"

// StateRepository abstracts session snapshot storage from the rest of the
// application.
type StateRepository interface {
	// SaveSession atomically saves the entire session snapshot.
	SaveSession(state *models.SessionState) error

	// LoadSession loads the last saved snapshot.
	// If no snapshot is found, it returns (nil, nil).
	LoadSession() (*models.SessionState, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
