package basket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned when a basket is requested without a session id
var ErrNoSession = errors.New("basket: missing session id")

// Storage keeps serialized baskets keyed by session id.
// GetBasket returns nil data and no error when nothing is stored.
type Storage interface {
	GetBasket(ctx context.Context, sessionID string) ([]byte, error)
	SetBasket(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error
	DeleteBasket(ctx context.Context, sessionID string) error
}

// Manager loads and saves baskets at request boundaries
type Manager struct {
	storage Storage
	ttl     time.Duration
}

// NewManager creates a basket manager; ttl should match the session lifetime
func NewManager(storage Storage, ttl time.Duration) *Manager {
	return &Manager{storage: storage, ttl: ttl}
}

// Load returns the basket stored for the session, or an empty one
func (m *Manager) Load(ctx context.Context, sessionID string) (*Basket, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	data, err := m.storage.GetBasket(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load basket: %w", err)
	}

	b := New()
	if len(data) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("failed to decode basket: %w", err)
	}
	return b, nil
}

// Save writes the basket back; an empty basket removes the stored copy
func (m *Manager) Save(ctx context.Context, sessionID string, b *Basket) error {
	if sessionID == "" {
		return ErrNoSession
	}

	if b.IsEmpty() {
		return m.storage.DeleteBasket(ctx, sessionID)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode basket: %w", err)
	}
	return m.storage.SetBasket(ctx, sessionID, data, m.ttl)
}
