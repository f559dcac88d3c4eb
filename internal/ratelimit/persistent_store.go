package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leadscout/engine/internal/db"
)

const historyKey = "ratelimit/history"

// PersistentHistory keeps the start history in the shared badger store.
type PersistentHistory struct {
	dbStore   *db.Store
	namespace string
}

func NewPersistentHistory(dbStore *db.Store, namespace string) *PersistentHistory {
	return &PersistentHistory{dbStore: dbStore, namespace: namespace}
}

func (p *PersistentHistory) LoadHistory() ([]time.Time, error) {
	data, err := p.dbStore.Get(p.namespace, historyKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	var history []time.Time
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return history, nil
}

func (p *PersistentHistory) SaveHistory(history []time.Time) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := p.dbStore.Set(p.namespace, historyKey, data); err != nil {
		return fmt.Errorf("store history: %w", err)
	}
	return nil
}
