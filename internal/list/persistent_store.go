package list

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/leadscout/engine/internal/db"
)

const keyPrefix = "lists/"

// PersistentRepository keeps lists in the shared badger store, one JSON
// document per list under lists/<name>.
type PersistentRepository struct {
	dbStore   *db.Store
	namespace string
}

func NewPersistentRepository(dbStore *db.Store, namespace string) *PersistentRepository {
	return &PersistentRepository{dbStore: dbStore, namespace: namespace}
}

func (r *PersistentRepository) Get(ctx context.Context, name string) (*List, error) {
	data, err := r.dbStore.Get(r.namespace, keyPrefix+name)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}

	var l List
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return &l, nil
}

func (r *PersistentRepository) Put(ctx context.Context, l *List) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal list: %w", err)
	}
	if err := r.dbStore.Set(r.namespace, keyPrefix+l.Name, data); err != nil {
		return fmt.Errorf("store list: %w", err)
	}
	return nil
}

func (r *PersistentRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.Get(ctx, name); err != nil {
		return err
	}
	if err := r.dbStore.Delete(r.namespace, keyPrefix+name); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

func (r *PersistentRepository) All(ctx context.Context) ([]*List, error) {
	var out []*List
	err := r.dbStore.Scan(r.namespace, keyPrefix, func(key string, value []byte) error {
		var l List
		if err := json.Unmarshal(value, &l); err != nil {
			return fmt.Errorf("unmarshal list %s: %w", key, err)
		}
		out = append(out, &l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
