package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/haasonsaas/agentrt/pkg/models"
)

// memStore is a minimal Store implementation used only to exercise the
// contract this package documents (ErrNotFound, silent delete-of-missing).
// No production implementation lives in this package; back-ends are out of
// scope.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemStore() *memStore { return &memStore{sessions: make(map[string]models.Session)} }

func (m *memStore) Save(ctx context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memStore) Load(ctx context.Context, id string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) List(ctx context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

var _ Store = (*memStore)(nil)

func TestStoreLoadNotFound(t *testing.T) {
	store := newMemStore()
	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newMemStore()
	session := models.Session{ID: "s1", Metadata: models.SessionMetadata{Status: models.StatusCompleted, Turns: 3}}
	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != "s1" || got.Metadata.Turns != 3 {
		t.Errorf("Load() = %+v, want ID=s1 Turns=3", got)
	}
}

func TestStoreDeleteMissingIsSilent(t *testing.T) {
	store := newMemStore()
	if err := store.Delete(context.Background(), "never-existed"); err != nil {
		t.Errorf("Delete of a missing id should succeed silently, got %v", err)
	}
}

func TestStoreList(t *testing.T) {
	store := newMemStore()
	_ = store.Save(context.Background(), models.Session{ID: "a"})
	_ = store.Save(context.Background(), models.Session{ID: "b"})
	sessions, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("List() len = %d, want 2", len(sessions))
	}
}
