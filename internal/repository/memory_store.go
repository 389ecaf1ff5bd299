package repository

import (
	"context"
	"sync"

	"gtec-tasks/internal/model"
)

// MemoryStore is the transient backend: tasks live as long as the store.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []model.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, t *model.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	tasks, err := insert(s.tasks, &cp)
	if err != nil {
		return "", err
	}
	s.tasks = tasks
	t.ID = cp.ID
	return cp.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := indexOf(s.tasks, id)
	if i < 0 {
		return nil, notFound(id)
	}
	t := s.tasks[i]
	return &t, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.tasks, id)
	if i < 0 {
		return nil, notFound(id)
	}
	patch.Apply(&s.tasks[i])
	t := s.tasks[i]
	return &t, nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
