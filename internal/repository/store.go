package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gtec-tasks/internal/config"
	"gtec-tasks/internal/model"
)

// TaskStore is the contract every task backend fulfils. Mutations are
// flushed before they return. Stores hand out copies; callers never hold
// the stored record.
//
// Backends shared between processes (file, database) use read-modify-write
// without isolation: concurrent updates race and the last write wins.
type TaskStore interface {
	Create(ctx context.Context, t *model.Task) (string, error)
	Get(ctx context.Context, id string) (*model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
}

// Open builds the store selected by cfg. The returned close func releases
// backend resources and is never nil.
func Open(cfg config.Config) (TaskStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StoreBackend {
	case config.BackendCSV:
		s, err := NewCSVStore(cfg.DataFile)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.BackendMemory:
		return NewMemoryStore(), noop, nil
	case config.BackendSQLite, config.BackendPostgres:
		db, err := NewDB(cfg.StoreBackend, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, fmt.Errorf("db handle: %w", err)
		}
		return NewTaskRepository(db), sqlDB.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// nextID returns the next sequence number after the largest numeric id.
// Non-numeric ids are ignored.
func nextID(ids []string) string {
	var max uint64
	for _, id := range ids {
		n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err == nil && n > max {
			max = n
		}
	}
	return strconv.FormatUint(max+1, 10)
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func indexOf(tasks []model.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// insert assigns an id when needed, rejects duplicates and appends.
func insert(tasks []model.Task, t *model.Task) ([]model.Task, error) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = nextID(taskIDs(tasks))
	} else if indexOf(tasks, t.ID) >= 0 {
		return tasks, fmt.Errorf("create task %s: %w", t.ID, model.ErrDuplicateID)
	}
	return append(tasks, *t), nil
}

func notFound(id string) error {
	return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrPersistence, err)
}
