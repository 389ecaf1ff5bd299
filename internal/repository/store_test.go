package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gtec-tasks/internal/config"
	"gtec-tasks/internal/model"
)

func newStores(t *testing.T) map[string]TaskStore {
	t.Helper()
	dir := t.TempDir()

	csvStore, err := NewCSVStore(filepath.Join(dir, "tasks.csv"))
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}

	db, err := NewDB(config.BackendSQLite, filepath.Join(dir, "tasks.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return map[string]TaskStore{
		"csv":    csvStore,
		"memory": NewMemoryStore(),
		"sqlite": NewTaskRepository(db),
	}
}

func sampleTask(id, description string) *model.Task {
	return &model.Task{
		ID:               id,
		Requester:        "Anna P.",
		RequestDate:      "2025-01-10",
		ProposedDeadline: "2025-01-20",
		Description:      description,
		HoursEstimated:   3.5,
		DirectRelease:    model.Yes,
		Status:           model.StatusNotStarted,
	}
}

func TestStoreListKeepsInsertionOrder(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := []string{"B-2", "A-1", "C-3"}
			for _, id := range ids {
				got, err := store.Create(ctx, sampleTask(id, "task "+id))
				if err != nil {
					t.Fatalf("Create(%s): %v", id, err)
				}
				if got != id {
					t.Fatalf("expected id %s; got %s", id, got)
				}
			}

			tasks, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(tasks) != len(ids) {
				t.Fatalf("expected %d tasks; got %d", len(ids), len(tasks))
			}
			for i, id := range ids {
				if tasks[i].ID != id {
					t.Fatalf("position %d: expected %s; got %s", i, id, tasks[i].ID)
				}
			}
		})
	}
}

func TestStoreDuplicateIDLeavesStoreUnchanged(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Create(ctx, sampleTask("42", "original")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			_, err := store.Create(ctx, sampleTask("42", "impostor"))
			if !errors.Is(err, model.ErrDuplicateID) {
				t.Fatalf("expected ErrDuplicateID; got %v", err)
			}

			tasks, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(tasks) != 1 || tasks[0].Description != "original" {
				t.Fatalf("store changed after duplicate create: %+v", tasks)
			}
		})
	}
}

func TestStoreAssignsSequenceIDs(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Create(ctx, sampleTask("7", "explicit")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if _, err := store.Create(ctx, sampleTask("REQ-x", "non numeric")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			id, err := store.Create(ctx, sampleTask("", "generated"))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if id != "8" {
				t.Fatalf("expected generated id 8; got %s", id)
			}
			id, err = store.Create(ctx, sampleTask("  ", "generated again"))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if id != "9" {
				t.Fatalf("expected generated id 9; got %s", id)
			}
		})
	}
}

func TestStoreGetAndUpdate(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
				t.Fatalf("expected ErrNotFound; got %v", err)
			}
			if _, err := store.Update(ctx, "missing", model.TaskPatch{}); !errors.Is(err, model.ErrNotFound) {
				t.Fatalf("expected ErrNotFound on update; got %v", err)
			}

			if _, err := store.Create(ctx, sampleTask("1", "first")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			status := model.StatusCompleted
			completed := model.Date("2025-01-18")
			updated, err := store.Update(ctx, "1", model.TaskPatch{Status: &status, CompletionDate: &completed})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if updated.Status != model.StatusCompleted || updated.CompletionDate != completed {
				t.Fatalf("unexpected updated task %+v", updated)
			}
			if updated.Description != "first" {
				t.Fatalf("untouched fields must survive; got %q", updated.Description)
			}

			got, err := store.Get(ctx, "1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != model.StatusCompleted {
				t.Fatalf("update not persisted: %+v", got)
			}

			// Mutating the returned copy must not reach the store.
			got.Description = "tampered"
			again, _ := store.Get(ctx, "1")
			if again.Description != "first" {
				t.Fatalf("store leaked its record")
			}
		})
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	store, closeFn, err := Open(config.Config{StoreBackend: config.BackendMemory})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore; got %T", store)
	}
}

func TestOpenSQLiteBackend(t *testing.T) {
	cfg := config.Config{
		StoreBackend: config.BackendSQLite,
		DatabaseURL:  filepath.Join(t.TempDir(), "nested", "tasks.db"),
	}
	store, closeFn, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	if _, err := store.Create(context.Background(), sampleTask("", "x")); err != nil {
		t.Fatalf("Create: %v", err)
	}
}
