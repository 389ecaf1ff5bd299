package repository

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gtec-tasks/internal/model"
)

// CSVStore keeps tasks in a single tabular file. Every call re-reads the
// file and every mutation rewrites it in full.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore opens path, creating it with a header row when missing.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		path = "gtec_tasks.csv"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %q: %w", dir, err)
		}
	}

	s := &CSVStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.flush(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, persistenceErr("stat "+path, err)
	}
	return s, nil
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Create(_ context.Context, t *model.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return "", err
	}
	cp := *t
	tasks, err = insert(tasks, &cp)
	if err != nil {
		return "", err
	}
	if err := s.flush(tasks); err != nil {
		return "", err
	}
	t.ID = cp.ID
	return cp.ID, nil
}

func (s *CSVStore) Get(_ context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(tasks, id)
	if i < 0 {
		return nil, notFound(id)
	}
	t := tasks[i]
	return &t, nil
}

func (s *CSVStore) Update(_ context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(tasks, id)
	if i < 0 {
		return nil, notFound(id)
	}
	patch.Apply(&tasks[i])
	if err := s.flush(tasks); err != nil {
		return nil, err
	}
	t := tasks[i]
	return &t, nil
}

func (s *CSVStore) List(_ context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CSVStore) load() ([]model.Task, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Task{}, nil
		}
		return nil, persistenceErr("read "+s.path, err)
	}
	tasks, err := ReadCSV(bytes.NewReader(b))
	if err != nil {
		return nil, persistenceErr("parse "+s.path, err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// flush writes tasks to a temp file next to path and renames it into place,
// so readers never see a half-written file.
func (s *CSVStore) flush(tasks []model.Task) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tasks); err != nil {
		return persistenceErr("encode tasks", err)
	}
	if err := atomicWriteFile(s.path, buf.Bytes()); err != nil {
		return persistenceErr("write "+s.path, err)
	}
	return nil
}

func atomicWriteFile(path string, b []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, 0o644)
	return os.Rename(tmp, path)
}
