package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"gtec-tasks/internal/model"
)

// TaskRepository is the SQL backend for tasks. Rows are listed in insertion
// order through the auto-increment Seq column.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) (string, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task.ID = strings.TrimSpace(task.ID)
		if task.ID == "" {
			var ids []string
			if err := tx.Model(&model.Task{}).Pluck("id", &ids).Error; err != nil {
				return persistenceErr("list task ids", err)
			}
			task.ID = nextID(ids)
		} else {
			var count int64
			if err := tx.Model(&model.Task{}).Where("id = ?", task.ID).Count(&count).Error; err != nil {
				return persistenceErr("check task id", err)
			}
			if count > 0 {
				return fmt.Errorf("create task %s: %w", task.ID, model.ErrDuplicateID)
			}
		}
		task.Seq = 0
		if err := tx.Create(task).Error; err != nil {
			return persistenceErr("create task", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return task.ID, nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, notFound(id)
	default:
		return nil, persistenceErr("find task", err)
	}
}

// Update loads the row, applies the patch and saves every column, so cleared
// fields are written back as sentinels.
func (r *TaskRepository) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).First(&task).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return notFound(id)
		case err != nil:
			return persistenceErr("find task", err)
		}
		patch.Apply(&task)
		if err := tx.Save(&task).Error; err != nil {
			return persistenceErr("update task", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&tasks).Error; err != nil {
		return nil, persistenceErr("list tasks", err)
	}
	return tasks, nil
}
