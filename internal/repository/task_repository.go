package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
)

var taskUpsert = database.UpsertSpec{
	Table:              "tasks",
	ConflictColumns:    []string{"name"},
	ExcludedFromUpdate: []string{"id", "created_at"},
}

// TaskRepository manages the tasks offered by banks.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert creates or updates tasks by name and stores the persisted IDs back into tasks.
func (r *TaskRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]*database.Record, 0, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now
		}
		task.UpdatedAt = now
		records = append(records, database.NewRecord().
			Set("id", task.ID).
			Set("bank_name", task.BankName).
			Set("name", task.Name).
			Set("description", task.Description).
			Set("created_at", task.CreatedAt).
			Set("updated_at", task.UpdatedAt))
	}

	type taskKey struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	keys, err := database.UpsertReturning[taskKey](ctx, r.exec(exec), taskUpsert, records, "id", "name")
	if err != nil {
		return err
	}
	ids := lo.SliceToMap(keys, func(k taskKey) (string, string) { return k.Name, k.ID })
	for i := range tasks {
		if id, ok := ids[tasks[i].Name]; ok {
			tasks[i].ID = id
		}
	}
	return nil
}

// ListByBank returns the tasks of a bank ordered by name.
func (r *TaskRepository) ListByBank(ctx context.Context, exec sqlx.ExtContext, bankName string) ([]models.Task, error) {
	const query = `SELECT id, bank_name, name, description, created_at, updated_at FROM tasks WHERE bank_name = $1 ORDER BY name ASC`
	var tasks []models.Task
	if err := sqlx.SelectContext(ctx, r.exec(exec), &tasks, query, bankName); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
