package repository

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

// BoardRepository is the single boundary between the board and the external
// table that stores its tasks.
type BoardRepository interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	FetchUsers(ctx context.Context) ([]domain.User, error)
	FetchGroups(ctx context.Context) ([]string, error)
	CreateTask(ctx context.Context, patch domain.TaskPatch) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error
}
