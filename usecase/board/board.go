// Package board keeps the in-memory task list of a board session and
// projects it into columns.
package board

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
)

// UseCase holds the board snapshot. Remote writes are applied first and the
// snapshot is only changed after they succeed.
type UseCase struct {
	repo   repository.BoardRepository
	logger *zap.Logger
	now    func() time.Time

	// writeMu keeps writes in the order they were requested.
	writeMu sync.Mutex

	mu     sync.RWMutex
	tasks  []domain.Task
	users  []domain.User
	groups []string
}

func New(repo repository.BoardRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Load fetches tasks, users and groups and replaces the snapshot.
func (uc *UseCase) Load(ctx context.Context) error {
	var (
		tasks  []domain.Task
		users  []domain.User
		groups []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tasks, err = uc.repo.FetchTasks(gctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = uc.repo.FetchUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		groups, err = uc.repo.FetchGroups(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	users = mergeAssignees(users, tasks)

	uc.mu.Lock()
	uc.tasks = tasks
	uc.users = users
	uc.groups = groups
	uc.mu.Unlock()

	logger.FromContext(ctx, uc.logger).Info("board loaded",
		zap.Int("tasks", len(tasks)),
		zap.Int("users", len(users)),
		zap.Int("groups", len(groups)))
	return nil
}

// Reload is Load under the write lock so it does not interleave with edits.
func (uc *UseCase) Reload(ctx context.Context) error {
	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()
	return uc.Load(ctx)
}

// Board projects the current snapshot.
func (uc *UseCase) Board(mode domain.GroupMode) []domain.Column {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return Project(uc.tasks, uc.users, uc.groups, mode)
}

func (uc *UseCase) Tasks() []domain.Task {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]domain.Task, len(uc.tasks))
	copy(out, uc.tasks)
	return out
}

func (uc *UseCase) Users() []domain.User {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]domain.User, len(uc.users))
	copy(out, uc.users)
	return out
}

func (uc *UseCase) Groups() []string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]string, len(uc.groups))
	copy(out, uc.groups)
	return out
}

// Task returns a copy of the task with the given id.
func (uc *UseCase) Task(id string) (domain.Task, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	i := uc.indexOf(id)
	if i < 0 {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return uc.tasks[i], nil
}

// CreateTask validates the name, fills defaults for a new card and inserts
// it remotely before adding it to the snapshot.
func (uc *UseCase) CreateTask(ctx context.Context, patch domain.TaskPatch) (domain.Task, error) {
	name := strings.TrimSpace(patch.Name.Value)
	if !patch.Name.Present || name == "" {
		return domain.Task{}, domain.ErrNameRequired
	}
	patch.Name = domain.Some(name)

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	uc.applyDefaults(&patch)
	uc.resolveAssignee(&patch)

	created, err := uc.repo.CreateTask(ctx, patch)
	if err != nil {
		logger.FromContext(ctx, uc.logger).Error("create task failed", zap.Error(err))
		return domain.Task{}, err
	}

	uc.mu.Lock()
	uc.tasks = append(uc.tasks, created)
	uc.mu.Unlock()

	logger.FromContext(ctx, uc.logger).Info("task created", zap.String("task_id", created.ID))
	return created, nil
}

// UpdateTask writes the present patch fields and then merges them locally.
func (uc *UseCase) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if patch.Name.Present {
		name := strings.TrimSpace(patch.Name.Value)
		if name == "" {
			return domain.Task{}, domain.ErrNameRequired
		}
		patch.Name = domain.Some(name)
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	current, err := uc.Task(id)
	if err != nil {
		return domain.Task{}, err
	}
	if patch.IsEmpty() {
		return current, nil
	}
	uc.resolveAssignee(&patch)

	if err := uc.repo.UpdateTask(ctx, id, patch); err != nil {
		logger.FromContext(ctx, uc.logger).Error("update task failed", zap.String("task_id", id), zap.Error(err))
		return domain.Task{}, err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	i := uc.indexOf(id)
	if i < 0 {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	patch.Apply(&uc.tasks[i])
	logger.FromContext(ctx, uc.logger).Info("task updated", zap.String("task_id", id))
	return uc.tasks[i], nil
}

// DeleteTask removes the row remotely and then drops it from the snapshot.
func (uc *UseCase) DeleteTask(ctx context.Context, id string) error {
	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	if _, err := uc.Task(id); err != nil {
		return err
	}
	if err := uc.repo.DeleteTask(ctx, id); err != nil {
		logger.FromContext(ctx, uc.logger).Error("delete task failed", zap.String("task_id", id), zap.Error(err))
		return err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if i := uc.indexOf(id); i >= 0 {
		uc.tasks = append(uc.tasks[:i:i], uc.tasks[i+1:]...)
	}
	logger.FromContext(ctx, uc.logger).Info("task deleted", zap.String("task_id", id))
	return nil
}

func (uc *UseCase) applyDefaults(patch *domain.TaskPatch) {
	if !patch.Priority.Present || patch.Priority.Value == "" {
		patch.Priority = domain.Some(domain.PriorityMedium)
	}
	if !patch.Group.Present || patch.Group.Value == "" {
		group := domain.DefaultGroup
		uc.mu.RLock()
		if len(uc.groups) > 0 {
			group = uc.groups[0]
		}
		uc.mu.RUnlock()
		patch.Group = domain.Some(group)
	}
	if !patch.StartDate.Present {
		now := uc.now()
		patch.StartDate = domain.Some(&now)
	}
	if !patch.CompletedDate.Present {
		patch.CompletedDate = domain.Some[*time.Time](nil)
	}
}

// resolveAssignee fills in the display name of an assignee given by id only.
func (uc *UseCase) resolveAssignee(patch *domain.TaskPatch) {
	u := patch.Assignee.Value
	if !patch.Assignee.Present || u == nil || u.Name != "" {
		return
	}
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	for _, known := range uc.users {
		if known.ID == u.ID {
			resolved := known
			patch.Assignee = domain.Some(&resolved)
			return
		}
	}
}

// indexOf must be called with mu held.
func (uc *UseCase) indexOf(id string) int {
	for i := range uc.tasks {
		if uc.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// mergeAssignees appends assignees seen on tasks that are missing from users.
func mergeAssignees(users []domain.User, tasks []domain.Task) []domain.User {
	seen := make(map[string]bool, len(users))
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		seen[u.ID] = true
		out = append(out, u)
	}
	for _, t := range tasks {
		if t.Assignee == nil || t.Assignee.ID == "" || seen[t.Assignee.ID] {
			continue
		}
		seen[t.Assignee.ID] = true
		out = append(out, *t.Assignee)
	}
	return out
}
