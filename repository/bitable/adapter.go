// Package bitable adapts a host table (Lark Base or a self-hosted driver) to
// the board repository. It owns the display-name to field-id resolution and
// the record <-> task mapping, and serves sample data while detached.
package bitable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
	"github.com/fastygo/taskboard/repository"
)

// ErrDetached is returned by Init when no host table was configured.
var ErrDetached = errors.New("bitable: no host table configured")

// Options tunes the adapter. Zero values fall back to defaults.
type Options struct {
	Names  FieldNames
	Users  []domain.User
	Groups []string

	MinRetry time.Duration
	MaxRetry time.Duration

	Now func() time.Time
}

// Status is a point-in-time view of the adapter connection.
type Status struct {
	Configured  bool      `json:"configured"`
	Attached    bool      `json:"attached"`
	Failures    int       `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
	NextAttempt time.Time `json:"next_attempt,omitempty"`
	FieldMap    FieldMap  `json:"field_map,omitempty"`
}

// Adapter implements repository.BoardRepository over a hosttable.Table.
type Adapter struct {
	table  hosttable.Table
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	fieldMap    FieldMap
	failures    int
	lastErr     error
	nextAttempt time.Time
}

// New builds an adapter. A nil table keeps the adapter detached for its
// whole lifetime.
func New(table hosttable.Table, opts Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Names) == 0 {
		opts.Names = DefaultFieldNames()
	}
	if len(opts.Users) == 0 {
		opts.Users = DefaultUsers()
	}
	if len(opts.Groups) == 0 {
		opts.Groups = DefaultGroups()
	}
	if opts.MinRetry <= 0 {
		opts.MinRetry = time.Second
	}
	if opts.MaxRetry < opts.MinRetry {
		opts.MaxRetry = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Adapter{
		table:  table,
		opts:   opts,
		logger: logger.Named("bitable"),
	}
}

// Init resolves the field map. It is a no-op once it has succeeded and
// ignores the retry backoff, so callers can force a reconnect.
func (a *Adapter) Init(ctx context.Context) error {
	if a.table == nil {
		return ErrDetached
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}
	return a.initLocked(ctx)
}

// Attached reports whether the field map has been resolved.
func (a *Adapter) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// Status reports connection details for health checks.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{
		Configured: a.table != nil,
		Attached:   a.initialized,
		Failures:   a.failures,
	}
	if a.lastErr != nil {
		st.LastError = a.lastErr.Error()
		st.NextAttempt = a.nextAttempt
	}
	if a.initialized {
		st.FieldMap = a.fieldMap.clone()
	}
	return st
}

// FieldMap returns a copy of the resolved field ids.
func (a *Adapter) FieldMap() FieldMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fieldMap.clone()
}

// Names returns the display names the adapter resolves against.
func (a *Adapter) Names() FieldNames {
	return a.opts.Names
}

func (a *Adapter) initLocked(ctx context.Context) error {
	fields, err := a.table.FieldList(ctx)
	if err != nil {
		a.failures++
		a.lastErr = err
		a.nextAttempt = a.opts.Now().Add(a.backoff())
		a.logger.Error("host table initialization failed",
			zap.Int("failures", a.failures),
			zap.Time("next_attempt", a.nextAttempt),
			zap.Error(err))
		return fmt.Errorf("init host table: %w", err)
	}

	fm, missing := resolveFieldMap(a.opts.Names, fields)
	for _, key := range missing {
		a.logger.Warn("host field not found, check the column name in the table",
			zap.String("key", string(key)),
			zap.String("name", a.opts.Names[key]))
	}

	a.fieldMap = fm
	a.initialized = true
	a.failures = 0
	a.lastErr = nil
	a.nextAttempt = time.Time{}
	a.logger.Info("host table attached", zap.Int("resolved", len(fm)), zap.Int("missing", len(missing)))
	return nil
}

func (a *Adapter) backoff() time.Duration {
	d := a.opts.MinRetry
	for i := 1; i < a.failures && d < a.opts.MaxRetry; i++ {
		d *= 2
	}
	if d > a.opts.MaxRetry {
		d = a.opts.MaxRetry
	}
	return d
}

// ensureInit returns the field map when attached. Failed attempts are
// retried on later calls once the backoff window has passed.
func (a *Adapter) ensureInit(ctx context.Context) (FieldMap, bool) {
	if a.table == nil {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return a.fieldMap, true
	}
	if a.opts.Now().Before(a.nextAttempt) {
		return nil, false
	}
	if err := a.initLocked(ctx); err != nil {
		return nil, false
	}
	return a.fieldMap, true
}

func (a *Adapter) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	fm, ok := a.ensureInit(ctx)
	if !ok {
		return sampleTasks(a.opts.Now()), nil
	}

	records, err := a.table.RecordList(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, "list host records", err)
	}

	tasks := make([]domain.Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, recordToTask(rec, fm))
	}
	return tasks, nil
}

func (a *Adapter) FetchUsers(ctx context.Context) ([]domain.User, error) {
	users := make([]domain.User, len(a.opts.Users))
	copy(users, a.opts.Users)
	return users, nil
}

func (a *Adapter) FetchGroups(ctx context.Context) ([]string, error) {
	fm, ok := a.ensureInit(ctx)
	if !ok {
		groups := make([]string, len(a.opts.Groups))
		copy(groups, a.opts.Groups)
		return groups, nil
	}

	id, ok := fm[FieldGroup]
	if !ok {
		return []string{}, nil
	}
	field, err := a.table.Field(ctx, id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, "read group field", err)
	}
	groups := field.OptionNames()
	if groups == nil {
		groups = []string{}
	}
	return groups, nil
}

func (a *Adapter) CreateTask(ctx context.Context, patch domain.TaskPatch) (domain.Task, error) {
	var task domain.Task
	patch.Apply(&task)

	fm, ok := a.ensureInit(ctx)
	if !ok {
		task.ID = a.localID()
		return task, nil
	}

	fields := a.toFields(patch, fm)
	id, err := a.table.AddRecord(ctx, fields)
	if err != nil {
		return domain.Task{}, domain.WrapError(domain.ErrCodeUpstream, "add host record", err)
	}
	task.ID = id
	return task, nil
}

func (a *Adapter) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error {
	fm, ok := a.ensureInit(ctx)
	if !ok {
		return nil
	}

	fields := a.toFields(patch, fm)
	if len(fields) == 0 {
		return nil
	}
	if err := a.table.SetRecord(ctx, id, fields); err != nil {
		return a.writeError("update host record", err)
	}
	return nil
}

func (a *Adapter) DeleteTask(ctx context.Context, id string) error {
	if _, ok := a.ensureInit(ctx); !ok {
		return nil
	}
	if err := a.table.DeleteRecord(ctx, id); err != nil {
		return a.writeError("delete host record", err)
	}
	return nil
}

func (a *Adapter) toFields(patch domain.TaskPatch, fm FieldMap) hosttable.Fields {
	fields, dropped := patchToFields(patch, fm)
	for _, key := range dropped {
		a.logger.Debug("dropping write to unresolved field", zap.String("key", string(key)))
	}
	return fields
}

func (a *Adapter) writeError(msg string, err error) error {
	if errors.Is(err, hosttable.ErrRecordNotFound) {
		return domain.WrapError(domain.ErrCodeNotFound, msg, err)
	}
	return domain.WrapError(domain.ErrCodeUpstream, msg, err)
}

func (a *Adapter) localID() string {
	return fmt.Sprintf("local-%d-%s", a.opts.Now().UnixMilli(), uuid.NewString()[:8])
}

var _ repository.BoardRepository = (*Adapter)(nil)
