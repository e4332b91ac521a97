package bitable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
)

// fakeTable is an in-memory hosttable.Table that records writes.
type fakeTable struct {
	fields  []hosttable.Field
	records []hosttable.Record

	fieldListErr error
	fieldListN   int
	writeErr     error

	added   []hosttable.Fields
	set     map[string]hosttable.Fields
	deleted []string
	nextID  int
}

func newFakeTable(names FieldNames) *fakeTable {
	return &fakeTable{
		fields: DefaultSchema(names, []string{"A", "B"}),
		set:    map[string]hosttable.Fields{},
	}
}

func (f *fakeTable) FieldList(ctx context.Context) ([]hosttable.Field, error) {
	f.fieldListN++
	if f.fieldListErr != nil {
		return nil, f.fieldListErr
	}
	return f.fields, nil
}

func (f *fakeTable) Field(ctx context.Context, id string) (*hosttable.Field, error) {
	for i := range f.fields {
		if f.fields[i].ID == id {
			return &f.fields[i], nil
		}
	}
	return nil, hosttable.ErrFieldNotFound
}

func (f *fakeTable) RecordList(ctx context.Context) ([]hosttable.Record, error) {
	return f.records, nil
}

func (f *fakeTable) AddRecord(ctx context.Context, fields hosttable.Fields) (string, error) {
	if f.writeErr != nil {
		return "", f.writeErr
	}
	f.nextID++
	f.added = append(f.added, fields)
	return "rec" + string(rune('0'+f.nextID)), nil
}

func (f *fakeTable) SetRecord(ctx context.Context, id string, fields hosttable.Fields) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.set[id] = fields
	return nil
}

func (f *fakeTable) DeleteRecord(ctx context.Context, id string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func attachedAdapter(t *testing.T, table *fakeTable) *Adapter {
	t.Helper()
	a := New(table, Options{}, nil)
	require.NoError(t, a.Init(context.Background()))
	return a
}

func TestAdapter_InitResolvesFieldMap(t *testing.T) {
	table := newFakeTable(DefaultFieldNames())
	a := attachedAdapter(t, table)

	fm := a.FieldMap()
	assert.Len(t, fm, len(FieldKeys))
	assert.Equal(t, "fld_group", fm[FieldGroup])
	assert.True(t, a.Attached())

	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, 1, table.fieldListN, "init runs once")
}

func TestAdapter_InitMissingFieldsAreAbsent(t *testing.T) {
	names := DefaultFieldNames()
	names[FieldGroup] = "Category"
	table := newFakeTable(names)

	a := New(table, Options{}, nil)
	require.NoError(t, a.Init(context.Background()))

	fm := a.FieldMap()
	_, ok := fm[FieldGroup]
	assert.False(t, ok)
	assert.Len(t, fm, len(FieldKeys)-1)

	groups, err := a.FetchGroups(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestAdapter_InitIsCaseSensitive(t *testing.T) {
	table := newFakeTable(DefaultFieldNames())
	table.fields[0].Name = "tên công việc"

	a := attachedAdapter(t, table)
	_, ok := a.FieldMap()[FieldName]
	assert.False(t, ok)
}

func TestAdapter_Detached(t *testing.T) {
	ctx := context.Background()
	a := New(nil, Options{}, nil)

	assert.ErrorIs(t, a.Init(ctx), ErrDetached)
	assert.False(t, a.Attached())

	tasks, err := a.FetchTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "mock1", tasks[0].ID)
	assert.Equal(t, domain.PriorityHigh, tasks[0].Priority)

	groups, err := a.FetchGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Development", "Design", "Marketing", "QA"}, groups)

	users, err := a.FetchUsers(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, users)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		task, err := a.CreateTask(ctx, domain.TaskPatch{Name: domain.Some("n")})
		require.NoError(t, err)
		require.NotEmpty(t, task.ID)
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
		assert.Equal(t, "n", task.Name)
	}

	assert.NoError(t, a.UpdateTask(ctx, "x", domain.TaskPatch{Name: domain.Some("y")}))
	assert.NoError(t, a.DeleteTask(ctx, "x"))
}

func TestAdapter_InitFailureFallsBackAndRetries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := newFakeTable(DefaultFieldNames())
	table.fieldListErr = errors.New("host unreachable")

	a := New(table, Options{Now: func() time.Time { return now }, MinRetry: time.Second, MaxRetry: 4 * time.Second}, nil)

	require.Error(t, a.Init(ctx))
	tasks, err := a.FetchTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock1", tasks[0].ID)
	assert.Equal(t, 1, table.fieldListN, "backoff window suppresses retry")

	st := a.Status()
	assert.True(t, st.Configured)
	assert.False(t, st.Attached)
	assert.Equal(t, 1, st.Failures)
	assert.Contains(t, st.LastError, "host unreachable")

	now = now.Add(2 * time.Second)
	_, _ = a.FetchGroups(ctx)
	assert.Equal(t, 2, table.fieldListN)
	assert.Equal(t, now.Add(2*time.Second), a.Status().NextAttempt, "backoff doubles")

	table.fieldListErr = nil
	now = now.Add(time.Minute)
	table.records = []hosttable.Record{{ID: "rec1", Fields: hosttable.Fields{"fld_name": hosttable.TextValue{Text: "Real"}}}}
	tasks, err = a.FetchTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Real", tasks[0].Name)
	assert.True(t, a.Attached())
	assert.Zero(t, a.Status().Failures)
}

func TestAdapter_BackoffIsCapped(t *testing.T) {
	a := New(newFakeTable(DefaultFieldNames()), Options{MinRetry: time.Second, MaxRetry: 5 * time.Second}, nil)
	a.failures = 10
	assert.Equal(t, 5*time.Second, a.backoff())
	a.failures = 3
	assert.Equal(t, 4*time.Second, a.backoff())
}

func TestAdapter_FetchTasksMapping(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	table := newFakeTable(DefaultFieldNames())
	table.records = []hosttable.Record{
		{
			ID: "rec1",
			Fields: hosttable.Fields{
				"fld_name":     hosttable.TextValue{Text: "Design review"},
				"fld_assignee": hosttable.UserListValue{Entries: []hosttable.UserEntry{{ID: "ou_1", Name: "An", AvatarURL: "https://a/1.png"}, {ID: "ou_2"}}},
				"fld_start":    hosttable.DateValue{Instant: start},
				"fld_group":    hosttable.SelectValue{ID: "opt1", Text: "B"},
				"fld_priority": hosttable.SelectValue{Text: "High"},
			},
		},
		{
			ID: "rec2",
			Fields: hosttable.Fields{
				"fld_name":     hosttable.TextValue{Text: ""},
				"fld_assignee": hosttable.UserListValue{},
				"fld_group":    hosttable.TextValue{Text: "A"},
				"fld_priority": hosttable.TextValue{Text: "Low"},
			},
		},
		{ID: "rec3", Fields: hosttable.Fields{}},
	}

	a := attachedAdapter(t, table)
	tasks, err := a.FetchTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	first := tasks[0]
	assert.Equal(t, "rec1", first.ID)
	assert.Equal(t, "Design review", first.Name)
	require.NotNil(t, first.Assignee)
	assert.Equal(t, domain.User{ID: "ou_1", Name: "An", AvatarURL: "https://a/1.png"}, *first.Assignee)
	require.NotNil(t, first.StartDate)
	assert.True(t, start.Equal(*first.StartDate))
	assert.Nil(t, first.EndDate)
	assert.Equal(t, "B", first.Group)
	assert.Equal(t, domain.PriorityHigh, first.Priority)

	second := tasks[1]
	assert.Equal(t, "Untitled", second.Name)
	assert.Nil(t, second.Assignee)
	assert.Equal(t, "A", second.Group)
	assert.Equal(t, domain.PriorityLow, second.Priority)

	third := tasks[2]
	assert.Equal(t, "Untitled", third.Name)
	assert.Equal(t, "General", third.Group)
	assert.Equal(t, domain.PriorityMedium, third.Priority)
	assert.Nil(t, third.CompletedDate)
}

func TestAdapter_FetchGroups(t *testing.T) {
	a := attachedAdapter(t, newFakeTable(DefaultFieldNames()))
	groups, err := a.FetchGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, groups)
}

func TestAdapter_UpdateWritesOnlyPresentFields(t *testing.T) {
	table := newFakeTable(DefaultFieldNames())
	a := attachedAdapter(t, table)

	err := a.UpdateTask(context.Background(), "rec1", domain.TaskPatch{Priority: domain.Some(domain.PriorityLow)})
	require.NoError(t, err)

	assert.Equal(t, hosttable.Fields{"fld_priority": hosttable.TextValue{Text: "Low"}}, table.set["rec1"])
}

func TestAdapter_UpdateClearsAssigneeAndDates(t *testing.T) {
	table := newFakeTable(DefaultFieldNames())
	a := attachedAdapter(t, table)

	err := a.UpdateTask(context.Background(), "rec1", domain.TaskPatch{
		Assignee:      domain.Some[*domain.User](nil),
		CompletedDate: domain.Some[*time.Time](nil),
	})
	require.NoError(t, err)
	assert.Equal(t, hosttable.Fields{
		"fld_assignee": hosttable.NullValue{},
		"fld_complete": hosttable.NullValue{},
	}, table.set["rec1"])
}

func TestAdapter_UpdateDropsUnresolvedFields(t *testing.T) {
	names := DefaultFieldNames()
	names[FieldPriority] = "Urgency"
	table := newFakeTable(names)
	a := New(table, Options{}, nil)
	require.NoError(t, a.Init(context.Background()))

	err := a.UpdateTask(context.Background(), "rec1", domain.TaskPatch{Priority: domain.Some(domain.PriorityLow)})
	require.NoError(t, err)
	_, written := table.set["rec1"]
	assert.False(t, written, "nothing left to write")
}

func TestAdapter_CreateTask(t *testing.T) {
	table := newFakeTable(DefaultFieldNames())
	a := attachedAdapter(t, table)

	due := time.UnixMilli(1_700_000_000_000)
	task, err := a.CreateTask(context.Background(), domain.TaskPatch{
		Name:     domain.Some("Launch"),
		Assignee: domain.Some(&domain.User{ID: "ou_9", Name: "Chi"}),
		EndDate:  domain.Some(&due),
		Group:    domain.Some("A"),
		Priority: domain.Some(domain.PriorityMedium),
	})
	require.NoError(t, err)

	assert.Equal(t, "rec1", task.ID)
	assert.Equal(t, "Launch", task.Name)
	assert.Equal(t, "Chi", task.Assignee.Name)

	require.Len(t, table.added, 1)
	assert.Equal(t, hosttable.Fields{
		"fld_name":     hosttable.TextValue{Text: "Launch"},
		"fld_assignee": hosttable.UserListValue{Entries: []hosttable.UserEntry{{ID: "ou_9"}}},
		"fld_end":      hosttable.DateValue{Instant: due},
		"fld_group":    hosttable.TextValue{Text: "A"},
		"fld_priority": hosttable.TextValue{Text: "Medium"},
	}, table.added[0])
}

func TestAdapter_WriteFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	table := newFakeTable(DefaultFieldNames())
	a := attachedAdapter(t, table)
	table.writeErr = errors.New("quota exceeded")

	_, err := a.CreateTask(ctx, domain.TaskPatch{Name: domain.Some("x")})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUpstream))

	err = a.UpdateTask(ctx, "rec1", domain.TaskPatch{Name: domain.Some("x")})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUpstream))

	table.writeErr = hosttable.ErrRecordNotFound
	err = a.DeleteTask(ctx, "rec1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestMapping_RoundTrip(t *testing.T) {
	fm := FieldMap{}
	for i, f := range DefaultSchema(DefaultFieldNames(), nil) {
		fm[FieldKeys[i]] = f.ID
	}

	start := time.UnixMilli(1_690_000_000_000)
	end := time.UnixMilli(1_700_000_000_000)
	done := time.UnixMilli(1_695_000_000_000)
	host := hosttable.Record{
		ID: "rec1",
		Fields: hosttable.Fields{
			"fld_name":     hosttable.TextValue{Text: "Ship"},
			"fld_assignee": hosttable.UserListValue{Entries: []hosttable.UserEntry{{ID: "ou_1", Name: "An"}}},
			"fld_start":    hosttable.DateValue{Instant: start},
			"fld_end":      hosttable.DateValue{Instant: end},
			"fld_complete": hosttable.DateValue{Instant: done},
			"fld_group":    hosttable.SelectValue{ID: "opt1", Text: "Design"},
			"fld_priority": hosttable.SelectValue{Text: "High"},
		},
	}

	task := recordToTask(host, fm)
	assert.Equal(t, domain.Priority("High"), task.Priority)
	assert.Equal(t, "Design", task.Group)

	patch := domain.TaskPatch{
		Name:          domain.Some(task.Name),
		Assignee:      domain.Some(task.Assignee),
		StartDate:     domain.Some(task.StartDate),
		EndDate:       domain.Some(task.EndDate),
		CompletedDate: domain.Some(task.CompletedDate),
		Group:         domain.Some(task.Group),
		Priority:      domain.Some(task.Priority),
	}
	fields, dropped := patchToFields(patch, fm)
	assert.Empty(t, dropped)

	assert.Equal(t, host.Fields["fld_name"], fields["fld_name"])
	assert.Equal(t, host.Fields["fld_start"], fields["fld_start"])
	assert.Equal(t, host.Fields["fld_end"], fields["fld_end"])
	assert.Equal(t, host.Fields["fld_complete"], fields["fld_complete"])

	users, ok := fields["fld_assignee"].(hosttable.UserListValue)
	require.True(t, ok)
	require.Len(t, users.Entries, 1)
	assert.Equal(t, "ou_1", users.Entries[0].ID)

	// Select values unwrap to plain text and are written back as text, not objects.
	assert.Equal(t, hosttable.TextValue{Text: "High"}, fields["fld_priority"])
	assert.Equal(t, hosttable.TextValue{Text: "Design"}, fields["fld_group"])
}

func TestFieldNames_Merge(t *testing.T) {
	merged := DefaultFieldNames().Merge(map[string]string{"GROUP": "Team", "PRIORITY": ""})
	assert.Equal(t, "Team", merged[FieldGroup])
	assert.Equal(t, "Mức độ ưu tiên", merged[FieldPriority])
	assert.Equal(t, "Nhóm công việc", DefaultFieldNames()[FieldGroup])
}
