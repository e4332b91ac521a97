package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{name: "no due date", task: Task{}, want: false},
		{name: "due in the past", task: Task{EndDate: ptr(now.Add(-time.Hour))}, want: true},
		{name: "due in the future", task: Task{EndDate: ptr(now.Add(time.Hour))}, want: false},
		{name: "due exactly now", task: Task{EndDate: ptr(now)}, want: false},
		{
			name: "past due but completed",
			task: Task{EndDate: ptr(now.Add(-time.Hour)), CompletedDate: ptr(now.Add(-2 * time.Hour))},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.task.EndDate != nil && tt.task.CompletedDate == nil && tt.task.EndDate.Before(now)
			assert.Equal(t, want, tt.task.IsOverdue(now))
			assert.Equal(t, tt.want, tt.task.IsOverdue(now))
		})
	}

	var nilTask *Task
	assert.False(t, nilTask.IsOverdue(now))
}

func TestTask_IsCompleted(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Task{}).IsCompleted())
	assert.True(t, (&Task{CompletedDate: &now}).IsCompleted())
	assert.False(t, (*Task)(nil).IsCompleted())
}

func TestTaskPatch_Apply(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	task := Task{
		ID:        "rec1",
		Name:      "Write docs",
		Assignee:  &User{ID: "u1", Name: "User A"},
		StartDate: &start,
		Group:     "Design",
		Priority:  PriorityHigh,
	}

	patch := TaskPatch{Priority: Some(PriorityLow)}
	patch.Apply(&task)

	assert.Equal(t, PriorityLow, task.Priority)
	assert.Equal(t, "Write docs", task.Name)
	require.NotNil(t, task.Assignee)
	assert.Equal(t, "u1", task.Assignee.ID)
	assert.Equal(t, "Design", task.Group)

	TaskPatch{Assignee: Some[*User](nil), StartDate: Some[*time.Time](nil)}.Apply(&task)
	assert.Nil(t, task.Assignee)
	assert.Nil(t, task.StartDate)
}

func TestTaskPatch_ApplyCopiesPointers(t *testing.T) {
	due := time.UnixMilli(1_700_000_000_000)
	user := &User{ID: "u2", Name: "User B"}
	var task Task

	TaskPatch{Assignee: Some(user), EndDate: Some(&due)}.Apply(&task)
	user.Name = "changed"
	due = due.Add(time.Hour)

	assert.Equal(t, "User B", task.Assignee.Name)
	assert.Equal(t, int64(1_700_000_000_000), task.EndDate.UnixMilli())
}

func TestTaskPatch_IsEmpty(t *testing.T) {
	assert.True(t, TaskPatch{}.IsEmpty())
	assert.False(t, TaskPatch{Group: Some("QA")}.IsEmpty())
}

func TestParseGroupMode(t *testing.T) {
	mode, err := ParseGroupMode("")
	require.NoError(t, err)
	assert.Equal(t, GroupByGroup, mode)

	mode, err = ParseGroupMode(" Assignee ")
	require.NoError(t, err)
	assert.Equal(t, GroupByAssignee, mode)

	_, err = ParseGroupMode("status")
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
}

func TestColumn_MarshalJSON(t *testing.T) {
	body, err := json.Marshal(Column{ID: "A", Title: "A"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"A","title":"A","tasks":[],"count":0}`, string(body))

	body, err = json.Marshal(Column{ID: "B", Title: "B", Tasks: []Task{{ID: "1", Name: "x", Group: "B", Priority: PriorityLow}}})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, float64(1), decoded["count"])
}

func TestError_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("update: %w", ErrTaskNotFound)
	assert.True(t, errors.Is(err, ErrTaskNotFound))
	assert.True(t, IsDomainError(err, ErrCodeNotFound))
	assert.False(t, errors.Is(err, ErrNameRequired))
}
