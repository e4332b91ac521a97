package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
)

type columnSummary struct {
	ID    string
	Count int
}

func summarize(cols []domain.Column) []columnSummary {
	out := make([]columnSummary, 0, len(cols))
	for _, c := range cols {
		out = append(out, columnSummary{ID: c.ID, Count: c.Count()})
	}
	return out
}

func TestProject_ByGroup(t *testing.T) {
	tasks := []domain.Task{
		{ID: "1", Group: "A"},
		{ID: "2", Group: "B"},
		{ID: "3", Group: "A"},
	}

	cols := Project(tasks, nil, []string{"A", "B"}, domain.GroupByGroup)
	assert.Equal(t, []columnSummary{{"A", 2}, {"B", 1}}, summarize(cols))
	assert.Equal(t, "A", cols[0].Title)
	assert.Equal(t, []string{"1", "3"}, []string{cols[0].Tasks[0].ID, cols[0].Tasks[1].ID})
}

func TestProject_ByGroupIsCaseSensitive(t *testing.T) {
	tasks := []domain.Task{{ID: "1", Group: "a"}}
	cols := Project(tasks, nil, []string{"A"}, domain.GroupByGroup)
	assert.Equal(t, []columnSummary{{"A", 0}, {UngroupedColumnID, 1}}, summarize(cols))
}

func TestProject_ByGroupUnknownGroupsGoToOther(t *testing.T) {
	tasks := []domain.Task{
		{ID: "1", Group: "A"},
		{ID: "2", Group: "General"},
		{ID: "3", Group: "Legacy"},
	}
	cols := Project(tasks, nil, []string{"A", "B"}, domain.GroupByGroup)
	assert.Equal(t, []columnSummary{{"A", 1}, {"B", 0}, {UngroupedColumnID, 2}}, summarize(cols))
	assert.Equal(t, "Other", cols[2].Title)
}

func TestProject_ByGroupEmpty(t *testing.T) {
	cols := Project(nil, nil, []string{"A"}, domain.GroupByGroup)
	require.Len(t, cols, 1)
	assert.NotNil(t, cols[0].Tasks)

	assert.Empty(t, Project(nil, nil, nil, domain.GroupByGroup))
}

func TestProject_ByAssignee(t *testing.T) {
	users := []domain.User{{ID: "u1", Name: "User A"}}
	tasks := []domain.Task{
		{ID: "1", Assignee: &domain.User{ID: "u1"}},
		{ID: "2", Assignee: nil},
	}

	cols := Project(tasks, users, nil, domain.GroupByAssignee)
	assert.Equal(t, []columnSummary{{"u1", 1}, {UnassignedColumnID, 1}}, summarize(cols))
	assert.Equal(t, "User A", cols[0].Title)
	assert.Equal(t, "Unassigned", cols[1].Title)
}

func TestProject_ByAssigneeOrderAndUnknownUsers(t *testing.T) {
	users := []domain.User{{ID: "u2", Name: "B"}, {ID: "u1", Name: "A"}}
	tasks := []domain.Task{
		{ID: "1", Assignee: &domain.User{ID: "u1"}},
		{ID: "2", Assignee: &domain.User{ID: "ghost"}},
		{ID: "3", Assignee: &domain.User{ID: "u2"}},
		{ID: "4", Assignee: &domain.User{ID: "u1"}},
	}

	cols := Project(tasks, users, []string{"ignored"}, domain.GroupByAssignee)
	assert.Equal(t, []columnSummary{{"u2", 1}, {"u1", 2}, {UnassignedColumnID, 0}}, summarize(cols))
}

func TestProject_ByAssigneeNoUsers(t *testing.T) {
	cols := Project([]domain.Task{{ID: "1"}}, nil, nil, domain.GroupByAssignee)
	assert.Equal(t, []columnSummary{{UnassignedColumnID, 1}}, summarize(cols))
}
