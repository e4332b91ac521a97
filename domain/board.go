package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GroupMode selects how tasks are partitioned into columns.
type GroupMode string

const (
	GroupByGroup    GroupMode = "group"
	GroupByAssignee GroupMode = "assignee"
)

// ParseGroupMode accepts "group" or "assignee"; empty means by group.
func ParseGroupMode(raw string) (GroupMode, error) {
	switch GroupMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", GroupByGroup:
		return GroupByGroup, nil
	case GroupByAssignee:
		return GroupByAssignee, nil
	default:
		return "", NewError(ErrCodeInvalid, fmt.Sprintf("unknown group mode %q", raw))
	}
}

// Column is a titled bucket of tasks.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Count returns the number of tasks in the column.
func (c Column) Count() int {
	return len(c.Tasks)
}

func (c Column) MarshalJSON() ([]byte, error) {
	type column Column
	tasks := c.Tasks
	if tasks == nil {
		tasks = []Task{}
	}
	return json.Marshal(struct {
		column
		Tasks []Task `json:"tasks"`
		Count int    `json:"count"`
	}{column: column(c), Tasks: tasks, Count: len(tasks)})
}
