package domain

import "time"

// Priority is the urgency label shown on a card.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists the known priority levels in display order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// DefaultGroup is used when a row carries no group value.
const DefaultGroup = "General"

// Task is a single card on the board, backed by one host table row.
type Task struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Assignee      *User      `json:"assignee"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	CompletedDate *time.Time `json:"completed_date"`
	Group         string     `json:"group"`
	Priority      Priority   `json:"priority"`
}

// IsCompleted reports whether the task has a completion date.
func (t *Task) IsCompleted() bool {
	return t != nil && t.CompletedDate != nil
}

// IsOverdue reports whether the due date passed before now and the task is still open.
func (t *Task) IsOverdue(now time.Time) bool {
	if t == nil || t.EndDate == nil || t.CompletedDate != nil {
		return false
	}
	return t.EndDate.Before(now)
}

// AssigneeID returns the assignee identifier or "" when unassigned.
func (t *Task) AssigneeID() string {
	if t == nil || t.Assignee == nil {
		return ""
	}
	return t.Assignee.ID
}
