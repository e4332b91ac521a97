package transport

import (
	"encoding/json"
	"time"

	"github.com/fastygo/taskboard/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// TaskView is a task as served to clients, with derived flags.
type TaskView struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Assignee      *domain.User `json:"assignee"`
	StartDate     *string      `json:"start_date"`
	EndDate       *string      `json:"end_date"`
	CompletedDate *string      `json:"completed_date"`
	Group         string       `json:"group"`
	Priority      string       `json:"priority"`
	Overdue       bool         `json:"overdue"`
	Completed     bool         `json:"completed"`
}

func NewTaskView(t domain.Task, now time.Time) TaskView {
	return TaskView{
		ID:            t.ID,
		Name:          t.Name,
		Assignee:      t.Assignee,
		StartDate:     formatTime(t.StartDate),
		EndDate:       formatTime(t.EndDate),
		CompletedDate: formatTime(t.CompletedDate),
		Group:         t.Group,
		Priority:      string(t.Priority),
		Overdue:       t.IsOverdue(now),
		Completed:     t.IsCompleted(),
	}
}

func NewTaskViews(tasks []domain.Task, now time.Time) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NewTaskView(t, now))
	}
	return out
}

// ColumnView is one board column.
type ColumnView struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Count int        `json:"count"`
	Tasks []TaskView `json:"tasks"`
}

func NewColumnViews(cols []domain.Column, now time.Time) []ColumnView {
	out := make([]ColumnView, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnView{
			ID:    c.ID,
			Title: c.Title,
			Count: c.Count(),
			Tasks: NewTaskViews(c.Tasks, now),
		})
	}
	return out
}

// BoardView is the payload of GET /api/v1/board.
type BoardView struct {
	Mode    domain.GroupMode `json:"mode"`
	Columns []ColumnView     `json:"columns"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
