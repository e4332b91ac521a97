package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository/bitable"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func renderFields(w io.Writer, names bitable.FieldNames, status bitable.Status) {
	table := newTable(w, "KEY", "NAME", "FIELD ID", "STATE")
	for _, key := range bitable.FieldKeys {
		id, state := "", "missing"
		switch {
		case !status.Configured:
			state = "detached"
		case !status.Attached:
			state = "unreachable"
		default:
			if fid, ok := status.FieldMap[key]; ok {
				id, state = fid, "resolved"
			}
		}
		table.Append([]string{string(key), names[key], id, state})
	}
	table.Render()
	if status.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", status.LastError)
	}
}

func taskRow(t domain.Task, now time.Time) []string {
	assignee := ""
	if t.Assignee != nil {
		assignee = t.Assignee.Name
		if assignee == "" {
			assignee = t.Assignee.ID
		}
	}
	state := ""
	switch {
	case t.IsCompleted():
		state = "done"
	case t.IsOverdue(now):
		state = "overdue"
	}
	return []string{t.ID, t.Name, t.Group, string(t.Priority), assignee, day(t.StartDate), day(t.EndDate), state}
}

func renderTasks(w io.Writer, tasks []domain.Task, now time.Time) {
	table := newTable(w, "ID", "NAME", "GROUP", "PRIORITY", "ASSIGNEE", "START", "DUE", "STATE")
	for _, t := range tasks {
		table.Append(taskRow(t, now))
	}
	table.Render()
}

func renderBoard(w io.Writer, cols []domain.Column, now time.Time) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", col.Title, col.Count())
		renderTasks(w, col.Tasks, now)
	}
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(time.DateOnly)
}
