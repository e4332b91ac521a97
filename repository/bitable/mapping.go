package bitable

import (
	"time"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
)

const untitled = "Untitled"

// recordToTask maps a host row onto a task, falling back to defaults for
// absent or unresolved fields.
func recordToTask(rec hosttable.Record, fm FieldMap) domain.Task {
	get := func(key FieldKey) hosttable.Value {
		id, ok := fm[key]
		if !ok {
			return nil
		}
		return rec.Fields[id]
	}

	task := domain.Task{
		ID:            rec.ID,
		Name:          untitled,
		Assignee:      userFromValue(get(FieldAssignee)),
		StartDate:     dateFromValue(get(FieldStart)),
		EndDate:       dateFromValue(get(FieldEnd)),
		CompletedDate: dateFromValue(get(FieldComplete)),
		Group:         domain.DefaultGroup,
		Priority:      domain.PriorityMedium,
	}
	if name := textFromValue(get(FieldName)); name != "" {
		task.Name = name
	}
	if group := textFromValue(get(FieldGroup)); group != "" {
		task.Group = group
	}
	if priority := textFromValue(get(FieldPriority)); priority != "" {
		task.Priority = domain.Priority(priority)
	}
	return task
}

// patchToFields translates the present patch fields into host values.
// Keys whose host field was not resolved are dropped.
func patchToFields(patch domain.TaskPatch, fm FieldMap) (hosttable.Fields, []FieldKey) {
	fields := hosttable.Fields{}
	var dropped []FieldKey

	put := func(key FieldKey, v hosttable.Value) {
		id, ok := fm[key]
		if !ok {
			dropped = append(dropped, key)
			return
		}
		fields[id] = v
	}

	if patch.Name.Present {
		put(FieldName, hosttable.TextValue{Text: patch.Name.Value})
	}
	if patch.Assignee.Present {
		if u := patch.Assignee.Value; u != nil {
			put(FieldAssignee, hosttable.UserListValue{Entries: []hosttable.UserEntry{{ID: u.ID}}})
		} else {
			put(FieldAssignee, hosttable.NullValue{})
		}
	}
	if patch.StartDate.Present {
		put(FieldStart, dateValue(patch.StartDate.Value))
	}
	if patch.EndDate.Present {
		put(FieldEnd, dateValue(patch.EndDate.Value))
	}
	if patch.CompletedDate.Present {
		put(FieldComplete, dateValue(patch.CompletedDate.Value))
	}
	if patch.Group.Present {
		put(FieldGroup, hosttable.TextValue{Text: patch.Group.Value})
	}
	if patch.Priority.Present {
		put(FieldPriority, hosttable.TextValue{Text: string(patch.Priority.Value)})
	}
	return fields, dropped
}

func textFromValue(v hosttable.Value) string {
	switch val := v.(type) {
	case hosttable.SelectValue:
		return val.Text
	case hosttable.TextValue:
		return val.Text
	default:
		return ""
	}
}

func userFromValue(v hosttable.Value) *domain.User {
	list, ok := v.(hosttable.UserListValue)
	if !ok || len(list.Entries) == 0 {
		return nil
	}
	first := list.Entries[0]
	return &domain.User{ID: first.ID, Name: first.Name, AvatarURL: first.AvatarURL}
}

func dateFromValue(v hosttable.Value) *time.Time {
	d, ok := v.(hosttable.DateValue)
	if !ok {
		return nil
	}
	t := d.Instant
	return &t
}

func dateValue(t *time.Time) hosttable.Value {
	if t == nil {
		return hosttable.NullValue{}
	}
	return hosttable.DateValue{Instant: *t}
}
