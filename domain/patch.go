package domain

import "time"

// Optional carries a value together with whether it was supplied at all.
// A present zero value is different from an absent one.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some marks v as present.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// TaskPatch is a partial task. Only present fields are applied or written.
type TaskPatch struct {
	Name          Optional[string]
	Assignee      Optional[*User]
	StartDate     Optional[*time.Time]
	EndDate       Optional[*time.Time]
	CompletedDate Optional[*time.Time]
	Group         Optional[string]
	Priority      Optional[Priority]
}

// IsEmpty reports whether no field is present.
func (p TaskPatch) IsEmpty() bool {
	return !p.Name.Present &&
		!p.Assignee.Present &&
		!p.StartDate.Present &&
		!p.EndDate.Present &&
		!p.CompletedDate.Present &&
		!p.Group.Present &&
		!p.Priority.Present
}

// Apply merges the present fields into t.
func (p TaskPatch) Apply(t *Task) {
	if t == nil {
		return
	}
	if p.Name.Present {
		t.Name = p.Name.Value
	}
	if p.Assignee.Present {
		t.Assignee = cloneUser(p.Assignee.Value)
	}
	if p.StartDate.Present {
		t.StartDate = cloneTime(p.StartDate.Value)
	}
	if p.EndDate.Present {
		t.EndDate = cloneTime(p.EndDate.Value)
	}
	if p.CompletedDate.Present {
		t.CompletedDate = cloneTime(p.CompletedDate.Value)
	}
	if p.Group.Present {
		t.Group = p.Group.Value
	}
	if p.Priority.Present {
		t.Priority = p.Priority.Value
	}
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
