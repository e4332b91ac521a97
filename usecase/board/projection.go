package board

import "github.com/fastygo/taskboard/domain"

const (
	UnassignedColumnID = "unassigned"
	UngroupedColumnID  = "ungrouped"

	unassignedTitle = "Unassigned"
	ungroupedTitle  = "Other"
)

// Project partitions tasks into columns. By group it yields one column per
// group, plus a trailing "Other" column only when some task names a group
// that is not in the list. By assignee it yields one column per user and a
// trailing "Unassigned" column.
func Project(tasks []domain.Task, users []domain.User, groups []string, mode domain.GroupMode) []domain.Column {
	if mode == domain.GroupByAssignee {
		return byAssignee(tasks, users)
	}
	return byGroup(tasks, groups)
}

func byGroup(tasks []domain.Task, groups []string) []domain.Column {
	columns := make([]domain.Column, 0, len(groups)+1)
	index := make(map[string]int, len(groups))
	for _, g := range groups {
		if _, dup := index[g]; dup {
			continue
		}
		index[g] = len(columns)
		columns = append(columns, domain.Column{ID: g, Title: g, Tasks: []domain.Task{}})
	}

	var other []domain.Task
	for _, t := range tasks {
		if i, ok := index[t.Group]; ok {
			columns[i].Tasks = append(columns[i].Tasks, t)
			continue
		}
		other = append(other, t)
	}

	if len(other) > 0 {
		columns = append(columns, domain.Column{ID: UngroupedColumnID, Title: ungroupedTitle, Tasks: other})
	}
	return columns
}

func byAssignee(tasks []domain.Task, users []domain.User) []domain.Column {
	columns := make([]domain.Column, 0, len(users)+1)
	index := make(map[string]int, len(users))
	for _, u := range users {
		if _, dup := index[u.ID]; dup {
			continue
		}
		index[u.ID] = len(columns)
		columns = append(columns, domain.Column{ID: u.ID, Title: u.Name, Tasks: []domain.Task{}})
	}

	unassigned := domain.Column{ID: UnassignedColumnID, Title: unassignedTitle, Tasks: []domain.Task{}}
	for _, t := range tasks {
		if t.Assignee == nil {
			unassigned.Tasks = append(unassigned.Tasks, t)
			continue
		}
		if i, ok := index[t.Assignee.ID]; ok {
			columns[i].Tasks = append(columns[i].Tasks, t)
		}
	}
	return append(columns, unassigned)
}
