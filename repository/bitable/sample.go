package bitable

import (
	"time"

	"github.com/fastygo/taskboard/domain"
)

// DefaultUsers is served until users can be read from the host directory.
func DefaultUsers() []domain.User {
	return []domain.User{
		{ID: "u1", Name: "User A"},
		{ID: "u2", Name: "User B"},
		{ID: "u3", Name: "User C"},
	}
}

// DefaultGroups is the group list shown while detached.
func DefaultGroups() []string {
	return []string{"Development", "Design", "Marketing", "QA"}
}

func sampleTasks(now time.Time) []domain.Task {
	start := now
	due := now.Add(24 * time.Hour)
	return []domain.Task{
		{
			ID:        "mock1",
			Name:      "Demo Task (not connected to Lark)",
			Assignee:  &domain.User{ID: "u1", Name: "Dev"},
			StartDate: &start,
			EndDate:   &due,
			Group:     "Development",
			Priority:  domain.PriorityHigh,
		},
	}
}
