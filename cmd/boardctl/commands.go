package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository/bitable"
	"github.com/fastygo/taskboard/usecase/auth"
)

func fieldsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "Show how board fields resolve against the host table",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter := a.board.Adapter
			if err := adapter.Init(cmd.Context()); err != nil && !errors.Is(err, bitable.ErrDetached) {
				return err
			}
			renderFields(a.out, adapter.Names(), adapter.Status())
			return nil
		},
	}
}

func tasksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List every task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			renderTasks(a.out, a.uc.Tasks(), a.now())
			return nil
		},
	}
}

func boardCmd(a *app) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board grouped into columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseGroupMode(by)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			renderBoard(a.out, a.uc.Board(mode), a.now())
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", string(domain.GroupByGroup), "Group columns by group or assignee")
	return cmd
}

func createCmd(a *app) *cobra.Command {
	var name, group, priority, assignee, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := createPatch(name, group, priority, assignee, due)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			task, err := a.uc.CreateTask(cmd.Context(), patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created %s\n", task.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "Task name")
	flags.StringVar(&group, "group", "", "Group, defaults to the first known group")
	flags.StringVar(&priority, "priority", "", "High, Medium or Low")
	flags.StringVar(&assignee, "assignee", "", "Assignee user id")
	flags.StringVar(&due, "due", "", "Due date, YYYY-MM-DD or RFC3339")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			if err := a.uc.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		},
	}
}

// createPatch turns create flags into a patch. Empty flags are left for the
// use case defaults.
func createPatch(name, group, priority, assignee, due string) (domain.TaskPatch, error) {
	patch := domain.TaskPatch{Name: domain.Some(name)}
	if group != "" {
		patch.Group = domain.Some(group)
	}
	if priority != "" {
		p, err := parsePriority(priority)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.Priority = domain.Some(p)
	}
	if assignee != "" {
		patch.Assignee = domain.Some(&domain.User{ID: assignee})
	}
	if due != "" {
		t, err := parseDate(due)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.EndDate = domain.Some(&t)
	}
	return patch, nil
}

func parsePriority(raw string) (domain.Priority, error) {
	for _, p := range domain.Priorities {
		if strings.EqualFold(raw, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", raw)
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC3339", raw)
	}
	return t, nil
}

func tokenCmd(a *app) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:         "token",
		Short:       "Issue a bearer token for the API",
		Annotations: map[string]string{annotationNoTable: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.New(a.cfg.JWT.Secret, a.cfg.JWT.Issuer, a.logger).Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token.Value)
			fmt.Fprintf(os.Stderr, "expires %s\n", token.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "User id recorded as the request actor")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
