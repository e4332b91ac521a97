// Command boardctl inspects and edits the board from a terminal using the
// same configuration and table driver as the server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/bootstrap"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/pkg/logger"
	boardUC "github.com/fastygo/taskboard/usecase/board"
)

var Version = "dev"

// annotationNoTable marks commands that only need configuration.
const annotationNoTable = "no-table"

// app is built once per invocation by the root command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *lifecycle.Manager
	board   *bootstrap.Board
	uc      *boardUC.UseCase
	out     io.Writer
	now     func() time.Time
}

func main() {
	if err := newRootCmd(&app{out: os.Stdout, now: time.Now}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Inspect and edit the task board",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg != nil {
				return nil
			}
			_, noTable := cmd.Annotations[annotationNoTable]
			return a.setup(cmd.Context(), verbose, !noTable)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.manager == nil {
				return nil
			}
			return a.manager.Shutdown(context.Background())
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log adapter activity to stderr")

	root.AddCommand(fieldsCmd(a))
	root.AddCommand(tasksCmd(a))
	root.AddCommand(boardCmd(a))
	root.AddCommand(createCmd(a))
	root.AddCommand(deleteCmd(a))
	root.AddCommand(tokenCmd(a))
	return root
}

func (a *app) setup(ctx context.Context, verbose, withTable bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = zap.NewNop()
	if verbose {
		a.logger, err = logger.New(logger.Config{Level: "debug", Encoding: "console"})
		if err != nil {
			return err
		}
	}

	if !withTable {
		return nil
	}
	a.manager = lifecycle.New(cfg.Context.ShutdownTimeout, a.logger)
	a.board, err = bootstrap.Build(ctx, cfg, a.manager, a.logger)
	if err != nil {
		return err
	}
	a.uc = boardUC.New(a.board.Adapter, a.logger)
	return nil
}

// load attaches the adapter and fills the board snapshot.
func (a *app) load(ctx context.Context) error {
	if err := a.uc.Load(ctx); err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	if !a.board.Adapter.Attached() {
		fmt.Fprintln(os.Stderr, "warning: host table not attached, showing sample data")
	}
	return nil
}
