// Package monitor checks the board's backends on a cron schedule and
// re-attaches a host table that failed to initialize.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/infrastructure/filetable"
)

// Board is the part of the table adapter the monitor drives.
type Board interface {
	Attached() bool
	Init(ctx context.Context) error
}

type Options struct {
	Driver   string
	Interval time.Duration
	// Reconnect enables background Init while the board is detached.
	Reconnect bool
	Board     Board
	// OnAttach runs after a background Init succeeds, typically a board reload.
	OnAttach func(ctx context.Context) error
	Postgres *pgxpool.Pool
	Redis    *redislib.Client
	Bolt     *filetable.Store
}

type Monitor struct {
	opts   Options
	cron   *cron.Cron
	logger *zap.Logger

	mu     sync.RWMutex
	status Status
}

func New(opts Options, logger *zap.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("monitor")
	return &Monitor{
		opts: opts,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger.Sugar()}),
			cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
		)),
		logger: logger,
	}
}

// Start schedules the check and runs the first one in the background.
func (m *Monitor) Start() error {
	schedule := fmt.Sprintf("@every %s", m.opts.Interval)
	if _, err := m.cron.AddFunc(schedule, func() { m.Refresh(context.Background()) }); err != nil {
		return fmt.Errorf("monitor: schedule %q: %w", schedule, err)
	}
	m.cron.Start()
	go m.Refresh(context.Background())
	return nil
}

// Stop waits for a running check to finish.
func (m *Monitor) Stop(ctx context.Context) error {
	select {
	case <-m.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.status
	st.Services = make(map[string]bool, len(m.status.Services))
	for k, v := range m.status.Services {
		st.Services[k] = v
	}
	return st
}

// Refresh runs one round of checks.
func (m *Monitor) Refresh(ctx context.Context) {
	status := Status{
		Driver:    m.opts.Driver,
		Services:  map[string]bool{},
		LastCheck: time.Now(),
	}

	if m.opts.Board != nil {
		status.Attached = m.opts.Board.Attached()
		if !status.Attached && m.opts.Reconnect {
			if err := m.reattach(ctx); err != nil {
				status.LastError = err.Error()
			} else {
				status.Attached = true
			}
		}
	}
	if m.opts.Postgres != nil {
		status.Services["postgresql"] = m.checkPostgres(ctx)
	}
	if m.opts.Redis != nil {
		status.Services["redis"] = m.checkRedis(ctx)
	}
	if m.opts.Bolt != nil {
		size, err := m.opts.Bolt.Size()
		status.Services["boltdb"] = err == nil
		if err == nil {
			status.Records = &size
		}
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) reattach(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, m.opts.Interval)
	defer cancel()
	if err := m.opts.Board.Init(initCtx); err != nil {
		m.logger.Warn("host table still detached", zap.Error(err))
		return err
	}
	m.logger.Info("host table reattached")
	if m.opts.OnAttach != nil {
		if err := m.opts.OnAttach(initCtx); err != nil {
			m.logger.Error("reload after reattach failed", zap.Error(err))
		}
	}
	return nil
}

func (m *Monitor) checkPostgres(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.opts.Postgres.Ping(ctx) == nil
}

func (m *Monitor) checkRedis(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.opts.Redis.Ping(ctx).Err() == nil
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
