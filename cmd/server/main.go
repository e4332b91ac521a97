package main

import (
	"context"
	"log"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/internal/bootstrap"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/internal/router"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/pkg/logger"
	boardUC "github.com/fastygo/taskboard/usecase/board"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.Listen(context.Background())
	defer cancel()

	board, err := bootstrap.Build(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("table driver setup failed", zap.String("driver", cfg.Table.Driver), zap.Error(err))
	}

	boardUseCase := boardUC.New(board.Adapter, zapLogger)
	loadCtx, loadCancel := context.WithTimeout(appCtx, cfg.Context.RequestTimeout)
	if err := boardUseCase.Load(loadCtx); err != nil {
		// The board stays empty until the monitor or a manual reload succeeds.
		zapLogger.Error("initial board load failed", zap.Error(err))
	}
	loadCancel()

	mon := monitor.New(monitor.Options{
		Driver:    cfg.Table.Driver,
		Interval:  cfg.Monitor.Interval,
		Reconnect: cfg.Table.Driver != config.DriverNone,
		Board:     board.Adapter,
		OnAttach:  boardUseCase.Reload,
		Postgres:  board.Pool,
		Redis:     board.Redis,
		Bolt:      board.Bolt,
	}, zapLogger)
	if err := mon.Start(); err != nil {
		zapLogger.Fatal("monitor start failed", zap.Error(err))
	}
	manager.Register("monitor", mon.Stop)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Board:  apiHandler.NewBoardHandler(boardUseCase, ctxAdapter, zapLogger),
		Page:   apiHandler.NewPageHandler(boardUseCase, cfg.Board.Title, board.Adapter.Attached, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, board.Adapter.Status, cfg.Table.Driver != config.DriverNone, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("driver", cfg.Table.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
