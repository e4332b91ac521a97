package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskboard/api/handler"
)

type Handlers struct {
	Board  *apiHandler.BoardHandler
	Page   *apiHandler.PageHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()
	if authMiddleware == nil {
		authMiddleware = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}

	r.GET("/", handlers.Page.Index)
	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")

	api.GET("/board", authMiddleware(handlers.Board.GetBoard))
	api.POST("/board/reload", authMiddleware(handlers.Board.Reload))
	api.GET("/users", authMiddleware(handlers.Board.ListUsers))
	api.GET("/groups", authMiddleware(handlers.Board.ListGroups))

	api.GET("/tasks", authMiddleware(handlers.Board.ListTasks))
	api.POST("/tasks", authMiddleware(handlers.Board.CreateTask))
	api.GET("/tasks/{id}", authMiddleware(handlers.Board.GetTask))
	api.PATCH("/tasks/{id}", authMiddleware(handlers.Board.UpdateTask))
	api.PUT("/tasks/{id}", authMiddleware(handlers.Board.UpdateTask))
	api.DELETE("/tasks/{id}", authMiddleware(handlers.Board.DeleteTask))

	return r
}
