package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	boardUC "github.com/fastygo/taskboard/usecase/board"
)

type BoardHandler struct {
	baseHandler
	uc  *boardUC.UseCase
	now func() time.Time
}

func NewBoardHandler(uc *boardUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		now:         time.Now,
	}
}

// @Summary Board columns
// @Tags board
// @Router /api/v1/board [get]
func (h *BoardHandler) GetBoard(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	mode, err := domain.ParseGroupMode(string(ctx.QueryArgs().Peek("by")))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.BoardView{
		Mode:    mode,
		Columns: transport.NewColumnViews(h.uc.Board(mode), h.now()),
	})
}

// @Summary Reload board from the host table
// @Tags board
// @Router /api/v1/board/reload [post]
func (h *BoardHandler) Reload(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Reload(stdCtx); err != nil {
		h.respondError(ctx, stdCtx, domain.WrapError(domain.ErrCodeUpstream, "reload board", err))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int{"tasks": len(h.uc.Tasks())})
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *BoardHandler) ListTasks(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, transport.NewTaskViews(h.uc.Tasks(), h.now()))
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *BoardHandler) GetTask(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Task(taskID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewTaskView(task, h.now()))
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *BoardHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	now := h.now()
	patch, err := transport.DecodeTaskPatch(ctx.PostBody(), now)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	created, err := h.uc.CreateTask(stdCtx, patch)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, transport.NewTaskView(created, now))
}

// @Summary Update task
// @Tags tasks
// @Router /api/v1/tasks/{id} [patch]
func (h *BoardHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	now := h.now()
	patch, err := transport.DecodeTaskPatch(ctx.PostBody(), now)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	updated, err := h.uc.UpdateTask(stdCtx, taskID(ctx), patch)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewTaskView(updated, now))
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *BoardHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	id := taskID(ctx)
	if err := h.uc.DeleteTask(stdCtx, id); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"id": id})
}

// @Summary List users
// @Tags board
// @Router /api/v1/users [get]
func (h *BoardHandler) ListUsers(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.uc.Users())
}

// @Summary List groups
// @Tags board
// @Router /api/v1/groups [get]
func (h *BoardHandler) ListGroups(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.uc.Groups())
}

func taskID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}
