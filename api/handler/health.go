package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/repository/bitable"
)

// TableStatus reports the adapter connection, usually (*bitable.Adapter).Status.
type TableStatus func() bitable.Status

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
	table   TableStatus
	// expectAttached is false for the detached driver, which is healthy on sample data.
	expectAttached bool
}

func NewHealthHandler(mon *monitor.Monitor, table TableStatus, expectAttached bool, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler:    newBaseHandler(adapter, logger),
		monitor:        mon,
		table:          table,
		expectAttached: expectAttached,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"driver":    status.Driver,
		"services":  status.Services,
		"checked":   status.LastCheck,
	}
	attached := status.Attached
	if h.table != nil {
		table := h.table()
		attached = table.Attached
		payload["table"] = table
	}
	payload["attached"] = attached
	status.Attached = attached

	if status.Healthy(h.expectAttached) {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
