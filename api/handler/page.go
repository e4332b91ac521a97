package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	boardUC "github.com/fastygo/taskboard/usecase/board"
)

//go:embed templates/board.html
var templatesFS embed.FS

var boardTemplate = template.Must(template.New("board.html").Funcs(template.FuncMap{
	"day":      formatDay,
	"dateOnly": dateOnly,
	"lower":    strings.ToLower,
}).ParseFS(templatesFS, "templates/board.html"))

type pageData struct {
	Title      string
	Mode       domain.GroupMode
	Columns    []transport.ColumnView
	Users      []domain.User
	Groups     []string
	Priorities []domain.Priority
	Attached   bool
}

// PageHandler renders the board as HTML. Edits go through the JSON API.
type PageHandler struct {
	baseHandler
	uc       *boardUC.UseCase
	title    string
	attached func() bool
	now      func() time.Time
}

func NewPageHandler(uc *boardUC.UseCase, title string, attached func() bool, adapter *httpcontext.Adapter, logger *zap.Logger) *PageHandler {
	if attached == nil {
		attached = func() bool { return false }
	}
	return &PageHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		title:       title,
		attached:    attached,
		now:         time.Now,
	}
}

// @Summary Board page
// @Tags board
// @Router / [get]
func (h *PageHandler) Index(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	mode, err := domain.ParseGroupMode(string(ctx.QueryArgs().Peek("by")))
	if err != nil {
		mode = domain.GroupByGroup
	}

	data := pageData{
		Title:      h.title,
		Mode:       mode,
		Columns:    transport.NewColumnViews(h.uc.Board(mode), h.now()),
		Users:      h.uc.Users(),
		Groups:     h.uc.Groups(),
		Priorities: domain.Priorities,
		Attached:   h.attached(),
	}

	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, data); err != nil {
		h.respondError(ctx, stdCtx, domain.WrapError(domain.ErrCodeInternal, "render board", err))
		return
	}
	ctx.Response.Header.SetContentType("text/html; charset=utf-8")
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(buf.Bytes())
}

func formatDay(s *string) string {
	if s == nil {
		return ""
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return ""
	}
	return t.Format("02 Jan 2006")
}

// dateOnly is the value format of <input type="date">.
func dateOnly(s *string) string {
	if s == nil {
		return ""
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}
