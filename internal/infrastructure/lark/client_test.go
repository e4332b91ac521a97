package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
	"github.com/fastygo/taskboard/repository/memory"
)

const tablePrefix = "/open-apis/bitable/v1/apps/app1/tables/tbl1/"

type fakeLark struct {
	mu         sync.Mutex
	token      string
	tokenCalls int
	fields     []map[string]any
	records    map[string]map[string]json.RawMessage
	order      []string
	lastBody   map[string]json.RawMessage
	hasMore    bool
	failFields bool
	nextID     int
}

func newFakeLark() *fakeLark {
	return &fakeLark{
		token: "t-1",
		fields: []map[string]any{
			{"field_id": "fldN", "field_name": "Name", "type": 1},
			{"field_id": "fldA", "field_name": "Owner", "type": 11},
			{"field_id": "fldE", "field_name": "Due", "type": 5},
			{"field_id": "fldP", "field_name": "Priority", "type": 3, "property": map[string]any{
				"options": []map[string]string{{"id": "optH", "name": "High"}, {"id": "optL", "name": "Low"}},
			}},
			{"field_id": "fldX", "field_name": "Score", "type": 2},
		},
		records: map[string]map[string]json.RawMessage{
			"rec1": {
				"Name":     json.RawMessage(`[{"type":"text","text":"Plan "},{"type":"text","text":"launch"}]`),
				"Owner":    json.RawMessage(`[{"id":"ou_1","name":"An","avatar_url":"https://a/1.png"}]`),
				"Due":      json.RawMessage(`1700000000000`),
				"Priority": json.RawMessage(`"High"`),
				"Score":    json.RawMessage(`5`),
				"Ghost":    json.RawMessage(`"x"`),
			},
		},
		order: []string{"rec1"},
	}
}

func reply(ctx *fasthttp.RequestCtx, status int, v any) {
	body, _ := json.Marshal(v)
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func ok(ctx *fasthttp.RequestCtx, data any) {
	reply(ctx, fasthttp.StatusOK, map[string]any{"code": 0, "msg": "success", "data": data})
}

func (f *fakeLark) handle(ctx *fasthttp.RequestCtx) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := string(ctx.Path())
	method := string(ctx.Method())

	if path == tokenPath {
		f.tokenCalls++
		reply(ctx, fasthttp.StatusOK, map[string]any{"code": 0, "tenant_access_token": f.token, "expire": 7200})
		return
	}
	if string(ctx.Request.Header.Peek("Authorization")) != "Bearer "+f.token {
		reply(ctx, fasthttp.StatusBadRequest, map[string]any{"code": codeTokenInvalid, "msg": "Invalid access token"})
		return
	}

	rest := strings.TrimPrefix(path, tablePrefix)
	switch {
	case rest == "fields" && method == fasthttp.MethodGet:
		if f.failFields {
			reply(ctx, fasthttp.StatusOK, map[string]any{"code": 91402, "msg": "NOTEXIST"})
			return
		}
		ok(ctx, map[string]any{"items": f.fields, "has_more": false})

	case rest == "records" && method == fasthttp.MethodGet:
		items := make([]map[string]any, 0, len(f.order))
		for _, id := range f.order {
			items = append(items, map[string]any{"record_id": id, "fields": f.records[id]})
		}
		ok(ctx, map[string]any{"items": items, "has_more": f.hasMore, "total": len(items)})

	case rest == "records" && method == fasthttp.MethodPost:
		fields := f.decodeBody(ctx)
		f.nextID++
		id := fmt.Sprintf("recNew%d", f.nextID)
		f.records[id] = fields
		f.order = append(f.order, id)
		ok(ctx, map[string]any{"record": map[string]any{"record_id": id, "fields": fields}})

	case strings.HasPrefix(rest, "records/"):
		id := strings.TrimPrefix(rest, "records/")
		rec, exists := f.records[id]
		if !exists {
			reply(ctx, fasthttp.StatusOK, map[string]any{"code": codeRecordNotFound, "msg": "RecordIdNotFound"})
			return
		}
		switch method {
		case fasthttp.MethodPut:
			for k, v := range f.decodeBody(ctx) {
				rec[k] = v
			}
			ok(ctx, map[string]any{"record": map[string]any{"record_id": id, "fields": rec}})
		case fasthttp.MethodDelete:
			delete(f.records, id)
			for i, rid := range f.order {
				if rid == id {
					f.order = append(f.order[:i], f.order[i+1:]...)
					break
				}
			}
			ok(ctx, map[string]any{"deleted": true, "record_id": id})
		}

	default:
		reply(ctx, fasthttp.StatusNotFound, map[string]any{"code": 404, "msg": "not found"})
	}
}

func (f *fakeLark) decodeBody(ctx *fasthttp.RequestCtx) map[string]json.RawMessage {
	var body struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	_ = json.Unmarshal(ctx.PostBody(), &body)
	f.lastBody = body.Fields
	return body.Fields
}

func newTestClient(t *testing.T) (*Client, *fakeLark) {
	t.Helper()
	fake := newFakeLark()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: fake.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	c := New(Config{
		BaseURL:   "http://lark.test",
		AppID:     "cli_1",
		AppSecret: "secret",
		AppToken:  "app1",
		TableID:   "tbl1",
		Timeout:   2 * time.Second,
	}, memory.NewTokenRepository(), nil)
	c.http.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	return c, fake
}

func TestClient_FieldList(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	fields, err := c.FieldList(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 5)

	types := map[string]hosttable.FieldType{}
	for _, f := range fields {
		types[f.Name] = f.Type
	}
	assert.Equal(t, map[string]hosttable.FieldType{
		"Name":     hosttable.FieldTypeText,
		"Owner":    hosttable.FieldTypeUser,
		"Due":      hosttable.FieldTypeDateTime,
		"Priority": hosttable.FieldTypeSingleSelect,
		"Score":    hosttable.FieldTypeUnknown,
	}, types)

	priority, err := c.Field(ctx, "fldP")
	require.NoError(t, err)
	assert.Equal(t, []string{"High", "Low"}, priority.OptionNames())

	_, err = c.Field(ctx, "fldMissing")
	assert.ErrorIs(t, err, hosttable.ErrFieldNotFound)

	assert.Equal(t, 1, fake.tokenCalls, "token is cached between calls")
}

func TestClient_RecordList(t *testing.T) {
	c, fake := newTestClient(t)
	fake.hasMore = true

	records, err := c.RecordList(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "rec1", rec.ID)
	assert.Equal(t, hosttable.TextValue{Text: "Plan launch"}, rec.Fields["fldN"])
	assert.Equal(t, hosttable.UserListValue{Entries: []hosttable.UserEntry{
		{ID: "ou_1", Name: "An", AvatarURL: "https://a/1.png"},
	}}, rec.Fields["fldA"])
	assert.Equal(t, hosttable.SelectValue{Text: "High"}, rec.Fields["fldP"])

	due, isDate := rec.Fields["fldE"].(hosttable.DateValue)
	require.True(t, isDate)
	assert.Equal(t, int64(1_700_000_000_000), due.Instant.UnixMilli())

	assert.NotContains(t, rec.Fields, "fldX", "unsupported field types are skipped")
	assert.Len(t, rec.Fields, 4)
}

func TestClient_Writes(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	id, err := c.AddRecord(ctx, hosttable.Fields{
		"fldN": hosttable.TextValue{Text: "Ship"},
		"fldP": hosttable.TextValue{Text: "Low"},
		"fldE": hosttable.NullValue{},
		"fldA": hosttable.UserListValue{Entries: []hosttable.UserEntry{{ID: "ou_2"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recNew1", id)
	assert.JSONEq(t, `"Ship"`, string(fake.lastBody["Name"]))
	assert.JSONEq(t, `"Low"`, string(fake.lastBody["Priority"]))
	assert.JSONEq(t, `null`, string(fake.lastBody["Due"]))
	assert.JSONEq(t, `[{"id":"ou_2"}]`, string(fake.lastBody["Owner"]))

	require.NoError(t, c.SetRecord(ctx, "rec1", hosttable.Fields{"fldP": hosttable.TextValue{Text: "Low"}}))
	assert.Len(t, fake.lastBody, 1, "only the given fields are sent")
	assert.JSONEq(t, `"Low"`, string(fake.records["rec1"]["Priority"]))
	assert.JSONEq(t, `1700000000000`, string(fake.records["rec1"]["Due"]))

	require.NoError(t, c.DeleteRecord(ctx, "rec1"))
	assert.NotContains(t, fake.records, "rec1")

	err = c.SetRecord(ctx, "rec1", hosttable.Fields{"fldN": hosttable.TextValue{Text: "x"}})
	assert.ErrorIs(t, err, hosttable.ErrRecordNotFound)
	err = c.DeleteRecord(ctx, "rec1")
	assert.ErrorIs(t, err, hosttable.ErrRecordNotFound)

	_, err = c.AddRecord(ctx, hosttable.Fields{"fldZ": hosttable.TextValue{Text: "x"}})
	assert.ErrorIs(t, err, hosttable.ErrFieldNotFound)
}

func TestClient_APIError(t *testing.T) {
	c, fake := newTestClient(t)
	fake.failFields = true

	_, err := c.FieldList(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 91402, apiErr.Code)
	assert.NotErrorIs(t, err, hosttable.ErrRecordNotFound)
}

func TestClient_RejectedTokenIsEvicted(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.tokens.Save(ctx, c.tokenKey(), "stale", time.Hour))

	_, err := c.FieldList(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, fake.tokenCalls)

	_, err = c.FieldList(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.tokenCalls)
}

func TestClient_ContextCanceled(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RecordList(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
