// Package lark implements hosttable.Table over the Lark Open API (bitable v1).
package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
	"github.com/fastygo/taskboard/repository"
)

const (
	recordPageSize = 500
	fieldPageSize  = 100

	codeRecordNotFound = 1254043
	codeTokenInvalid   = 99991663
	codeTokenMissing   = 99991661
)

// Config points the client at one table of a Base app.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
	Timeout   time.Duration
}

// APIError is a non-zero code returned by the Open API.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark: http %d code %d: %s", e.Status, e.Code, e.Msg)
}

// Is lets callers match record lookups with hosttable.ErrRecordNotFound.
func (e *APIError) Is(target error) bool {
	if target == hosttable.ErrRecordNotFound {
		return e.Code == codeRecordNotFound || e.Status == fasthttp.StatusNotFound
	}
	return false
}

func (e *APIError) tokenRejected() bool {
	return e.Code == codeTokenInvalid || e.Code == codeTokenMissing || e.Status == fasthttp.StatusUnauthorized
}

// Client talks to a single bitable table. Record cells travel keyed by field
// name on the wire; the client translates them to field ids with the field
// list it last fetched.
type Client struct {
	cfg    Config
	http   *fasthttp.Client
	tokens repository.TokenRepository
	logger *zap.Logger

	mu       sync.RWMutex
	byID     map[string]hosttable.Field
	idByName map[string]string
}

func New(cfg Config, tokens repository.TokenRepository, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "taskboard",
			MaxIdleConnDuration: time.Minute,
		},
		tokens: tokens,
		logger: logger.Named("lark"),
	}
}

type larkOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type larkField struct {
	FieldID   string `json:"field_id"`
	FieldName string `json:"field_name"`
	Type      int    `json:"type"`
	Property  *struct {
		Options []larkOption `json:"options"`
	} `json:"property"`
}

type larkRecord struct {
	RecordID string                     `json:"record_id"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

// fieldType maps Lark field type codes onto the logical types the board reads.
func fieldType(code int) hosttable.FieldType {
	switch code {
	case 1:
		return hosttable.FieldTypeText
	case 3:
		return hosttable.FieldTypeSingleSelect
	case 5, 1001, 1002:
		return hosttable.FieldTypeDateTime
	case 11, 1003, 1004:
		return hosttable.FieldTypeUser
	default:
		return hosttable.FieldTypeUnknown
	}
}

func (f larkField) toField() hosttable.Field {
	field := hosttable.Field{
		ID:   f.FieldID,
		Name: f.FieldName,
		Type: fieldType(f.Type),
	}
	if f.Property != nil {
		for _, opt := range f.Property.Options {
			field.Options = append(field.Options, hosttable.Option{ID: opt.ID, Name: opt.Name})
		}
	}
	return field
}

func (c *Client) tablePath(suffix string) string {
	return fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/%s",
		url.PathEscape(c.cfg.AppToken), url.PathEscape(c.cfg.TableID), suffix)
}

// FieldList fetches every field of the table and refreshes the name cache.
func (c *Client) FieldList(ctx context.Context) ([]hosttable.Field, error) {
	var (
		fields    []hosttable.Field
		pageToken string
	)
	for {
		query := url.Values{}
		query.Set("page_size", fmt.Sprint(fieldPageSize))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}
		var page struct {
			Items     []larkField `json:"items"`
			HasMore   bool        `json:"has_more"`
			PageToken string      `json:"page_token"`
		}
		if err := c.call(ctx, fasthttp.MethodGet, c.tablePath("fields")+"?"+query.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, f := range page.Items {
			fields = append(fields, f.toField())
		}
		if !page.HasMore || page.PageToken == "" {
			break
		}
		pageToken = page.PageToken
	}

	c.storeSchema(fields)
	return fields, nil
}

// Field returns a fresh copy of one field so option edits in Lark show up.
func (c *Client) Field(ctx context.Context, id string) (*hosttable.Field, error) {
	fields, err := c.FieldList(ctx)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", hosttable.ErrFieldNotFound, id)
}

// RecordList reads a single page of records.
func (c *Client) RecordList(ctx context.Context) ([]hosttable.Record, error) {
	if err := c.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var page struct {
		Items   []larkRecord `json:"items"`
		HasMore bool         `json:"has_more"`
		Total   int          `json:"total"`
	}
	path := c.tablePath("records") + fmt.Sprintf("?page_size=%d", recordPageSize)
	if err := c.call(ctx, fasthttp.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	if page.HasMore {
		c.logger.Warn("table has more records than one page, the rest are not shown",
			zap.Int("page_size", recordPageSize), zap.Int("total", page.Total))
	}

	records := make([]hosttable.Record, 0, len(page.Items))
	for _, item := range page.Items {
		fields, err := c.decodeRecord(item.Fields)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", item.RecordID, err)
		}
		records = append(records, hosttable.Record{ID: item.RecordID, Fields: fields})
	}
	return records, nil
}

func (c *Client) AddRecord(ctx context.Context, fields hosttable.Fields) (string, error) {
	body, err := c.encodeRecord(ctx, fields)
	if err != nil {
		return "", err
	}
	var out struct {
		Record larkRecord `json:"record"`
	}
	if err := c.call(ctx, fasthttp.MethodPost, c.tablePath("records"), body, &out); err != nil {
		return "", err
	}
	if out.Record.RecordID == "" {
		return "", errors.New("lark: create record returned no id")
	}
	return out.Record.RecordID, nil
}

func (c *Client) SetRecord(ctx context.Context, id string, fields hosttable.Fields) error {
	body, err := c.encodeRecord(ctx, fields)
	if err != nil {
		return err
	}
	return c.call(ctx, fasthttp.MethodPut, c.tablePath("records/"+url.PathEscape(id)), body, nil)
}

func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	return c.call(ctx, fasthttp.MethodDelete, c.tablePath("records/"+url.PathEscape(id)), nil, nil)
}

func (c *Client) ensureSchema(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.byID != nil
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := c.FieldList(ctx)
	return err
}

func (c *Client) storeSchema(fields []hosttable.Field) {
	byID := make(map[string]hosttable.Field, len(fields))
	idByName := make(map[string]string, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
		idByName[f.Name] = f.ID
	}
	c.mu.Lock()
	c.byID = byID
	c.idByName = idByName
	c.mu.Unlock()
}

func (c *Client) decodeRecord(cells map[string]json.RawMessage) (hosttable.Fields, error) {
	c.mu.RLock()
	types := make(map[string]hosttable.FieldType, len(c.byID))
	byID := make(map[string]json.RawMessage, len(cells))
	for name, raw := range cells {
		id, ok := c.idByName[name]
		if !ok {
			continue
		}
		types[id] = c.byID[id].Type
		byID[id] = raw
	}
	c.mu.RUnlock()
	return hosttable.DecodeFields(types, byID)
}

func (c *Client) encodeRecord(ctx context.Context, fields hosttable.Fields) (map[string]any, error) {
	if err := c.ensureSchema(ctx); err != nil {
		return nil, err
	}
	encoded, err := hosttable.EncodeFields(fields)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	byName := make(map[string]json.RawMessage, len(encoded))
	for id, raw := range encoded {
		f, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", hosttable.ErrFieldNotFound, id)
		}
		byName[f.Name] = raw
	}
	return map[string]any{"fields": byName}, nil
}

// call performs an authorized request and decodes the data member of the
// response into out. A rejected token is evicted so the next call mints one.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tenantToken(ctx)
	if err != nil {
		return err
	}

	var env struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	status, err := c.do(ctx, method, path, token, body, &env)
	if err != nil {
		return err
	}
	if env.Code != 0 || status >= fasthttp.StatusBadRequest {
		apiErr := &APIError{Status: status, Code: env.Code, Msg: env.Msg}
		if apiErr.tokenRejected() {
			if derr := c.tokens.Delete(ctx, c.tokenKey()); derr != nil {
				c.logger.Warn("evict tenant token failed", zap.Error(derr))
			}
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("lark: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json; charset=utf-8")
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("lark: encode request: %w", err)
		}
		req.SetBody(payload)
	}

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return 0, fmt.Errorf("lark: %s %s: %w", method, path, err)
	}
	status := resp.StatusCode()
	c.logger.Debug("lark request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)))

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		if status >= fasthttp.StatusBadRequest {
			return status, &APIError{Status: status, Msg: string(resp.Body())}
		}
		return status, fmt.Errorf("lark: decode %s %s: %w", method, path, err)
	}
	return status, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(c.cfg.Timeout)
}
