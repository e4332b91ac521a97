package lark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/repository"
)

const tokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

// tokenSafety is subtracted from the advertised lifetime before caching.
const tokenSafety = time.Minute

func (c *Client) tokenKey() string {
	return "tenant:" + c.cfg.AppID
}

// tenantToken returns a cached tenant access token or mints a new one.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	token, err := c.tokens.Get(ctx, c.tokenKey())
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, repository.ErrTokenMiss) {
		c.logger.Warn("token cache read failed", zap.Error(err))
	}

	var out struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	body := map[string]string{
		"app_id":     c.cfg.AppID,
		"app_secret": c.cfg.AppSecret,
	}
	status, err := c.do(ctx, fasthttp.MethodPost, tokenPath, "", body, &out)
	if err != nil {
		return "", fmt.Errorf("lark: tenant token: %w", err)
	}
	if out.Code != 0 || out.TenantAccessToken == "" {
		return "", fmt.Errorf("lark: tenant token: %w", &APIError{Status: status, Code: out.Code, Msg: out.Msg})
	}

	ttl := time.Duration(out.Expire)*time.Second - tokenSafety
	if err := c.tokens.Save(ctx, c.tokenKey(), out.TenantAccessToken, ttl); err != nil {
		c.logger.Warn("token cache write failed", zap.Error(err))
	}
	c.logger.Debug("tenant token issued", zap.Int("expire_seconds", out.Expire))
	return out.TenantAccessToken, nil
}
