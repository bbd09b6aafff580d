package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/go-resty/resty/v2"
)

// =============================================================================
// Client CRM REST API客户端
// 统一处理鉴权头与 {code,message,data} 响应信封，供 po-sync 与编辑器使用
// =============================================================================

// Client CRM远程客户端
type Client struct {
	http *resty.Client // 基址如 http://localhost:8080/api/v1，带鉴权头
}

// New 创建客户端实例
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetDisableWarn(true). // 内网常用 http
		SetHeader("Accept", "application/json")
	if token != "" {
		rc.SetAuthToken(token)
	}
	return &Client{http: rc}
}

// NewFromConfig 按配置创建客户端
func NewFromConfig(cfg config.ClientConfig) *Client {
	return New(cfg.BaseURL, cfg.Token, cfg.Timeout)
}

// APIError 服务端返回的业务错误
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm api [%d/%d]: %s", e.Status, e.Code, e.Message)
}

// NotFound 是否为资源不存在
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Page 列表响应
type Page[T any] struct {
	Items      []T `json:"items"`
	Pagination struct {
		Page       int `json:"page"`
		PageSize   int `json:"page_size"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// request 绑定上下文的新请求
func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// doRequest 执行JSON请求
// body 非nil时序列化为请求体；result 非nil时解析 data 字段
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, result interface{}) error {
	req := c.request(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json; charset=utf-8").SetBody(body)
	}
	return c.execute(req, method, path, result)
}

// execute 发送请求并解析响应信封
func (c *Client) execute(req *resty.Request, method, path string, result interface{}) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	return decode(resp.StatusCode(), resp.Body(), result)
}

func decode(status int, body []byte, result interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= 400 {
			return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if status >= 400 || env.Code != 0 {
		return &APIError{Status: status, Code: env.Code, Message: env.Message}
	}

	if result != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("解析响应数据失败: %w", err)
		}
	}
	return nil
}

func idPath(prefix string, id int64) string {
	return fmt.Sprintf("%s/%d", prefix, id)
}
