package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout 远程调用超时
const DefaultTimeout = 60 * time.Second

// RemoteClient 通过后端代理调用托管大模型
type RemoteClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// RemoteOption 远程客户端选项
type RemoteOption func(*RemoteClient)

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteClient) { r.httpClient = c }
}

// WithBearerToken 附带身份提供方签发的凭证
func WithBearerToken(token string) RemoteOption {
	return func(r *RemoteClient) { r.token = token }
}

// NewRemoteClient 创建远程客户端，baseURL 形如 http://localhost:7071/api
func NewRemoteClient(baseURL string, opts ...RemoteOption) *RemoteClient {
	c := &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RemoteClient) endpoint() string {
	return c.baseURL + "/generateSummary"
}

// ChatRequest 代理请求体
type ChatRequest struct {
	Messages         []Message `json:"messages"`
	Model            string    `json:"model"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	PresencePenalty  float64   `json:"presence_penalty"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
}

// ChatResponse 代理成功响应
type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

// ErrorBody 代理错误响应
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

// Complete 调用代理生成报告
func (c *RemoteClient) Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error) {
	if len(prompt.Messages) == 0 {
		return nil, validationError("messages array is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, validationError("model is required")
	}

	opts = opts.withDefaults()
	reqBody, err := json.Marshal(ChatRequest{
		Messages:         prompt.Messages,
		Model:            opts.Model,
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxTokens,
		PresencePenalty:  opts.PresencePenalty,
		FrequencyPenalty: opts.FrequencyPenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &CompletionError{Kind: KindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CompletionError{Kind: KindNetwork, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp.StatusCode, body)
	}

	var chat ChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, &CompletionError{Kind: KindNetwork, Message: "decode response", Err: err}
	}
	if len(chat.Choices) == 0 {
		return nil, &CompletionError{Kind: KindUpstream, Status: resp.StatusCode, Message: "response contained no choices"}
	}

	return &Completion{
		Text:  chat.Choices[0].Message.Content,
		Model: chat.Model,
		Usage: chat.Usage,
	}, nil
}

// upstreamError 将代理的 HTTP 失败映射为错误分类
func upstreamError(status int, body []byte) *CompletionError {
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == "" {
		eb.Error = fmt.Sprintf("API request failed with status %d", status)
	}

	log.Printf("Summary API error: status=%d code=%q error=%q details=%q", status, eb.Code, eb.Error, eb.Details)

	return &CompletionError{
		Kind:    classify(status, eb.Code),
		Status:  status,
		Code:    eb.Code,
		Message: eb.Error,
		Details: eb.Details,
	}
}

func classify(status int, code string) Kind {
	switch code {
	case "auth_error":
		return KindAuth
	case "rate_limit_exceeded", "insufficient_quota", "quota_exceeded":
		return KindQuotaExceeded
	case "context_length_exceeded":
		return KindPayloadTooLarge
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindQuotaExceeded
	case http.StatusRequestEntityTooLarge:
		return KindPayloadTooLarge
	default:
		return KindUpstream
	}
}

// HealthCheck 对代理端点发送 OPTIONS 请求
func (c *RemoteClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.endpoint(), nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
