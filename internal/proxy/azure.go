package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	cognitiveScope   = "https://cognitiveservices.azure.com/.default"
	tokenURLTemplate = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// ErrTokenAcquisition 无法从身份提供方获取访问令牌
var ErrTokenAcquisition = errors.New("failed to acquire authentication token")

// UpstreamError 上游返回的错误
type UpstreamError struct {
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// Credentials 上游凭证，仅从环境变量读取
type Credentials struct {
	APIKey       string
	TenantID     string
	ClientID     string
	ClientSecret string
}

// CredentialsFromEnv 读取 AZURE_* 环境变量
func CredentialsFromEnv() Credentials {
	return Credentials{
		APIKey:       os.Getenv("AZURE_OPENAI_API_KEY"),
		TenantID:     os.Getenv("AZURE_TENANT_ID"),
		ClientID:     os.Getenv("AZURE_CLIENT_ID"),
		ClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// AzureClient 调用 Azure OpenAI chat completions
type AzureClient struct {
	endpoint   string
	apiVersion string
	apiKey     string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

// AzureOption AzureClient 选项
type AzureOption func(*azureOptions)

type azureOptions struct {
	httpClient *http.Client
	tokenURL   string
}

// WithUpstreamHTTPClient 使用自定义 http.Client
func WithUpstreamHTTPClient(c *http.Client) AzureOption {
	return func(o *azureOptions) { o.httpClient = c }
}

// WithTokenURL 覆盖令牌端点
func WithTokenURL(u string) AzureOption {
	return func(o *azureOptions) { o.tokenURL = u }
}

// NewAzureClient 创建上游客户端；未提供 API key 时使用客户端凭证流程获取令牌
func NewAzureClient(cfg Config, creds Credentials, opts ...AzureOption) *AzureClient {
	o := azureOptions{httpClient: &http.Client{Timeout: 2 * time.Minute}}
	for _, opt := range opts {
		opt(&o)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	c := &AzureClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiVersion: apiVersion,
		apiKey:     creds.APIKey,
		httpClient: o.httpClient,
	}

	if c.apiKey == "" {
		tokenURL := o.tokenURL
		if tokenURL == "" {
			tokenURL = fmt.Sprintf(tokenURLTemplate, creds.TenantID)
		}
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{cognitiveScope},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.httpClient)
		c.tokens = cc.TokenSource(ctx)
	}

	return c
}

type azureChatRequest struct {
	Messages         []json.RawMessage `json:"messages"`
	Model            string            `json:"model"`
	Temperature      float64           `json:"temperature"`
	MaxTokens        int               `json:"max_tokens"`
	PresencePenalty  float64           `json:"presence_penalty"`
	FrequencyPenalty float64           `json:"frequency_penalty"`
}

type azureErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AzureClient) url(deployment string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(deployment), url.QueryEscape(c.apiVersion))
}

// ChatCompletion 实现 Upstream
func (c *AzureClient) ChatCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	payload, err := json.Marshal(azureChatRequest{
		Messages:         req.Messages,
		Model:            req.Deployment,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(req.Deployment), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	} else {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenAcquisition, err)
		}
		tok.SetAuthHeader(httpReq)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb azureErrorBody
		_ = json.Unmarshal(body, &eb)
		msg := eb.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Code: eb.Error.Code, Message: msg}
	}

	var out CompletionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	return &out, nil
}
