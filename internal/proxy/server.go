package proxy

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 采样参数默认值，与前端保持一致
const (
	DefaultTemperature      = 0.3
	DefaultMaxTokens        = 1500
	DefaultPresencePenalty  = 0.3
	DefaultFrequencyPenalty = 0.3

	DefaultAPIVersion = "2025-01-01-preview"
)

// Config 代理配置
type Config struct {
	Endpoint   string // Azure OpenAI 资源地址
	Deployment string // 部署名，为空时使用请求中的 model
	APIVersion string
}

// CompletionRequest 发往上游的补全请求
type CompletionRequest struct {
	Deployment       string
	Messages         []json.RawMessage
	Temperature      float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
}

// CompletionResponse 上游返回，choices/usage 原样透传
type CompletionResponse struct {
	Choices json.RawMessage `json:"choices"`
	Model   string          `json:"model"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

// Upstream 托管大模型服务
type Upstream interface {
	ChatCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Server 摘要代理服务
type Server struct {
	cfg      Config
	upstream Upstream
	router   *gin.Engine
}

// NewServer 创建代理服务并注册路由
func NewServer(cfg Config, upstream Upstream) *Server {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		upstream: upstream,
		router:   router,
	}

	api := router.Group("/api")
	{
		api.POST("/generateSummary", s.handleGenerateSummary)
		api.OPTIONS("/generateSummary", s.handleOptions)
		api.GET("/health", s.handleHealth)
	}

	return s
}

// Handler 返回 http.Handler，便于测试和嵌入
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务，阻塞直到 ctx 取消或监听失败
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
