package proxy

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// generateRequest 前端请求体，可选字段为零值时使用默认值
type generateRequest struct {
	Messages         json.RawMessage `json:"messages"`
	Model            string          `json:"model"`
	Temperature      float64         `json:"temperature"`
	MaxTokens        int             `json:"max_tokens"`
	PresencePenalty  float64         `json:"presence_penalty"`
	FrequencyPenalty float64         `json:"frequency_penalty"`
}

// ErrorBody 错误响应
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

const codeInvalidRequest = "invalid_request"

func (s *Server) handleGenerateSummary(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "Invalid request: " + err.Error(), Code: codeInvalidRequest})
		return
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(req.Messages, &messages); err != nil || len(messages) == 0 {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "Invalid request: messages array is required", Code: codeInvalidRequest})
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "Invalid request: model is required", Code: codeInvalidRequest})
		return
	}

	if s.cfg.Endpoint == "" {
		log.Printf("Proxy: AZURE_OPENAI_ENDPOINT is not configured")
		c.JSON(http.StatusInternalServerError, ErrorBody{
			Error: "Server configuration error: OpenAI endpoint not configured",
			Code:  "internal_error",
		})
		return
	}

	deployment := s.cfg.Deployment
	if deployment == "" {
		deployment = req.Model
	}

	log.Printf("Proxy: calling deployment %s (requested model %s, api version %s)", deployment, req.Model, s.cfg.APIVersion)

	resp, err := s.upstream.ChatCompletion(c.Request.Context(), CompletionRequest{
		Deployment:       deployment,
		Messages:         messages,
		Temperature:      orDefault(req.Temperature, DefaultTemperature),
		MaxTokens:        orDefaultInt(req.MaxTokens, DefaultMaxTokens),
		PresencePenalty:  orDefault(req.PresencePenalty, DefaultPresencePenalty),
		FrequencyPenalty: orDefault(req.FrequencyPenalty, DefaultFrequencyPenalty),
	})
	if err != nil {
		log.Printf("Proxy: upstream call failed: %v", err)
		status, body := mapError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOptions(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"configured": s.cfg.Endpoint != "",
	})
}

// mapError 将上游失败映射为 HTTP 状态码和稳定的错误码
func mapError(err error) (int, ErrorBody) {
	body := ErrorBody{
		Error:   "Internal server error while calling OpenAI",
		Code:    "internal_error",
		Details: err.Error(),
	}

	if errors.Is(err, ErrTokenAcquisition) {
		body.Error = "Failed to acquire authentication token"
		body.Code = "auth_error"
		return http.StatusInternalServerError, body
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, body
	}

	switch ue.Code {
	case "insufficient_quota", "quota_exceeded":
		body.Error = "Azure OpenAI quota has been exceeded"
		body.Code = ue.Code
		return http.StatusTooManyRequests, body
	case "rate_limit_exceeded":
		body.Error = "Rate limit exceeded for Azure OpenAI API"
		body.Code = ue.Code
		return http.StatusTooManyRequests, body
	case "context_length_exceeded":
		body.Error = "The input was too long for Azure OpenAI to process"
		body.Code = ue.Code
		return http.StatusRequestEntityTooLarge, body
	}

	if ue.Status != 0 {
		if ue.Message != "" {
			body.Error = ue.Message
		}
		return ue.Status, body
	}
	return http.StatusInternalServerError, body
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
