package summary

import (
	"errors"
	"fmt"

	"teampulse.app/agent/internal/models"
)

// 补全失败分类，调用方通过 errors.Is 判断
var (
	ErrAuth            = errors.New("authentication failed")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrUpstream        = errors.New("upstream error")
	ErrNetwork         = errors.New("network error")
)

// Kind 稳定的错误码，供界面展示
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindAuth            Kind = "auth_error"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindUpstream        Kind = "upstream_error"
	KindNetwork         Kind = "network_error"
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return models.ErrValidation
	case KindAuth:
		return ErrAuth
	case KindQuotaExceeded:
		return ErrQuotaExceeded
	case KindPayloadTooLarge:
		return ErrPayloadTooLarge
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrUpstream
	}
}

// CompletionError 补全失败详情
type CompletionError struct {
	Kind    Kind
	Status  int    // 代理返回的 HTTP 状态码，网络错误时为 0
	Code    string // 代理返回的 code 字段
	Message string
	Details string
	Err     error
}

func (e *CompletionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d", e.Status)
		if e.Code != "" {
			msg += ", code " + e.Code
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrQuotaExceeded) 等判断生效
func (e *CompletionError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Retryable 配额/限流错误可由调用方重试
func (e *CompletionError) Retryable() bool {
	return e.Kind == KindQuotaExceeded
}

func validationError(msg string) error {
	return &CompletionError{Kind: KindValidation, Message: msg}
}
