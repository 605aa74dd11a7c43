package summary

import "context"

// 默认采样参数
const (
	DefaultTemperature      = 0.3
	DefaultMaxTokens        = 1500
	DefaultPresencePenalty  = 0.3
	DefaultFrequencyPenalty = 0.3
)

// Completer 补全后端接口（离线生成器或远程代理）
type Completer interface {
	Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error)
}

// Options 采样参数
type Options struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
}

// DefaultOptions 返回默认采样参数
func DefaultOptions(model string) Options {
	return Options{
		Model:            model,
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens,
		PresencePenalty:  DefaultPresencePenalty,
		FrequencyPenalty: DefaultFrequencyPenalty,
	}
}

// withDefaults 零值字段使用默认采样参数
func (o Options) withDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.PresencePenalty == 0 {
		o.PresencePenalty = DefaultPresencePenalty
	}
	if o.FrequencyPenalty == 0 {
		o.FrequencyPenalty = DefaultFrequencyPenalty
	}
	return o
}

// Usage token 用量，可能缺失
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion 补全结果：第一个 choice 的文本
type Completion struct {
	Text  string
	Model string
	Usage *Usage
}
