package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"teampulse.app/agent/internal/models"
)

// 提示词中的结构标记，离线生成器依赖这些标记解析记录，必须逐字保留
const (
	RecordsMarker = "Here are the team accomplishments to summarize:"
	PeriodMarker  = "reporting period: "
	FormatMarker  = "Format the response"

	emptyPeriodNote = "There are no accomplishments in this period."
)

const systemInstruction = `You are an experienced engineering manager writing an executive-level team performance review.
Write in Markdown with exactly these sections:
1. Executive Summary - a short strategic overview of the period.
2. Key Accomplishments & Business Impact - for each highlighted item, what was delivered and why it matters to the business.
3. Achievements by Category - a rollup per category with the number of items.
4. Strategic Outlook - a closing paragraph on momentum and next steps.
Be concise, factual and positive. Do not invent accomplishments that are not in the data.`

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt 发送给补全后端的消息序列
type Prompt struct {
	Messages []Message `json:"messages"`
}

// UserContent 返回第一条 user 消息内容
func (p Prompt) UserContent() string {
	for _, m := range p.Messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

// Period 报告时间范围，零值表示不限，首尾都包含
type Period struct {
	Start time.Time
	End   time.Time
	Label string
}

// DisplayLabel 返回范围标签，未设置时根据起止日期生成
func (p Period) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	const layout = "Jan 2, 2006"
	switch {
	case p.Start.IsZero() && p.End.IsZero():
		return "all time"
	case p.End.IsZero():
		return "since " + p.Start.Format(layout)
	case p.Start.IsZero():
		return "through " + p.End.Format(layout)
	default:
		return p.Start.Format(layout) + " - " + p.End.Format(layout)
	}
}

// Contains 判断日期是否在范围内（按自然日比较）
func (p Period) Contains(day time.Time) bool {
	d := dateOnly(day)
	if !p.Start.IsZero() && d.Before(dateOnly(p.Start)) {
		return false
	}
	if !p.End.IsZero() && d.After(dateOnly(p.End)) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Filter 按范围过滤并按日期升序排序，返回副本
func (p Period) Filter(records []models.Accomplishment) []models.Accomplishment {
	bounded := !p.Start.IsZero() || !p.End.IsZero()
	out := make([]models.Accomplishment, 0, len(records))
	for _, r := range records {
		day, err := r.Day()
		if err != nil {
			if bounded {
				continue
			}
			out = append(out, r)
			continue
		}
		if p.Contains(day) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// PromptData 自定义模板数据结构
type PromptData struct {
	Period      string
	RecordCount int
	Records     []models.Accomplishment
	RecordsJSON string
}

// Compiler 提示词编译器
type Compiler struct {
	templatePath string // 自定义模板路径，为空时使用内置提示词
}

// NewCompiler 创建编译器
func NewCompiler(templatePath string) *Compiler {
	return &Compiler{templatePath: templatePath}
}

// Compile 过滤、排序记录并生成提示词
func (c *Compiler) Compile(records []models.Accomplishment, period Period) Prompt {
	filtered := period.Filter(records)

	recordsJSON, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		// 字段都是字符串，不会失败
		recordsJSON = []byte("[]")
	}

	data := PromptData{
		Period:      period.DisplayLabel(),
		RecordCount: len(filtered),
		Records:     filtered,
		RecordsJSON: string(recordsJSON),
	}

	return Prompt{Messages: []Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: c.buildUserMessage(data)},
	}}
}

// buildUserMessage 优先使用自定义模板，失败时降级为内置提示词
func (c *Compiler) buildUserMessage(data PromptData) string {
	if c == nil || c.templatePath == "" {
		return buildDefaultPrompt(data)
	}

	templateContent, err := os.ReadFile(c.templatePath)
	if err != nil {
		log.Printf("Warning: failed to read template file %s: %v, using built-in prompt", c.templatePath, err)
		return buildDefaultPrompt(data)
	}

	tmpl, err := template.New("prompt").Parse(string(templateContent))
	if err != nil {
		log.Printf("Warning: failed to parse template: %v, using built-in prompt", err)
		return buildDefaultPrompt(data)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Printf("Warning: failed to execute template: %v, using built-in prompt", err)
		return buildDefaultPrompt(data)
	}

	out := buf.String()
	if !strings.Contains(out, RecordsMarker) || !strings.Contains(out, PeriodMarker) {
		log.Printf("Warning: template %s drops the record or period marker, using built-in prompt", c.templatePath)
		return buildDefaultPrompt(data)
	}
	return out
}

// buildDefaultPrompt 内置提示词
func buildDefaultPrompt(data PromptData) string {
	var builder strings.Builder

	builder.WriteString("Please create a professional summary of our team's accomplishments for the ")
	builder.WriteString(PeriodMarker + data.Period + "\n\n")

	if data.RecordCount == 0 {
		builder.WriteString(emptyPeriodNote + "\n")
		builder.WriteString("Say so plainly and keep the report short.\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("The team completed %d accomplishment(s) in this period.\n", data.RecordCount))
		builder.WriteString("Highlight the business impact of each item and group the work by category.\n\n")
	}

	builder.WriteString(RecordsMarker + "\n")
	builder.WriteString(data.RecordsJSON + "\n\n")

	builder.WriteString(FormatMarker + " in Markdown with the following sections:\n")
	builder.WriteString("## Executive Summary\n")
	builder.WriteString("## Key Accomplishments & Business Impact\n")
	builder.WriteString("## Achievements by Category\n")
	builder.WriteString("## Strategic Outlook\n")

	return builder.String()
}
