package summary

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"teampulse.app/agent/internal/models"
	"teampulse.app/agent/internal/storage"
)

// RecordSource 记录来源（存储协调器）
type RecordSource interface {
	Load(opts ...storage.Option) []models.Accomplishment
}

// Report 生成的报告
type Report struct {
	Period      Period
	RecordCount int
	Text        string
	Model       string
	Usage       *Usage
	GeneratedAt time.Time
}

// Generator 报告生成器
type Generator struct {
	source    RecordSource
	compiler  *Compiler
	completer Completer
	reportDir string
}

// NewGenerator 创建报告生成器
func NewGenerator(source RecordSource, compiler *Compiler, completer Completer, reportDir string) *Generator {
	if compiler == nil {
		compiler = NewCompiler("")
	}
	return &Generator{
		source:    source,
		compiler:  compiler,
		completer: completer,
		reportDir: reportDir,
	}
}

// Generate 读取记录、编译提示词并调用补全后端
func (g *Generator) Generate(ctx context.Context, period Period, opts Options) (*Report, error) {
	records := g.source.Load()

	prompt := g.compiler.Compile(records, period)
	count := len(period.Filter(records))

	log.Printf("Generating report for %s (%d accomplishment(s))", period.DisplayLabel(), count)

	completion, err := g.completer.Complete(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}

	return &Report{
		Period:      period,
		RecordCount: count,
		Text:        completion.Text,
		Model:       completion.Model,
		Usage:       completion.Usage,
		GeneratedAt: time.Now(),
	}, nil
}

// SaveReport 将报告写入报告目录，返回文件路径
func (g *Generator) SaveReport(report *Report) (string, error) {
	if err := os.MkdirAll(g.reportDir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	fileName := fmt.Sprintf("report_%s.md", report.GeneratedAt.Format("20060102-150405"))
	filePath := filepath.Join(g.reportDir, fileName)

	content := fmt.Sprintf(`<!--
period: %s
generated_at: %s
accomplishments: %d
model: %s
-->

%s
`,
		report.Period.DisplayLabel(),
		report.GeneratedAt.Format(time.RFC3339),
		report.RecordCount,
		report.Model,
		report.Text,
	)

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}

	return filePath, nil
}
