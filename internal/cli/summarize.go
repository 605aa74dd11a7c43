package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"teampulse.app/agent/internal/models"
	"teampulse.app/agent/internal/summary"
)

// SummarizeOptions summarize 命令选项
type SummarizeOptions struct {
	Save bool // 写入报告目录
	Raw  bool // 输出原始 Markdown，不渲染
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Generate a team performance review for a reporting period",
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := periodFromFlags(cmd)
		if err != nil {
			return err
		}
		useMock, _ := cmd.Flags().GetBool("mock")
		model, _ := cmd.Flags().GetString("model")
		save, _ := cmd.Flags().GetBool("save")
		raw, _ := cmd.Flags().GetBool("raw")

		return withApp(func(app *App) error {
			if model == "" {
				model = app.Config.Model
			}
			return RunSummarize(cmd.Context(), cmd.OutOrStdout(), app.Generator(useMock), period,
				summary.DefaultOptions(model), SummarizeOptions{Save: save, Raw: raw})
		})
	},
}

func init() {
	addPeriodFlags(summarizeCmd)
	summarizeCmd.Flags().Bool("mock", false, "使用离线生成器")
	summarizeCmd.Flags().String("model", "", "模型名称（默认取配置）")
	summarizeCmd.Flags().Bool("save", false, "保存报告到报告目录")
	summarizeCmd.Flags().Bool("raw", false, "输出原始 Markdown")
}

// RunSummarize 生成报告并输出
func RunSummarize(ctx context.Context, w io.Writer, gen *summary.Generator, period summary.Period, opts summary.Options, so SummarizeOptions) error {
	report, err := gen.Generate(ctx, period, opts)
	if err != nil {
		if hint := completionHint(err); hint != "" {
			return fmt.Errorf("%s: %w", hint, err)
		}
		return err
	}

	text := report.Text
	if !so.Raw {
		text = renderMarkdown(report.Text)
	}
	fmt.Fprintln(w, text)

	if so.Save {
		path, err := gen.SaveReport(report)
		if err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(w, "✓ 报告已保存：%s\n", path)
	}
	return nil
}

// renderMarkdown 在终端渲染 Markdown，失败时返回原文
func renderMarkdown(text string) string {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return out
}

// completionHint 按错误分类给出面向用户的提示
func completionHint(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return "请求参数无效"
	case errors.Is(err, summary.ErrAuth):
		return "身份验证失败，请检查代理的凭证配置"
	case errors.Is(err, summary.ErrQuotaExceeded):
		return "已达到配额或限流，请稍后重试"
	case errors.Is(err, summary.ErrPayloadTooLarge):
		return "成果记录过多，请缩小报告期后重试"
	case errors.Is(err, summary.ErrNetwork):
		return "无法连接摘要服务，请检查 api_base_url 或使用 --mock"
	case errors.Is(err, summary.ErrUpstream):
		return "摘要服务返回错误"
	default:
		return ""
	}
}
