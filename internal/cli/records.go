package cli

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"teampulse.app/agent/internal/models"
	"teampulse.app/agent/internal/storage"
	"teampulse.app/agent/internal/summary"
)

// RecordStore 命令使用的记录存取接口
type RecordStore interface {
	Load(opts ...storage.Option) []models.Accomplishment
	LoadStrict(opts ...storage.Option) ([]models.Accomplishment, error)
	Save(records []models.Accomplishment, opts ...storage.Option) error
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a team accomplishment",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		date, _ := cmd.Flags().GetString("date")
		categoryStr, _ := cmd.Flags().GetString("category")
		description, _ := cmd.Flags().GetString("description")
		contributors, _ := cmd.Flags().GetString("contributors")

		category, err := models.ParseCategory(categoryStr)
		if err != nil {
			return err
		}
		a, err := models.NewAccomplishment(title, date, category, description, contributors)
		if err != nil {
			return err
		}

		return withApp(func(app *App) error {
			return RunAdd(cmd.OutOrStdout(), app.Store, a)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded accomplishments",
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := periodFromFlags(cmd)
		if err != nil {
			return err
		}
		return withApp(func(app *App) error {
			return RunList(cmd.OutOrStdout(), app.Store, period)
		})
	},
}

func init() {
	addCmd.Flags().String("title", "", "标题")
	addCmd.Flags().String("date", time.Now().Format(models.DateLayout), "日期 (YYYY-MM-DD)")
	addCmd.Flags().String("category", string(models.CategoryFeature), "分类: "+categoryNames())
	addCmd.Flags().String("description", "", "描述")
	addCmd.Flags().String("contributors", "", "贡献者（逗号分隔）")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("description")

	addPeriodFlags(listCmd)
}

func categoryNames() string {
	names := make([]string, 0, len(models.Categories()))
	for _, c := range models.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// addPeriodFlags 注册 --from/--to/--label
func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "起始日期 (YYYY-MM-DD，含)")
	cmd.Flags().String("to", "", "结束日期 (YYYY-MM-DD，含)")
	cmd.Flags().String("label", "", "报告期显示名称")
}

// periodFromFlags 解析报告期参数
func periodFromFlags(cmd *cobra.Command) (summary.Period, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	label, _ := cmd.Flags().GetString("label")
	return ParsePeriod(from, to, label)
}

// ParsePeriod 解析日期范围，空字符串表示不限
func ParsePeriod(from, to, label string) (summary.Period, error) {
	p := summary.Period{Label: strings.TrimSpace(label)}

	var err error
	if from != "" {
		if p.Start, err = time.Parse(models.DateLayout, from); err != nil {
			return p, fmt.Errorf("%w: invalid --from %q", models.ErrValidation, from)
		}
	}
	if to != "" {
		if p.End, err = time.Parse(models.DateLayout, to); err != nil {
			return p, fmt.Errorf("%w: invalid --to %q", models.ErrValidation, to)
		}
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return p, fmt.Errorf("%w: --to is before --from", models.ErrValidation)
	}
	return p, nil
}

// RunAdd 追加一条成果记录并保存到当前后端，现有数据读取失败时不写入
func RunAdd(w io.Writer, store RecordStore, a models.Accomplishment) error {
	records, err := store.LoadStrict()
	if err != nil {
		return fmt.Errorf("failed to read existing accomplishments, nothing was written: %w", err)
	}
	records = append(records, a)

	if err := store.Save(records); err != nil {
		return fmt.Errorf("failed to save accomplishment: %w", err)
	}

	log.Printf("Accomplishment added: %s (%s)", a.Title, a.ID)
	fmt.Fprintf(w, "✓ 已记录：%s (%s, %s)\n", a.Title, a.Date, a.Category)
	return nil
}

// RunList 列出报告期内的成果记录
func RunList(w io.Writer, store RecordStore, period summary.Period) error {
	records := period.Filter(store.Load())

	if len(records) == 0 {
		fmt.Fprintf(w, "%s 暂无记录\n", period.DisplayLabel())
		return nil
	}

	fmt.Fprintf(w, "📝 团队成果 (%s)：\n\n", period.DisplayLabel())
	for _, r := range records {
		fmt.Fprintf(w, "  • %s [%s] %s\n", r.Date, r.Category, r.Title)
		fmt.Fprintf(w, "      %s\n", r.Description)
		if r.Contributors != "" {
			fmt.Fprintf(w, "      👥 %s\n", r.Contributors)
		}
	}
	fmt.Fprintf(w, "\n共 %d 条记录\n", len(records))
	return nil
}
