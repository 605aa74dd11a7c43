package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"teampulse.app/agent/internal/models"
)

// DefaultMockDelay 模拟网络延迟
const DefaultMockDelay = 1500 * time.Millisecond

// MockModel 离线生成器返回的模型名
const MockModel = "teampulse-offline"

var periodPattern = regexp.MustCompile(`(?i)reporting period: (.*?)(?:\n|$)`)

// 分类 -> 单条成果的业务影响说明
var impactStatements = map[models.Category]string{
	models.CategoryFeature: "This feature enhancement directly supports our strategic goals by improving user experience and expanding product capabilities. It positions us competitively in the market and opens opportunities for expanded user adoption.",
	models.CategoryBugFix:  "This resolution enhances product stability and user satisfaction, reducing support costs and improving retention. It demonstrates our commitment to quality and responsiveness to user needs.",
	models.CategoryProcess: "This process improvement increases team efficiency and collaboration, leading to faster delivery cycles and reduced operational costs. It supports our organizational objective of continuous improvement.",
}

const defaultImpact = "This work strengthens our team capabilities and positions us for future success through improved product quality and team effectiveness."

// 分类 -> 分类汇总说明，%d 为该分类条数
var rollupStatements = map[models.Category]string{
	models.CategoryFeature: "Our feature delivery has expanded product capabilities and enhanced user experience through %d targeted improvements. These features collectively strengthen our market position and provide competitive differentiation.",
	models.CategoryBugFix:  "Our quality improvement efforts have resolved %d issues, significantly enhancing product stability and user satisfaction. This work reduces support burden and improves overall user experience.",
	models.CategoryProcess: "We've optimized %d internal processes, resulting in improved team efficiency and collaboration. These changes support faster delivery cycles and better resource utilization.",
}

const defaultRollup = "The team has completed %d initiatives in this area, contributing to overall business objectives and team capabilities."

// MockClient 离线补全后端：从提示词中解析记录，确定性地生成报告
type MockClient struct {
	delay time.Duration
}

// NewMockClient 创建离线生成器，delay 为模拟延迟
func NewMockClient(delay time.Duration) *MockClient {
	return &MockClient{delay: delay}
}

// Complete 解析提示词并生成 Markdown 报告
func (m *MockClient) Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error) {
	if len(prompt.Messages) == 0 {
		return nil, validationError("messages array is required")
	}

	content := prompt.UserContent()
	records := parseRecords(content)

	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &Completion{
		Text:  renderReport(records, parsePeriod(content)),
		Model: MockModel,
	}, nil
}

// parseRecords 解析标记后的 JSON 数组，失败时返回空列表
func parseRecords(content string) []models.Accomplishment {
	idx := strings.Index(content, RecordsMarker)
	if idx < 0 {
		return nil
	}

	var records []models.Accomplishment
	dec := json.NewDecoder(strings.NewReader(content[idx+len(RecordsMarker):]))
	if err := dec.Decode(&records); err != nil {
		log.Printf("Error parsing accomplishments data: %v", err)
		return nil
	}
	return records
}

func parsePeriod(content string) string {
	if m := periodPattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return "the recent period"
}

type categoryGroup struct {
	name  models.Category
	items []models.Accomplishment
}

// groupByCategory 按首次出现顺序分组
func groupByCategory(records []models.Accomplishment) []*categoryGroup {
	var groups []*categoryGroup
	index := map[models.Category]*categoryGroup{}
	for _, r := range records {
		g, ok := index[r.Category]
		if !ok {
			g = &categoryGroup{name: r.Category}
			index[r.Category] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, r)
	}
	return groups
}

func renderReport(records []models.Accomplishment, period string) string {
	groups := groupByCategory(records)

	top := append([]*categoryGroup(nil), groups...)
	sort.SliceStable(top, func(i, j int) bool {
		return len(top[i].items) > len(top[j].items)
	})
	if len(top) > 2 {
		top = top[:2]
	}

	recent := append([]models.Accomplishment(nil), records...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date > recent[j].Date
	})
	if len(recent) > 3 {
		recent = recent[:3]
	}

	var b strings.Builder

	b.WriteString("# Team Performance Review\n\n")
	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "Our team has demonstrated significant progress during %s, completing %d impactful deliverables ", period, len(records))
	if len(top) > 0 {
		parts := make([]string, 0, len(top))
		for _, g := range top {
			parts = append(parts, fmt.Sprintf("%s (%d)", g.name, len(g.items)))
		}
		fmt.Fprintf(&b, "with primary focus on %s. ", strings.Join(parts, " and "))
	}
	b.WriteString("These accomplishments have strengthened our product capabilities, improved team efficiency, and directly supported key business objectives.\n\n")

	b.WriteString("## Key Accomplishments & Business Impact\n\n")
	for _, r := range recent {
		fmt.Fprintf(&b, "### %s\n\n", r.Title)
		fmt.Fprintf(&b, "**Date:** %s  \n", r.Date)
		fmt.Fprintf(&b, "**Category:** %s  \n\n", r.Category)
		fmt.Fprintf(&b, "%s\n\n", r.Description)

		impact, ok := impactStatements[r.Category]
		if !ok {
			impact = defaultImpact
		}
		fmt.Fprintf(&b, "**Business Impact:** %s\n\n", impact)
	}

	b.WriteString("## Achievements by Category\n\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "### %s (%d)\n\n", g.name, len(g.items))

		rollup, ok := rollupStatements[g.name]
		if !ok {
			rollup = defaultRollup
		}
		fmt.Fprintf(&b, rollup+"\n\n", len(g.items))

		for i, r := range g.items {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "* **%s** (%s): %s\n", r.Title, r.Date, r.Description)
		}
		if len(g.items) > 3 {
			fmt.Fprintf(&b, "* Plus %d additional %s initiatives\n", len(g.items)-3, strings.ToLower(string(g.name)))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Strategic Outlook\n\n")
	b.WriteString("Based on our recent accomplishments, the team is well-positioned for continued success. We have built momentum in key areas and established a foundation for future growth. Our focus on quality, user experience, and process efficiency will continue to drive business value and support organizational objectives.\n\n")
	b.WriteString("Next steps include leveraging our recent work to expand capabilities in high-impact areas while maintaining our commitment to quality and continuous improvement. We anticipate that our recent accomplishments will enable accelerated progress on upcoming initiatives.\n")

	return b.String()
}
