package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teampulse.app/agent/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// recordsAfterMarker 解析提示词中标记后的 JSON 数组
func recordsAfterMarker(t *testing.T, content string) []models.Accomplishment {
	t.Helper()
	idx := strings.Index(content, RecordsMarker)
	require.GreaterOrEqual(t, idx, 0, "records marker missing")

	var records []models.Accomplishment
	dec := json.NewDecoder(strings.NewReader(content[idx+len(RecordsMarker):]))
	require.NoError(t, dec.Decode(&records))
	return records
}

func TestCompileEmptyRecords(t *testing.T) {
	prompt := NewCompiler("").Compile(nil, Period{Label: "Jan 1–31"})

	require.Len(t, prompt.Messages, 2)
	assert.Equal(t, "system", prompt.Messages[0].Role)

	content := prompt.UserContent()
	assert.Contains(t, content, "reporting period: Jan 1–31\n")
	assert.Contains(t, content, RecordsMarker+"\n[]\n")
	assert.Contains(t, content, "There are no accomplishments in this period.")
	assert.Contains(t, content, FormatMarker)
}

func TestCompileFiltersInclusiveAndSorts(t *testing.T) {
	records := []models.Accomplishment{
		{ID: "3", Title: "C", Date: "2026-01-31", Category: models.CategoryTeam, Description: "c"},
		{ID: "0", Title: "Before", Date: "2025-12-31", Category: models.CategoryTeam, Description: "x"},
		{ID: "1", Title: "A", Date: "2026-01-01", Category: models.CategoryFeature, Description: "a"},
		{ID: "4", Title: "After", Date: "2026-02-01", Category: models.CategoryTeam, Description: "x"},
		{ID: "2", Title: "B", Date: "2026-01-15", Category: models.CategoryBugFix, Description: "b"},
	}
	period := Period{Start: day("2026-01-01"), End: day("2026-01-31")}

	prompt := NewCompiler("").Compile(records, period)
	got := recordsAfterMarker(t, prompt.UserContent())

	ids := make([]models.ID, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []models.ID{"1", "2", "3"}, ids)
	assert.Contains(t, prompt.UserContent(), "reporting period: Jan 1, 2026 - Jan 31, 2026")

	// 输入切片保持原样
	assert.Equal(t, models.ID("3"), records[0].ID)
}

func TestPeriodDisplayLabel(t *testing.T) {
	assert.Equal(t, "all time", Period{}.DisplayLabel())
	assert.Equal(t, "since Mar 1, 2026", Period{Start: day("2026-03-01")}.DisplayLabel())
	assert.Equal(t, "through Mar 9, 2026", Period{End: day("2026-03-09")}.DisplayLabel())
	assert.Equal(t, "Sprint 12", Period{Start: day("2026-03-01"), Label: "Sprint 12"}.DisplayLabel())
}

func TestCompileWithCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	tmpl := "Custom report for the reporting period: {{.Period}}\n" +
		"Count: {{.RecordCount}}\n" +
		"Here are the team accomplishments to summarize:\n{{.RecordsJSON}}\n" +
		"Format the response as bullet points.\n"
	require.NoError(t, os.WriteFile(path, []byte(tmpl), 0644))

	records := []models.Accomplishment{
		{ID: "1", Title: "A", Date: "2026-01-01", Category: models.CategoryFeature, Description: "a"},
	}
	content := NewCompiler(path).Compile(records, Period{Label: "Q1"}).UserContent()

	assert.True(t, strings.HasPrefix(content, "Custom report"))
	assert.Contains(t, content, "Count: 1")
	assert.Len(t, recordsAfterMarker(t, content), 1)
}

func TestCompileTemplateFallback(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"missing":        filepath.Join(dir, "non_existent_template.tmpl"),
		"parse error":    writeTemplate(t, dir, "broken.tmpl", "{{.Period"),
		"missing marker": writeTemplate(t, dir, "nomarker.tmpl", "Summarize {{.RecordCount}} items"),
	}

	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			content := NewCompiler(path).Compile(nil, Period{Label: "Week 3"}).UserContent()
			assert.Contains(t, content, "reporting period: Week 3")
			assert.Contains(t, content, RecordsMarker)
		})
	}
}

func writeTemplate(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}
