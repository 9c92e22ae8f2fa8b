package service

import (
	"strings"
	"testing"

	"github.com/tianqi-tools/weather-mcp/internal/models"
)

func TestUVDescription(t *testing.T) {
	tests := []struct {
		uvIndex string
		want    string
	}{
		{uvIndex: "0", want: "弱"},
		{uvIndex: "2", want: "弱"},
		{uvIndex: "3", want: "中等"},
		{uvIndex: "5", want: "中等"},
		{uvIndex: "6", want: "强"},
		{uvIndex: "7", want: "强"},
		{uvIndex: "8", want: "很强"},
		{uvIndex: "9", want: "很强"},
		{uvIndex: "11", want: "很强"},
		{uvIndex: "", want: ""},
		{uvIndex: "n/a", want: ""},
	}

	for _, tc := range tests {
		if got := uvDescription(tc.uvIndex); got != tc.want {
			t.Errorf("uvDescription(%q) = %q, want %q", tc.uvIndex, got, tc.want)
		}
	}
}

func TestWeekdayName(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{date: "2024-05-06", want: "周一"},
		{date: "2024-05-08", want: "周三"},
		{date: "2024-05-11", want: "周六"},
		{date: "2024-05-12", want: "周日"},
		{date: "not-a-date", want: ""},
		{date: "", want: ""},
	}

	for _, tc := range tests {
		if got := weekdayName(tc.date); got != tc.want {
			t.Errorf("weekdayName(%q) = %q, want %q", tc.date, got, tc.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "短文本", n: 100, want: "短文本"},
		{in: "一二三四五", n: 3, want: "一二三"},
		{in: "abcdef", n: 4, want: "abcd"},
		{in: "", n: 5, want: ""},
	}

	for _, tc := range tests {
		if got := truncateRunes(tc.in, tc.n); got != tc.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestGroupIndices_FirstSeenOrder(t *testing.T) {
	indices := []models.LifeIndexEntry{
		{Name: "运动指数", Category: "适宜", Text: "a"},
		{Name: "洗车指数", Category: "不宜", Text: "b"},
		{Name: "运动指数", Category: "较不宜", Text: "c"},
		{Name: "穿衣指数", Category: "舒适", Text: "d"},
		{Name: "洗车指数", Category: "适宜", Text: "e"},
	}

	groups := groupIndices(indices)
	wantNames := []string{"运动指数", "洗车指数", "穿衣指数"}
	if len(groups) != len(wantNames) {
		t.Fatalf("groupIndices() returned %d groups, want %d", len(groups), len(wantNames))
	}
	for i, name := range wantNames {
		if groups[i].name != name {
			t.Errorf("group[%d].name = %q, want %q", i, groups[i].name, name)
		}
	}
	if len(groups[0].entries) != 2 || groups[0].entries[1].Text != "c" {
		t.Errorf("运动指数 entries = %+v", groups[0].entries)
	}
}

// TestRenderCurrentReport_AlertCap: only the first three alerts render, and
// long descriptions are truncated at 100 runes.
func TestRenderCurrentReport_AlertCap(t *testing.T) {
	conditions := models.CurrentConditions{
		Location: "北京市北京",
		Temp:     "20",
	}
	longDesc := strings.Repeat("雨", 150)
	alerts := []models.Alert{
		{Headline: "预警一", EventType: "暴雨", Severity: "severe", Description: longDesc},
		{Headline: "预警二", EventType: "大风", Severity: "moderate", Description: "短"},
		{Headline: "预警三", EventType: "高温", Severity: "minor", Description: "短"},
		{Headline: "预警四", EventType: "雷电", Severity: "minor", Description: "短"},
	}

	report := renderCurrentReport(conditions, alerts, nil, nil)

	for _, want := range []string{"1. 预警一", "2. 预警二", "3. 预警三"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(report, "预警四") {
		t.Error("fourth alert rendered past the cap")
	}
	wantDesc := strings.Repeat("雨", 100) + "..."
	if !strings.Contains(report, wantDesc) {
		t.Error("long description not truncated to 100 runes")
	}
	if strings.Contains(report, strings.Repeat("雨", 101)) {
		t.Error("description exceeds the 100-rune limit")
	}
}

func TestRenderCurrentReport_PressureOmitted(t *testing.T) {
	conditions := models.CurrentConditions{Location: "上海市上海", Temp: "25"}

	report := renderCurrentReport(conditions, nil, nil, nil)
	if strings.Contains(report, "气压") {
		t.Error("pressure line rendered for empty pressure")
	}
}
