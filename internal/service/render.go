package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tianqi-tools/weather-mcp/internal/models"
)

// maxDisplayedAlerts caps the warnings section; alerts keep provider order.
const maxDisplayedAlerts = 3

// alertDescriptionLimit truncates long alert descriptions in the report.
const alertDescriptionLimit = 100

var weekdayNames = [7]string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

// renderCurrentReport formats the current weather report. Header lines are
// always present (pressure only when non-empty); the optional sections are
// appended only when their data survived the fan-out.
func renderCurrentReport(w models.CurrentConditions, alerts []models.Alert, aq *models.AirQualitySnapshot, indices []models.LifeIndexEntry) string {
	lines := []string{
		fmt.Sprintf("📍 城市: %s", w.Location),
		fmt.Sprintf("🕐 观测时间: %s", w.ObsTime),
		fmt.Sprintf("🌡️ 温度: %s°C", w.Temp),
		fmt.Sprintf("🤒 体感温度: %s°C", w.FeelsLike),
		fmt.Sprintf("☁️ 天气: %s", w.Text),
		fmt.Sprintf("🧭 风向: %s", w.WindDir),
		fmt.Sprintf("💨 风力: %s级", w.WindScale),
		fmt.Sprintf("💧 湿度: %s%%", w.Humidity),
	}

	if w.Pressure != "" {
		lines = append(lines, fmt.Sprintf("📊 气压: %shPa", w.Pressure))
	}

	lines = append(lines,
		fmt.Sprintf("🌧️ 降水量: %smm", w.Precip),
		fmt.Sprintf("👁️ 能见度: %skm", w.Vis),
	)

	if len(alerts) > 0 {
		lines = append(lines, "\n⚠️ 天气预警:")
		for i, alert := range alerts {
			if i >= maxDisplayedAlerts {
				break
			}
			lines = append(lines,
				fmt.Sprintf("\n  %d. %s", i+1, alert.Headline),
				fmt.Sprintf("     类型: %s", alert.EventType),
				fmt.Sprintf("     级别: %s", alert.Severity),
				fmt.Sprintf("     描述: %s...", truncateRunes(alert.Description, alertDescriptionLimit)),
			)
		}
	}

	if aq != nil {
		lines = append(lines,
			"\n🌫️ 空气质量:",
			fmt.Sprintf("  AQI: %s (%s)", aq.AQI, aq.Category),
			fmt.Sprintf("  首要污染物: %s", aq.PrimaryPollutant),
			fmt.Sprintf("  PM2.5: %s", aq.PM25),
			fmt.Sprintf("  PM10: %s", aq.PM10),
		)
		if aq.HealthEffect != "" {
			lines = append(lines, fmt.Sprintf("  健康影响: %s", aq.HealthEffect))
		}
		if aq.HealthAdviceGeneral != "" {
			lines = append(lines, fmt.Sprintf("  建议: %s", aq.HealthAdviceGeneral))
		}
	}

	if len(indices) > 0 {
		lines = append(lines, "\n📊 今日指数:")
		for _, index := range indices {
			lines = append(lines, fmt.Sprintf("  • %s: %s", index.Name, index.Category))
			if index.Text != "" {
				lines = append(lines, fmt.Sprintf("    %s", index.Text))
			}
		}
	}

	return strings.Join(lines, "\n")
}

// renderForecastReport formats the N-day forecast. The air quality forecast
// attaches per day by 1-based position and only covers its own length
// (3 days); life indices are grouped by name in first-seen order.
func renderForecastReport(cityName string, days int, daily []models.DailyForecastEntry, aqDays []models.AirQualityDay, indices []models.LifeIndexEntry) string {
	lines := []string{fmt.Sprintf("📍 %s 未来%d天天气预报:\n", cityName, days)}

	n := len(daily)
	if n > days {
		n = days
	}
	for i, day := range daily[:n] {
		lines = append(lines,
			fmt.Sprintf("%d. 📅 %s %s", i+1, day.FxDate, weekdayName(day.FxDate)),
			fmt.Sprintf("   ☁️ 天气: %s", day.TextDay),
			fmt.Sprintf("   🌙 夜间: %s", day.TextNight),
			fmt.Sprintf("   🌡️ 温度: %s°C ~ %s°C", day.TempMin, day.TempMax),
			fmt.Sprintf("   🧭 风向: %s %s级", day.WindDirDay, day.WindScaleDay),
			fmt.Sprintf("   💧 湿度: %s%%", day.Humidity),
		)

		if precip, err := strconv.ParseFloat(day.Precip, 64); err == nil && precip > 0 {
			lines = append(lines, fmt.Sprintf("   🌧️ 降水: %smm", day.Precip))
		}

		if desc := uvDescription(day.UVIndex); desc != "" {
			lines = append(lines, fmt.Sprintf("   ☀️ 紫外线: %s (%s)", desc, day.UVIndex))
		}

		if i < len(aqDays) {
			aq := aqDays[i]
			if aq.AQI != "" || aq.Category != "" {
				lines = append(lines, fmt.Sprintf("   🌫️ 空气质量: %s (%s)", aq.AQI, aq.Category))
			}
		}

		lines = append(lines, "")
	}

	if len(indices) > 0 {
		lines = append(lines, "\n📊 未来3天生活指数:\n")
		for _, group := range groupIndices(indices) {
			lines = append(lines, fmt.Sprintf("  • %s:", group.name))
			for _, idx := range group.entries {
				lines = append(lines, fmt.Sprintf("    %s - %s", idx.Category, idx.Text))
			}
		}
	}

	return strings.Join(lines, "\n")
}

type indexGroup struct {
	name    string
	entries []models.LifeIndexEntry
}

// groupIndices buckets life indices by name, preserving first-seen order so
// the 3-day set reads as one block per index type.
func groupIndices(indices []models.LifeIndexEntry) []indexGroup {
	var groups []indexGroup
	byName := make(map[string]int)
	for _, idx := range indices {
		pos, ok := byName[idx.Name]
		if !ok {
			pos = len(groups)
			byName[idx.Name] = pos
			groups = append(groups, indexGroup{name: idx.Name})
		}
		groups[pos].entries = append(groups[pos].entries, idx)
	}
	return groups
}

// weekdayName returns the Chinese weekday for an ISO date, or "" when the
// date does not parse. A blank weekday is cosmetic, never fatal.
func weekdayName(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return ""
	}
	// time.Weekday starts at Sunday; the names start at Monday.
	return weekdayNames[(int(t.Weekday())+6)%7]
}

// uvDescription classifies a UV index value. An absent or unparsable index
// yields "" and the line is omitted.
func uvDescription(uvIndex string) string {
	if uvIndex == "" {
		return ""
	}
	level, err := strconv.Atoi(uvIndex)
	if err != nil {
		return ""
	}
	switch {
	case level <= 2:
		return "弱"
	case level <= 5:
		return "中等"
	case level <= 7:
		return "强"
	default:
		return "很强"
	}
}

// truncateRunes cuts s to at most n runes. Counting runes keeps multi-byte
// Chinese text from being split mid-character.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
