// Package mcptool exposes the weather aggregator as MCP tools. Handlers
// always answer with text: failures become a descriptive payload, never a
// protocol-level error, so a tool caller can relay them verbatim.
package mcptool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tianqi-tools/weather-mcp/internal/observability"
	"github.com/tianqi-tools/weather-mcp/internal/service"
	"github.com/tianqi-tools/weather-mcp/internal/validation"
)

// CurrentWeatherInput are the arguments of get_current_weather. The include
// flags are pointers so an omitted flag defaults to true.
type CurrentWeatherInput struct {
	Location          string `json:"location" jsonschema:"城市名称（如\"北京\"）或 LocationID（如\"101010100\"）"`
	IncludeWarning    *bool  `json:"include_warning,omitempty" jsonschema:"是否包含天气预警（默认 true）"`
	IncludeAirQuality *bool  `json:"include_air_quality,omitempty" jsonschema:"是否包含空气质量（默认 true）"`
	IncludeIndices    *bool  `json:"include_indices,omitempty" jsonschema:"是否包含天气指数（默认 true）"`
}

// ForecastInput are the arguments of get_weather_forecast.
type ForecastInput struct {
	Location          string `json:"location" jsonschema:"城市名称（如\"北京\"）或 LocationID（如\"101010100\"）"`
	Days              int    `json:"days,omitempty" jsonschema:"预报天数，支持 3/7/10/15/30，默认 7 天"`
	IncludeAirQuality *bool  `json:"include_air_quality,omitempty" jsonschema:"是否包含空气质量预报（默认 true）"`
	IncludeIndices    *bool  `json:"include_indices,omitempty" jsonschema:"是否包含天气指数（默认 true）"`
}

// Tools holds handler dependencies.
type Tools struct {
	service *service.WeatherService
	logger  *zap.Logger
}

// Register adds both weather tools to the MCP server.
func Register(server *mcp.Server, svc *service.WeatherService, logger *zap.Logger) {
	t := &Tools{service: svc, logger: logger}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_current_weather",
		Description: "获取指定城市的当前天气，包含天气预警、空气质量和天气指数",
	}, t.GetCurrentWeather)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_weather_forecast",
		Description: "获取指定城市的未来天气预报，包含空气质量预报和天气指数",
	}, t.GetWeatherForecast)
}

// GetCurrentWeather handles the get_current_weather tool.
func (t *Tools) GetCurrentWeather(ctx context.Context, req *mcp.CallToolRequest, in CurrentWeatherInput) (*mcp.CallToolResult, any, error) {
	const tool = "get_current_weather"
	logger := t.invocationLogger(tool, in.Location)
	start := time.Now()

	location, err := validation.ValidateLocation(in.Location)
	if err != nil {
		return t.failure(tool, logger, start, "获取天气失败", err)
	}

	report, err := t.service.CurrentWeatherReport(ctx, location,
		boolOrTrue(in.IncludeWarning),
		boolOrTrue(in.IncludeAirQuality),
		boolOrTrue(in.IncludeIndices),
	)
	if err != nil {
		return t.failure(tool, logger, start, "获取天气失败", err)
	}

	return t.success(tool, logger, start, report)
}

// GetWeatherForecast handles the get_weather_forecast tool.
func (t *Tools) GetWeatherForecast(ctx context.Context, req *mcp.CallToolRequest, in ForecastInput) (*mcp.CallToolResult, any, error) {
	const tool = "get_weather_forecast"
	logger := t.invocationLogger(tool, in.Location)
	start := time.Now()

	location, err := validation.ValidateLocation(in.Location)
	if err != nil {
		return t.failure(tool, logger, start, "获取天气预报失败", err)
	}

	report, err := t.service.ForecastReport(ctx, location, in.Days,
		boolOrTrue(in.IncludeAirQuality),
		boolOrTrue(in.IncludeIndices),
	)
	if err != nil {
		return t.failure(tool, logger, start, "获取天气预报失败", err)
	}

	return t.success(tool, logger, start, report)
}

func (t *Tools) invocationLogger(tool, location string) *zap.Logger {
	return t.logger.With(
		zap.String("tool", tool),
		zap.String("invocation_id", uuid.NewString()),
		zap.String("location", location),
	)
}

func (t *Tools) success(tool string, logger *zap.Logger, start time.Time, report string) (*mcp.CallToolResult, any, error) {
	duration := time.Since(start)
	observability.ToolInvocationsTotal.WithLabelValues(tool, "success").Inc()
	observability.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	logger.Debug("tool served", zap.Duration("duration", duration))
	return textResult(report), nil, nil
}

// failure renders the error as the tool's text payload. The nil error keeps
// the failure inside the tool result instead of the MCP protocol layer.
func (t *Tools) failure(tool string, logger *zap.Logger, start time.Time, prefix string, err error) (*mcp.CallToolResult, any, error) {
	duration := time.Since(start)
	observability.ToolInvocationsTotal.WithLabelValues(tool, "failure").Inc()
	observability.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	logger.Warn("tool failed", zap.Duration("duration", duration), zap.Error(err))
	return textResult(fmt.Sprintf("%s: %s", prefix, err)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func boolOrTrue(b *bool) bool {
	return b == nil || *b
}
