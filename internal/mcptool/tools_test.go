package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tianqi-tools/weather-mcp/internal/models"
	"github.com/tianqi-tools/weather-mcp/internal/service"
)

type stubGateway struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
}

func (s *stubGateway) serve(endpoint string, out any) error {
	s.mu.Lock()
	s.calls = append(s.calls, endpoint)
	s.mu.Unlock()
	body, ok := s.responses[endpoint]
	if !ok {
		return errors.New("unexpected endpoint: " + endpoint)
	}
	return json.Unmarshal([]byte(body), out)
}

func (s *stubGateway) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return s.serve(endpoint, out)
}

func (s *stubGateway) GetNoEnvelope(ctx context.Context, endpoint string, out any) error {
	return s.serve(endpoint, out)
}

type stubResolver struct {
	loc models.ResolvedLocation
	err error
}

func (s *stubResolver) Resolve(ctx context.Context, input string) (models.ResolvedLocation, error) {
	return s.loc, s.err
}

func newTestTools(gw service.Gateway, resolver service.LocationResolver) *Tools {
	return &Tools{
		service: service.NewWeatherService(gw, resolver, zap.NewNop()),
		logger:  zap.NewNop(),
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("unexpected result shape: %+v", res)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestGetCurrentWeather_Success(t *testing.T) {
	gw := &stubGateway{responses: map[string]string{
		"/v7/weather/now": `{"code":"200","now":{"obsTime":"2024-05-01T10:00+08:00","temp":"20","feelsLike":"19",
			"text":"晴","windDir":"东南风","windScale":"3","humidity":"40","precip":"0.0","vis":"25","pressure":"1012"}}`,
	}}
	tools := newTestTools(gw, &stubResolver{loc: models.ResolvedLocation{ID: "101010100", DisplayName: "北京市北京"}})

	off := false
	res, _, err := tools.GetCurrentWeather(context.Background(), nil, CurrentWeatherInput{
		Location:          "北京",
		IncludeWarning:    &off,
		IncludeAirQuality: &off,
		IncludeIndices:    &off,
	})
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "📍 城市: 北京市北京") || !strings.Contains(text, "🌡️ 温度: 20°C") {
		t.Errorf("unexpected report:\n%s", text)
	}
}

// TestGetCurrentWeather_FailureStaysInPayload: every failure is text in the
// tool result; the protocol-level error stays nil.
func TestGetCurrentWeather_FailureStaysInPayload(t *testing.T) {
	tools := newTestTools(&stubGateway{}, &stubResolver{err: errors.New("未找到城市: atlantis")})

	off := false
	res, _, err := tools.GetCurrentWeather(context.Background(), nil, CurrentWeatherInput{
		Location:          "atlantis",
		IncludeWarning:    &off,
		IncludeAirQuality: &off,
		IncludeIndices:    &off,
	})
	if err != nil {
		t.Fatalf("GetCurrentWeather() protocol error = %v, want nil", err)
	}
	text := resultText(t, res)
	if !strings.HasPrefix(text, "获取天气失败: ") {
		t.Errorf("failure payload = %q", text)
	}
	if !strings.Contains(text, "atlantis") {
		t.Errorf("failure payload does not carry the cause: %q", text)
	}
}

func TestGetCurrentWeather_EmptyLocation(t *testing.T) {
	tools := newTestTools(&stubGateway{}, &stubResolver{})

	res, _, err := tools.GetCurrentWeather(context.Background(), nil, CurrentWeatherInput{Location: "   "})
	if err != nil {
		t.Fatalf("GetCurrentWeather() protocol error = %v, want nil", err)
	}
	if !strings.HasPrefix(resultText(t, res), "获取天气失败: ") {
		t.Errorf("payload = %q", resultText(t, res))
	}
}

func TestGetWeatherForecast_FailureStaysInPayload(t *testing.T) {
	tools := newTestTools(&stubGateway{}, &stubResolver{err: errors.New("请求超时，请检查网络连接")})

	off := false
	res, _, err := tools.GetWeatherForecast(context.Background(), nil, ForecastInput{
		Location:          "北京",
		Days:              7,
		IncludeAirQuality: &off,
		IncludeIndices:    &off,
	})
	if err != nil {
		t.Fatalf("GetWeatherForecast() protocol error = %v, want nil", err)
	}
	if !strings.HasPrefix(resultText(t, res), "获取天气预报失败: ") {
		t.Errorf("payload = %q", resultText(t, res))
	}
}

// TestGetCurrentWeather_OmittedFlagsDefaultTrue: nil include flags enable all
// optional sub-queries.
func TestGetCurrentWeather_OmittedFlagsDefaultTrue(t *testing.T) {
	gw := &stubGateway{responses: map[string]string{
		"/v7/weather/now": `{"code":"200","now":{"temp":"20"}}`,
		"/weatheralert/v1/current/39.90/116.41": `{"metadata":{"zeroResult":true}}`,
		"/airquality/v1/current/39.90/116.41":   `{"indexes":[]}`,
		"/v7/indices/1d":                        `{"code":"200","daily":[]}`,
	}}
	tools := newTestTools(gw, &stubResolver{loc: models.ResolvedLocation{
		ID: "101010100", DisplayName: "北京市北京", Lat: "39.90499", Lon: "116.40529",
	}})

	_, _, err := tools.GetCurrentWeather(context.Background(), nil, CurrentWeatherInput{Location: "北京"})
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	for _, endpoint := range []string{
		"/weatheralert/v1/current/39.90/116.41",
		"/airquality/v1/current/39.90/116.41",
		"/v7/indices/1d",
	} {
		found := false
		for _, c := range gw.calls {
			if c == endpoint {
				found = true
			}
		}
		if !found {
			t.Errorf("endpoint %s not called with omitted flags", endpoint)
		}
	}
}

func TestBoolOrTrue(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		in   *bool
		want bool
	}{
		{in: nil, want: true},
		{in: &yes, want: true},
		{in: &no, want: false},
	}

	for _, tc := range tests {
		if got := boolOrTrue(tc.in); got != tc.want {
			t.Errorf("boolOrTrue(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
