package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tianqi-tools/weather-mcp/internal/models"
	"github.com/tianqi-tools/weather-mcp/internal/validation"
)

// Gateway is the subset of the HTTP client the aggregator needs. Get decodes
// the classic envelope; GetNoEnvelope is for the alert/air-quality API
// family, which signals emptiness via metadata.zeroResult instead of a code.
// The two decoding strategies are kept separate on purpose: unifying them
// would change error semantics for one endpoint family.
type Gateway interface {
	Get(ctx context.Context, endpoint string, query url.Values, out any) error
	GetNoEnvelope(ctx context.Context, endpoint string, out any) error
}

// LocationResolver resolves free-text place names.
type LocationResolver interface {
	Resolve(ctx context.Context, input string) (models.ResolvedLocation, error)
}

// indexTypes selects sport, car wash, dressing, UV, flu and air pollution
// diffusion indices.
const indexTypes = "1,2,3,5,8,9"

const apiLang = "zh"

// WeatherService aggregates the resolver plus up to four concurrent
// sub-queries into one formatted report. Only the conditions/forecast fetch
// is mandatory; every optional sub-query degrades to empty on failure.
type WeatherService struct {
	gateway  Gateway
	resolver LocationResolver
	logger   *zap.Logger
}

// NewWeatherService creates a WeatherService with the provided dependencies.
func NewWeatherService(gateway Gateway, resolver LocationResolver, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		gateway:  gateway,
		resolver: resolver,
		logger:   logger,
	}
}

// result carries one sub-query's value-or-error so the fan-out can be
// collected into a fixed-shape struct before rendering.
type result[T any] struct {
	val T
	err error
}

type currentResults struct {
	conditions result[*models.CurrentConditions]
	alerts     result[[]models.Alert]
	airQuality result[*models.AirQualitySnapshot]
	indices    result[[]models.LifeIndexEntry]
}

type forecastResults struct {
	daily      result[[]models.DailyForecastEntry]
	airQuality result[[]models.AirQualityDay]
	indices    result[[]models.LifeIndexEntry]
}

// CurrentWeatherReport resolves the location and fan-outs the conditions
// fetch plus the enabled optional sub-queries. Sub-queries run concurrently
// and are all awaited; a failing optional branch never cancels its siblings
// and never reaches the report text.
func (s *WeatherService) CurrentWeatherReport(ctx context.Context, location string, includeWarning, includeAirQuality, includeIndices bool) (string, error) {
	loc, err := s.resolver.Resolve(ctx, location)
	if err != nil {
		return "", err
	}

	var res currentResults
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.conditions.val, res.conditions.err = s.fetchCurrentConditions(ctx, loc)
	}()
	if includeWarning {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.alerts.val, res.alerts.err = s.fetchAlerts(ctx, loc.Lat, loc.Lon)
		}()
	}
	if includeAirQuality {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.airQuality.val, res.airQuality.err = s.fetchAirQuality(ctx, loc.Lat, loc.Lon)
		}()
	}
	if includeIndices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.indices.val, res.indices.err = s.fetchIndices(ctx, loc.ID, "1d")
		}()
	}
	wg.Wait()

	if res.conditions.err != nil {
		return "", res.conditions.err
	}
	if res.conditions.val == nil {
		return fmt.Sprintf("无法获取 %s 的天气信息", loc.DisplayName), nil
	}

	alerts := degrade(s.logger, res.alerts, "天气预警")
	airQuality := degrade(s.logger, res.airQuality, "空气质量")
	indices := degrade(s.logger, res.indices, "天气指数")

	return renderCurrentReport(*res.conditions.val, alerts, airQuality, indices), nil
}

// ForecastReport fetches the N-day forecast plus the enabled optional
// sub-queries. Unsupported day counts are silently coerced to the default;
// the air quality forecast only ever covers the first 3 days.
func (s *WeatherService) ForecastReport(ctx context.Context, location string, days int, includeAirQuality, includeIndices bool) (string, error) {
	days = validation.NormalizeDays(days)

	loc, err := s.resolver.Resolve(ctx, location)
	if err != nil {
		return "", err
	}

	var res forecastResults
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.daily.val, res.daily.err = s.fetchDailyForecast(ctx, loc, days)
	}()
	if includeAirQuality {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.airQuality.val, res.airQuality.err = s.fetchAirQualityForecast(ctx, loc.Lat, loc.Lon)
		}()
	}
	if includeIndices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.indices.val, res.indices.err = s.fetchIndices(ctx, loc.ID, "3d")
		}()
	}
	wg.Wait()

	if res.daily.err != nil {
		return "", res.daily.err
	}
	if len(res.daily.val) == 0 {
		return fmt.Sprintf("无法获取 %s 的天气预报", loc.DisplayName), nil
	}

	airQualityDays := degrade(s.logger, res.airQuality, "空气质量预报")
	indices := degrade(s.logger, res.indices, "天气指数")

	return renderForecastReport(loc.DisplayName, days, res.daily.val, airQualityDays, indices), nil
}

// degrade swallows an optional sub-query failure, logging a warning and
// returning the zero value. Mandatory results never pass through here.
func degrade[T any](logger *zap.Logger, r result[T], what string) T {
	if r.err != nil {
		logger.Warn("optional sub-query failed", zap.String("what", what), zap.Error(r.err))
		var zero T
		return zero
	}
	return r.val
}

type observationPayload struct {
	ObsTime   string `json:"obsTime"`
	Temp      string `json:"temp"`
	FeelsLike string `json:"feelsLike"`
	Text      string `json:"text"`
	WindDir   string `json:"windDir"`
	WindScale string `json:"windScale"`
	Humidity  string `json:"humidity"`
	Precip    string `json:"precip"`
	Vis       string `json:"vis"`
	Pressure  string `json:"pressure"`
}

// fetchCurrentConditions is the mandatory sub-query of the current report.
// A response without a "now" block yields (nil, nil); the caller turns that
// into an explanatory message rather than an error.
func (s *WeatherService) fetchCurrentConditions(ctx context.Context, loc models.ResolvedLocation) (*models.CurrentConditions, error) {
	params := url.Values{}
	params.Set("location", loc.ID)
	params.Set("lang", apiLang)
	params.Set("unit", "m")

	var data struct {
		Now *observationPayload `json:"now"`
	}
	if err := s.gateway.Get(ctx, "/v7/weather/now", params, &data); err != nil {
		return nil, err
	}
	if data.Now == nil {
		return nil, nil
	}

	return &models.CurrentConditions{
		Location:  loc.DisplayName,
		ObsTime:   data.Now.ObsTime,
		Temp:      data.Now.Temp,
		FeelsLike: data.Now.FeelsLike,
		Text:      data.Now.Text,
		WindDir:   data.Now.WindDir,
		WindScale: data.Now.WindScale,
		Humidity:  data.Now.Humidity,
		Precip:    data.Now.Precip,
		Vis:       data.Now.Vis,
		Pressure:  data.Now.Pressure,
	}, nil
}

// fetchDailyForecast is the mandatory sub-query of the forecast report.
func (s *WeatherService) fetchDailyForecast(ctx context.Context, loc models.ResolvedLocation, days int) ([]models.DailyForecastEntry, error) {
	params := url.Values{}
	params.Set("location", loc.ID)
	params.Set("lang", apiLang)
	params.Set("unit", "m")

	var data struct {
		Daily []struct {
			FxDate       string `json:"fxDate"`
			TempMax      string `json:"tempMax"`
			TempMin      string `json:"tempMin"`
			TextDay      string `json:"textDay"`
			TextNight    string `json:"textNight"`
			WindDirDay   string `json:"windDirDay"`
			WindScaleDay string `json:"windScaleDay"`
			Humidity     string `json:"humidity"`
			Precip       string `json:"precip"`
			UVIndex      string `json:"uvIndex"`
		} `json:"daily"`
	}
	endpoint := fmt.Sprintf("/v7/weather/%dd", days)
	if err := s.gateway.Get(ctx, endpoint, params, &data); err != nil {
		return nil, err
	}

	entries := make([]models.DailyForecastEntry, 0, len(data.Daily))
	for _, day := range data.Daily {
		entries = append(entries, models.DailyForecastEntry{
			FxDate:       day.FxDate,
			TempMax:      day.TempMax,
			TempMin:      day.TempMin,
			TextDay:      day.TextDay,
			TextNight:    day.TextNight,
			WindDirDay:   day.WindDirDay,
			WindScaleDay: day.WindScaleDay,
			Humidity:     day.Humidity,
			Precip:       day.Precip,
			UVIndex:      day.UVIndex,
		})
	}
	return entries, nil
}

// fetchAlerts retrieves active warnings for a coordinate. Missing
// coordinates mean no call and an empty result; an envelope with
// metadata.zeroResult set is likewise empty, not an error.
func (s *WeatherService) fetchAlerts(ctx context.Context, lat, lon string) ([]models.Alert, error) {
	if lat == "" || lon == "" {
		return nil, nil
	}
	latF, lonF, err := formatCoords(lat, lon)
	if err != nil {
		return nil, err
	}

	var data struct {
		Metadata struct {
			ZeroResult bool `json:"zeroResult"`
		} `json:"metadata"`
		Alerts []struct {
			SenderName string `json:"senderName"`
			EventType  struct {
				Name string `json:"name"`
			} `json:"eventType"`
			Severity      string `json:"severity"`
			Headline      string `json:"headline"`
			Description   string `json:"description"`
			Instruction   string `json:"instruction"`
			EffectiveTime string `json:"effectiveTime"`
			ExpireTime    string `json:"expireTime"`
			Color         struct {
				Code string `json:"code"`
			} `json:"color"`
		} `json:"alerts"`
	}
	endpoint := fmt.Sprintf("/weatheralert/v1/current/%s/%s", latF, lonF)
	if err := s.gateway.GetNoEnvelope(ctx, endpoint, &data); err != nil {
		return nil, err
	}
	if data.Metadata.ZeroResult {
		return nil, nil
	}

	alerts := make([]models.Alert, 0, len(data.Alerts))
	for _, a := range data.Alerts {
		alerts = append(alerts, models.Alert{
			SenderName:    a.SenderName,
			EventType:     a.EventType.Name,
			Severity:      a.Severity,
			Headline:      a.Headline,
			Description:   a.Description,
			Instruction:   a.Instruction,
			EffectiveTime: a.EffectiveTime,
			ExpireTime:    a.ExpireTime,
			Color:         a.Color.Code,
		})
	}
	return alerts, nil
}

type aqIndexPayload struct {
	AQIDisplay       string `json:"aqiDisplay"`
	Category         string `json:"category"`
	PrimaryPollutant *struct {
		Name string `json:"name"`
	} `json:"primaryPollutant"`
	Health *struct {
		Effect string `json:"effect"`
		Advice *struct {
			GeneralPopulation   string `json:"generalPopulation"`
			SensitivePopulation string `json:"sensitivePopulation"`
		} `json:"advice"`
	} `json:"health"`
}

type aqPollutantPayload struct {
	Code          string `json:"code"`
	Concentration struct {
		Value json.Number `json:"value"`
		Unit  string      `json:"unit"`
	} `json:"concentration"`
}

// fetchAirQuality retrieves the realtime air quality for a coordinate.
// The first index entry is used; it carries the local standard.
func (s *WeatherService) fetchAirQuality(ctx context.Context, lat, lon string) (*models.AirQualitySnapshot, error) {
	if lat == "" || lon == "" {
		return nil, nil
	}
	latF, lonF, err := formatCoords(lat, lon)
	if err != nil {
		return nil, err
	}

	var data struct {
		Indexes    []aqIndexPayload     `json:"indexes"`
		Pollutants []aqPollutantPayload `json:"pollutants"`
	}
	endpoint := fmt.Sprintf("/airquality/v1/current/%s/%s", latF, lonF)
	if err := s.gateway.GetNoEnvelope(ctx, endpoint, &data); err != nil {
		return nil, err
	}
	if len(data.Indexes) == 0 {
		return nil, nil
	}

	idx := data.Indexes[0]
	snapshot := &models.AirQualitySnapshot{
		AQI:      idx.AQIDisplay,
		Category: idx.Category,
		PM25:     pollutantValue(data.Pollutants, "pm2p5"),
		PM10:     pollutantValue(data.Pollutants, "pm10"),
		NO2:      pollutantValue(data.Pollutants, "no2"),
		O3:       pollutantValue(data.Pollutants, "o3"),
		CO:       pollutantValue(data.Pollutants, "co"),
		SO2:      pollutantValue(data.Pollutants, "so2"),
	}
	if idx.PrimaryPollutant != nil {
		snapshot.PrimaryPollutant = idx.PrimaryPollutant.Name
	}
	if idx.Health != nil {
		snapshot.HealthEffect = idx.Health.Effect
		if idx.Health.Advice != nil {
			snapshot.HealthAdviceGeneral = idx.Health.Advice.GeneralPopulation
			snapshot.HealthAdviceSensitive = idx.Health.Advice.SensitivePopulation
		}
	}
	return snapshot, nil
}

// fetchAirQualityForecast retrieves the 3-day air quality forecast.
func (s *WeatherService) fetchAirQualityForecast(ctx context.Context, lat, lon string) ([]models.AirQualityDay, error) {
	if lat == "" || lon == "" {
		return nil, nil
	}
	latF, lonF, err := formatCoords(lat, lon)
	if err != nil {
		return nil, err
	}

	var data struct {
		Days []struct {
			Indexes []aqIndexPayload `json:"indexes"`
		} `json:"days"`
	}
	endpoint := fmt.Sprintf("/airquality/v1/daily/%s/%s", latF, lonF)
	if err := s.gateway.GetNoEnvelope(ctx, endpoint, &data); err != nil {
		return nil, err
	}

	days := make([]models.AirQualityDay, 0, len(data.Days))
	for _, day := range data.Days {
		var d models.AirQualityDay
		if len(day.Indexes) > 0 {
			d.AQI = day.Indexes[0].AQIDisplay
			d.Category = day.Indexes[0].Category
		}
		days = append(days, d)
	}
	return days, nil
}

// fetchIndices retrieves life indices for a LocationID. period is "1d" for
// today or "3d" for the forecast grouping.
func (s *WeatherService) fetchIndices(ctx context.Context, locationID, period string) ([]models.LifeIndexEntry, error) {
	params := url.Values{}
	params.Set("location", locationID)
	params.Set("type", indexTypes)
	params.Set("lang", apiLang)

	var data struct {
		Daily []struct {
			Name     string `json:"name"`
			Category string `json:"category"`
			Text     string `json:"text"`
		} `json:"daily"`
	}
	endpoint := "/v7/indices/" + period
	if err := s.gateway.Get(ctx, endpoint, params, &data); err != nil {
		return nil, err
	}

	indices := make([]models.LifeIndexEntry, 0, len(data.Daily))
	for _, item := range data.Daily {
		indices = append(indices, models.LifeIndexEntry{
			Name:     item.Name,
			Category: item.Category,
			Text:     item.Text,
		})
	}
	return indices, nil
}

// pollutantValue joins a pollutant's concentration value and unit for
// display, e.g. "35 μg/m3". Unknown codes yield an empty string.
func pollutantValue(pollutants []aqPollutantPayload, code string) string {
	for _, p := range pollutants {
		if strings.EqualFold(p.Code, code) {
			return strings.TrimSpace(p.Concentration.Value.String() + " " + p.Concentration.Unit)
		}
	}
	return ""
}

// formatCoords renders both coordinates with exactly 2 decimal places, as
// the alert/air-quality endpoints require in their path.
func formatCoords(lat, lon string) (string, string, error) {
	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return "", "", fmt.Errorf("parse latitude %q: %w", lat, err)
	}
	lonV, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return "", "", fmt.Errorf("parse longitude %q: %w", lon, err)
	}
	return strconv.FormatFloat(latV, 'f', 2, 64), strconv.FormatFloat(lonV, 'f', 2, 64), nil
}
