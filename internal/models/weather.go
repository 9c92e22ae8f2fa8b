package models

// ResolvedLocation is the canonical identity of a place as returned by the
// geo lookup, or synthesized directly from a numeric LocationID input.
// Lat/Lon are empty when the location was not resolved over the network.
type ResolvedLocation struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Lat         string `json:"lat,omitempty"`
	Lon         string `json:"lon,omitempty"`
	Province    string `json:"province,omitempty"` // adm1
	District    string `json:"district,omitempty"` // adm2
}

// CityMatch is a single candidate from a bulk city search, used for
// disambiguation when one name maps to several places.
type CityMatch struct {
	Name       string `json:"name"`
	LocationID string `json:"locationId"`
	Province   string `json:"province"`
	District   string `json:"district"`
}

// CurrentConditions holds realtime observation data. All magnitudes are kept
// as provider-native strings and only formatted for display; the upstream
// API is authoritative for units and precision.
type CurrentConditions struct {
	Location  string
	ObsTime   string
	Temp      string
	FeelsLike string
	Text      string
	WindDir   string
	WindScale string
	Humidity  string
	Precip    string
	Vis       string
	Pressure  string
}

// DailyForecastEntry is one day of the multi-day forecast.
type DailyForecastEntry struct {
	FxDate       string
	TempMax      string
	TempMin      string
	TextDay      string
	TextNight    string
	WindDirDay   string
	WindScaleDay string
	Humidity     string
	Precip       string
	UVIndex      string
}

// Alert is an active weather warning for a coordinate.
type Alert struct {
	SenderName    string
	EventType     string
	Severity      string
	Headline      string
	Description   string
	Instruction   string
	EffectiveTime string
	ExpireTime    string
	Color         string
}

// AirQualitySnapshot is the realtime air quality at a coordinate.
// Pollutant fields are "value unit" display strings.
type AirQualitySnapshot struct {
	AQI                   string
	Category              string
	PrimaryPollutant      string
	PM25                  string
	PM10                  string
	NO2                   string
	O3                    string
	CO                    string
	SO2                   string
	HealthEffect          string
	HealthAdviceGeneral   string
	HealthAdviceSensitive string
}

// AirQualityDay is one day of the air quality forecast (covers 3 days).
type AirQualityDay struct {
	AQI      string
	Category string
}

// LifeIndexEntry is a single life index (sport, car wash, UV, ...) for one day.
type LifeIndexEntry struct {
	Name     string
	Category string
	Text     string
}
