package geo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tianqi-tools/weather-mcp/internal/cache"
	"github.com/tianqi-tools/weather-mcp/internal/models"
	"github.com/tianqi-tools/weather-mcp/internal/observability"
)

// ErrCityNotFound is returned when the lookup matches nothing.
var ErrCityNotFound = errors.New("未找到城市")

const (
	lookupEndpoint = "/geo/v2/city/lookup"
	lookupLang     = "zh"

	// maxSearchResults caps the bulk search used for disambiguation.
	maxSearchResults = 10
)

// Gateway is the subset of the HTTP client the resolver needs.
type Gateway interface {
	Get(ctx context.Context, endpoint string, query url.Values, out any) error
}

// Resolver turns free-text place names into canonical LocationIDs, with a
// cache-aside layer in front of the lookup endpoint.
type Resolver struct {
	gateway Gateway
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewResolver creates a Resolver. cache may be nil to disable caching.
func NewResolver(gateway Gateway, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		gateway: gateway,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
	}
}

type lookupResponse struct {
	Location []struct {
		Name string `json:"name"`
		ID   string `json:"id"`
		Adm1 string `json:"adm1"`
		Adm2 string `json:"adm2"`
		Lat  string `json:"lat"`
		Lon  string `json:"lon"`
	} `json:"location"`
}

// Resolve maps input to a canonical location. A purely numeric input is
// already a LocationID and short-circuits without any network call; its
// display name is the ID itself and no coordinates are available.
// Otherwise the first lookup match wins, ranked by the provider.
func (r *Resolver) Resolve(ctx context.Context, input string) (models.ResolvedLocation, error) {
	input = strings.TrimSpace(input)

	if isNumeric(input) {
		return models.ResolvedLocation{ID: input, DisplayName: input}, nil
	}

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, input)
		if err != nil {
			r.logger.Warn("location cache get failed", zap.String("query", input), zap.Error(err))
		} else if ok {
			observability.LocationCacheHitsTotal.Inc()
			return cached, nil
		}
	}

	data, err := r.lookup(ctx, input)
	if err != nil {
		return models.ResolvedLocation{}, err
	}
	if len(data.Location) == 0 {
		return models.ResolvedLocation{}, fmt.Errorf("%w: %s", ErrCityNotFound, input)
	}

	city := data.Location[0]
	loc := models.ResolvedLocation{
		ID:          city.ID,
		DisplayName: displayName(city.Name, city.Adm1, input),
		Lat:         city.Lat,
		Lon:         city.Lon,
		Province:    city.Adm1,
		District:    city.Adm2,
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, input, loc, r.ttl); err != nil {
			r.logger.Warn("location cache set failed", zap.String("query", input), zap.Error(err))
		}
	}
	return loc, nil
}

// SearchCities returns up to 10 raw matches for a place name, unfiltered and
// in provider order, for disambiguating ambiguous names.
func (r *Resolver) SearchCities(ctx context.Context, name string) ([]models.CityMatch, error) {
	data, err := r.lookup(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if len(data.Location) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, name)
	}

	n := len(data.Location)
	if n > maxSearchResults {
		n = maxSearchResults
	}
	matches := make([]models.CityMatch, 0, n)
	for _, city := range data.Location[:n] {
		matches = append(matches, models.CityMatch{
			Name:       city.Name,
			LocationID: city.ID,
			Province:   city.Adm1,
			District:   city.Adm2,
		})
	}
	return matches, nil
}

func (r *Resolver) lookup(ctx context.Context, query string) (*lookupResponse, error) {
	observability.LocationLookupsTotal.Inc()
	params := url.Values{}
	params.Set("location", query)
	params.Set("lang", lookupLang)

	var data lookupResponse
	if err := r.gateway.Get(ctx, lookupEndpoint, params, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// displayName prefixes the province when it adds information, e.g.
// adm1 "北京市" + name "朝阳" -> "北京市朝阳".
func displayName(name, adm1, fallback string) string {
	if name == "" {
		name = fallback
	}
	if adm1 != "" && adm1 != name {
		return adm1 + name
	}
	return name
}

// isNumeric reports whether s is non-empty and entirely decimal digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
