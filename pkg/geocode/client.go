// Package geocode resolves listing addresses to coordinates with the Google
// Geocoding API.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/homeswipe/internal/model"
)

// Client geocodes addresses.
type Client interface {
	// Geocode resolves a single address. An address the provider cannot
	// place is not an error: the result has Matched=false.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// AddressInput is an address to geocode.
type AddressInput struct {
	Street   string
	Town     string
	Province string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Quality   string // "rooftop", "range", "centroid", "approximate", "cache"
	Matched   bool
}

// Coordinates converts a matched result to model coordinates.
func (r *Result) Coordinates() *model.Coordinates {
	if r == nil || !r.Matched {
		return nil
	}
	return &model.Coordinates{Lat: r.Latitude, Lng: r.Longitude}
}

// Cache stores resolved coordinates by normalized address key.
// A miss returns nil, nil.
type Cache interface {
	GetCachedGeocode(ctx context.Context, key string) (*model.Coordinates, error)
	SetCachedGeocode(ctx context.Context, key string, c model.Coordinates, now time.Time) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for API calls. Cache hits
// are not limited.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRegion biases results towards a ccTLD region ("es").
func WithRegion(region string) Option {
	return func(g *geocoder) {
		g.region = region
	}
}

// WithCache enables the address cache.
func WithCache(c Cache) Option {
	return func(g *geocoder) {
		g.cache = c
	}
}

type geocoder struct {
	httpClient *http.Client
	apiKey     string
	region     string
	limiter    *rate.Limiter
	cache      Cache
	now        func() time.Time
}

// NewClient creates a Google geocoding Client.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		region:     "es",
		limiter:    rate.NewLimiter(1, 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if addr.Street == "" && addr.Town == "" {
		return &Result{Matched: false}, nil
	}

	key := cacheKey(addr)
	if g.cache != nil {
		c, err := g.cache.GetCachedGeocode(ctx, key)
		if err != nil {
			zap.L().Warn("geocode: cache lookup failed", zap.Error(err))
		} else if c != nil {
			return &Result{Latitude: c.Lat, Longitude: c.Lng, Quality: "cache", Matched: true}, nil
		}
	}

	result, err := g.geocodeGoogle(ctx, addr)
	if err != nil {
		return nil, err
	}

	if g.cache != nil && result.Matched {
		if err := g.cache.SetCachedGeocode(ctx, key, *result.Coordinates(), g.now().UTC()); err != nil {
			zap.L().Warn("geocode: cache store failed", zap.Error(eris.Wrap(err, "geocode: store cache")))
		}
	}
	return result, nil
}
