package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/homeswipe/internal/model"
)

func newTestGeocoder(srvURL string, opts ...Option) *geocoder {
	g := NewClient("test-key", opts...).(*geocoder)
	g.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, testServer: srvURL, targetPrefix: googleGeocodeURL}}
	g.limiter = rate.NewLimiter(rate.Inf, 1)
	return g
}

// rewriteTransport sends requests for targetPrefix to the test server.
type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	orig := req.URL.String()
	if !strings.HasPrefix(orig, t.targetPrefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.testServer + orig[len(t.targetPrefix):])
	if err != nil {
		return nil, err
	}
	newReq := req.Clone(req.Context())
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]model.Coordinates
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string]model.Coordinates{}} }

func (m *memCache) GetCachedGeocode(_ context.Context, key string) (*model.Coordinates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memCache) SetCachedGeocode(_ context.Context, key string, c model.Coordinates, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = c
	m.sets++
	return nil
}
