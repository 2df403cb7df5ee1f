package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/resilience"
)

// Enricher fills in missing snapshot coordinates. Geocoding is best effort:
// failures are logged and leave the coordinates nil.
type Enricher struct {
	client  Client
	breaker *resilience.CircuitBreaker
	log     *zap.Logger
}

// NewEnricher wraps client with a circuit breaker that opens after
// failureThreshold consecutive transient failures.
func NewEnricher(client Client, failureThreshold int) *Enricher {
	return &Enricher{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "geocode",
			FailureThreshold: failureThreshold,
			ResetTimeout:     time.Minute,
		}),
		log: zap.L().With(zap.String("component", "geocode")),
	}
}

// Enrich sets snap.Coordinates when they are missing and the address can be
// resolved. It reports whether coordinates were added.
func (e *Enricher) Enrich(ctx context.Context, snap *model.Snapshot) bool {
	if snap.Coordinates != nil || snap.Street == "" {
		return false
	}

	res, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*Result, error) {
		return e.client.Geocode(ctx, AddressInput{Street: snap.Street, Town: snap.Town, Province: snap.Province})
	})
	if err != nil {
		e.log.Warn("geocode failed", zap.String("source_url", snap.SourceURL), zap.Error(err))
		return false
	}

	c := res.Coordinates()
	if c == nil {
		e.log.Debug("address not matched", zap.String("source_url", snap.SourceURL))
		return false
	}
	snap.Coordinates = c
	return true
}
