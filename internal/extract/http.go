package extract

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/resilience"
)

// HTTPExtractor pages through a JSON listing feed:
//
//	GET <feed>?page=N&page_size=M -> {"items": [...], "has_more": true}
type HTTPExtractor struct {
	feedURL     string
	pageSize    int
	maxPages    int
	maxFailures int
	retry       resilience.RetryConfig
	http        *http.Client
}

// HTTPOption configures an HTTPExtractor.
type HTTPOption func(*HTTPExtractor)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(e *HTTPExtractor) { e.http = hc }
}

// WithPageSize sets the page_size query parameter.
func WithPageSize(n int) HTTPOption {
	return func(e *HTTPExtractor) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithMaxPages caps the number of pages requested per pass.
func WithMaxPages(n int) HTTPOption {
	return func(e *HTTPExtractor) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithRetry sets the per-page retry policy.
func WithRetry(cfg resilience.RetryConfig) HTTPOption {
	return func(e *HTTPExtractor) { e.retry = cfg }
}

// WithMaxPageFailures stops paging after n consecutive failed pages.
func WithMaxPageFailures(n int) HTTPOption {
	return func(e *HTTPExtractor) {
		if n > 0 {
			e.maxFailures = n
		}
	}
}

// NewHTTPExtractor creates an extractor for the feed at feedURL.
func NewHTTPExtractor(feedURL string, opts ...HTTPOption) *HTTPExtractor {
	e := &HTTPExtractor{
		feedURL:     feedURL,
		pageSize:    100,
		maxPages:    50,
		maxFailures: 3,
		retry:       resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry.OnRetry == nil {
		e.retry.OnRetry = resilience.RetryLogger("feed", "fetch_page")
	}
	return e
}

type feedPage struct {
	Items   []json.RawMessage `json:"items"`
	HasMore bool              `json:"has_more"`
}

// Extract returns an iterator over the feed. Each page is retried on
// transient failures; a page that still fails is yielded as an error and
// paging continues with the next one. If no page at all could be fetched the
// iterator ends with an ErrFatal error.
func (e *HTTPExtractor) Extract(ctx context.Context) (iter.Seq2[RawSnapshot, error], error) {
	base, err := url.Parse(e.feedURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, eris.Errorf("extract: invalid feed url %q", e.feedURL)
	}

	return func(yield func(RawSnapshot, error) bool) {
		fetched := false
		failures := 0

		for page := 1; page <= e.maxPages; page++ {
			if err := ctx.Err(); err != nil {
				yield(RawSnapshot{}, err)
				return
			}

			fp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*feedPage, error) {
				return e.fetchPage(ctx, base, page)
			})
			if err != nil {
				failures++
				if !yield(RawSnapshot{}, eris.Wrapf(err, "extract: page %d", page)) {
					return
				}
				if failures >= e.maxFailures {
					break
				}
				continue
			}
			fetched = true
			failures = 0

			for i, item := range fp.Items {
				var raw RawSnapshot
				if err := json.Unmarshal(item, &raw); err != nil {
					if !yield(RawSnapshot{}, eris.Wrapf(err, "extract: page %d item %d", page, i)) {
						return
					}
					continue
				}
				if !yield(raw, nil) {
					return
				}
			}
			if !fp.HasMore || len(fp.Items) == 0 {
				break
			}
		}

		if !fetched {
			yield(RawSnapshot{}, eris.Wrap(ErrFatal, "extract: no feed page could be fetched"))
		}
	}, nil
}

func (e *HTTPExtractor) fetchPage(ctx context.Context, base *url.URL, page int) (*feedPage, error) {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(e.pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "extract: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "extract: request failed"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "extract: read response body"), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("extract", resp.StatusCode, body)
	}

	var fp feedPage
	if err := json.Unmarshal(body, &fp); err != nil {
		return nil, eris.Wrap(err, "extract: decode page")
	}
	return &fp, nil
}
