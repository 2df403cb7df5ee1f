package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (s *server) getFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	page, err := parsePage(q)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	listings, err := s.Feed.Feed(r.Context(), userID(r), filter, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.Listing]{Items: listings, Limit: page.Limit, Offset: page.Offset})
}

func (s *server) getListing(w http.ResponseWriter, r *http.Request) {
	detail, err := s.Feed.Listing(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type swipeRequest struct {
	ListingID string               `json:"listing_id"`
	Direction model.SwipeDirection `json:"direction"`
}

func (s *server) postSwipe(w http.ResponseWriter, r *http.Request) {
	var req swipeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	err := s.Feed.Swipe(r.Context(), model.Swipe{
		UserID:    userID(r),
		ListingID: req.ListingID,
		Direction: req.Direction,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePage(q)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	unread, _ := strconv.ParseBool(q.Get("unread"))

	alerts, err := s.Alerts.List(r.Context(), userID(r), unread, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.Alert]{Items: alerts, Limit: page.Limit, Offset: page.Offset})
}

func (s *server) markAlertRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Alerts.MarkRead(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePage(q)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status")), Limit: page.Limit, Offset: page.Offset}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(w, "since must be RFC3339")
			return
		}
		filter.StartedAfter = &t
	}

	runs, err := s.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.ScrapeRun{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.ScrapeRun]{Items: runs, Limit: page.Limit, Offset: page.Offset})
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func parsePage(q url.Values) (model.Page, error) {
	var p model.Page
	var err error
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil || p.Limit < 0 {
			return p, eris.New("limit must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if p.Offset, err = strconv.Atoi(v); err != nil || p.Offset < 0 {
			return p, eris.New("offset must be a non-negative integer")
		}
	}
	return p.Normalize(), nil
}

func parseFilter(q url.Values) (model.FeedFilter, error) {
	var f model.FeedFilter
	if v := q.Get("min_price"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, eris.New("min_price must be an integer")
		}
		f.MinPrice = &n
	}
	if v := q.Get("max_price"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, eris.New("max_price must be an integer")
		}
		f.MaxPrice = &n
	}
	if v := q.Get("min_beds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, eris.New("min_beds must be an integer")
		}
		f.MinBeds = &n
	}
	if v := q.Get("min_baths"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, eris.New("min_baths must be a number")
		}
		f.MinBaths = &n
	}
	f.Province = strings.TrimSpace(q.Get("province"))
	if v := q.Get("bbox"); v != "" {
		box, err := parseBBox(v)
		if err != nil {
			return f, err
		}
		f.Area = box
	}
	return f, nil
}

// parseBBox reads "minLng,minLat,maxLng,maxLat".
func parseBBox(v string) (*model.BoundingBox, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return nil, eris.New("bbox must be minLng,minLat,maxLng,maxLat")
	}
	var n [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, eris.New("bbox must be minLng,minLat,maxLng,maxLat")
		}
		n[i] = f
	}
	return &model.BoundingBox{MinLng: n[0], MinLat: n[1], MaxLng: n[2], MaxLat: n[3]}, nil
}
