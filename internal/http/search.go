package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/search"
	"github.com/Clark-Hu/reelview/internal/ui"
)

const (
	msgFiltersFailed = "Could not load the filter options. Reload the page to retry."
	msgSearchFailed  = "Could not load movies for this search."
	msgSearchPending = "Still loading results..."
)

type searchPage struct {
	basePage
	Missing   bool
	Forbidden bool
	Error     string
	Pending   string
	Snapshot  search.Snapshot
	Detail    *detailView
}

type summaryResponse struct {
	MovieID  int64                 `json:"movie_id"`
	Parts    []summaryPartResponse `json:"parts"`
	Fallback bool                  `json:"fallback"`
}

type summaryPartResponse struct {
	Header bool     `json:"header"`
	Lines  []string `json:"lines"`
}

// parseFilters reads the filter tuple from the search query. Multi-valued
// parameters may repeat or carry comma-separated lists.
func parseFilters(q url.Values) domain.FilterTuple {
	return domain.FilterTuple{
		Query:     strings.TrimSpace(q.Get("search")),
		Years:     domain.ParseYears(q["years"]),
		Countries: domain.SplitList(q["countries"]),
		Genres:    domain.SplitList(q["genres"]),
	}.Canonical()
}

// pageParam returns 0 when no valid page is given, meaning "keep the current page".
func pageParam(q url.Values) int {
	page, err := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	if err != nil || page < 1 {
		return 0
	}
	return page
}

// runSearch applies the request's selection to the session's coordinator and
// waits for the matching result.
func (s *Server) runSearch(r *http.Request) (search.Snapshot, error) {
	cur := currentSession(r)
	coord := s.searches.Get(backendContext(r), cur.ID)

	q := r.URL.Query()
	filters := parseFilters(q)
	gen := coord.Update(search.Change{Filters: &filters, Page: pageParam(q)})

	wait := time.Duration(s.cfg.BackendTimeoutSecs)*time.Second + time.Second
	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()
	return coord.Wait(ctx, gen)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page := searchPage{basePage: basePage{Shell: shellFrom(r, ui.ScreenSearch), Title: "Search"}}

	_, missing, foreign := screenUser(r)
	switch {
	case missing:
		page.Missing = true
		page.Error = msgMissingUser
		s.render(w, http.StatusBadRequest, "search.html", page)
		return
	case foreign:
		page.Forbidden = true
		page.Error = msgForeignUser
		s.render(w, http.StatusForbidden, "search.html", page)
		return
	}

	snap, err := s.runSearch(r)
	page.Snapshot = snap
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn().Err(err).Msg("search wait")
		}
		page.Pending = msgSearchPending
	}
	switch snap.State {
	case search.FiltersError:
		page.Error = msgFiltersFailed
	case search.MoviesError:
		page.Error = msgSearchFailed
	}
	page.Detail = s.buildDetail(r, snap.Movies)
	s.render(w, http.StatusOK, "search.html", page)
}

func (s *Server) handleSearchAPI(w http.ResponseWriter, r *http.Request) {
	snap, err := s.runSearch(r)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.respondJSON(w, http.StatusAccepted, snap)
			return
		}
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Search is not available")
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSummaryAPI(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid movie id")
		return
	}
	parts, fallback := s.summary(backendContext(r), id)
	resp := summaryResponse{MovieID: id, Fallback: fallback, Parts: make([]summaryPartResponse, 0, len(parts))}
	for _, p := range parts {
		resp.Parts = append(resp.Parts, summaryPartResponse{Header: p.IsHeader(), Lines: p.Lines})
	}
	s.respondJSON(w, http.StatusOK, resp)
}
