package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Clark-Hu/reelview/internal/backend"
	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/ui"
)

const (
	msgMissingUser   = "No user id in the address. Open this page from the navigation bar."
	msgForeignUser   = "This page belongs to another account."
	msgListFailed    = "Could not load movies. Please try again later."
	msgBackendClosed = "The recommendation service is temporarily unavailable."
)

type basePage struct {
	Shell ui.Shell
	Title string
}

type listPage struct {
	basePage
	Heading    string
	Movies     []domain.MovieDetail
	Missing    bool
	Error      string
	Paginated  bool
	Page       int
	TotalPages int
	Detail     *detailView
}

type detailView struct {
	Movie           domain.MovieDetail
	Tab             ui.Tab
	Tabs            []ui.Tab
	Reviews         []domain.Review
	Summary         []domain.SummaryPart
	SummaryFallback bool
	CloseURL        string
}

// screenUser reads user_id from the query. Absent or invalid ids are the
// missing-identifier state; an id other than the session's is refused.
func screenUser(r *http.Request) (id domain.UserID, missing bool, foreign bool) {
	id, ok := domain.ParseUserID(r.URL.Query().Get("user_id"))
	if !ok {
		return 0, true, false
	}
	return id, false, id != currentSession(r).UserID
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	page := listPage{
		basePage: basePage{Shell: shellFrom(r, ui.ScreenRecommend), Title: "Recommendations"},
		Heading:  "Recommended for you",
	}
	if status, ok := s.checkScreenUser(r, &page); !ok {
		s.render(w, status, "list.html", page)
		return
	}
	userID := currentSession(r).UserID

	movies, err := s.backend.Recommendations(backendContext(r), userID)
	if err != nil {
		page.Error = s.listError(err, "recommend")
		page.Movies = []domain.MovieDetail{}
		s.render(w, http.StatusOK, "list.html", page)
		return
	}
	page.Movies = movies
	page.Detail = s.buildDetail(r, movies)
	s.render(w, http.StatusOK, "list.html", page)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page := listPage{
		basePage:   basePage{Shell: shellFrom(r, ui.ScreenHistory), Title: "History"},
		Heading:    "Watch history",
		Paginated:  true,
		Page:       parsePage(r.URL.Query().Get("page")),
		TotalPages: 1,
	}
	if status, ok := s.checkScreenUser(r, &page); !ok {
		s.render(w, status, "list.html", page)
		return
	}
	userID := currentSession(r).UserID

	result, err := s.backend.History(backendContext(r), userID, page.Page, s.cfg.HistoryPerPage)
	if err != nil {
		page.Error = s.listError(err, "history")
		page.Movies = []domain.MovieDetail{}
		s.render(w, http.StatusOK, "list.html", page)
		return
	}
	page.Movies = result.Movies
	page.TotalPages = result.TotalPages
	page.Detail = s.buildDetail(r, result.Movies)
	s.render(w, http.StatusOK, "list.html", page)
}

// checkScreenUser resolves the missing/foreign identifier states without any backend call.
func (s *Server) checkScreenUser(r *http.Request, page *listPage) (int, bool) {
	_, missing, foreign := screenUser(r)
	switch {
	case missing:
		page.Missing = true
		page.Error = msgMissingUser
		page.Movies = []domain.MovieDetail{}
		return http.StatusBadRequest, false
	case foreign:
		page.Error = msgForeignUser
		page.Movies = []domain.MovieDetail{}
		return http.StatusForbidden, false
	}
	return http.StatusOK, true
}

func (s *Server) listError(err error, screen string) string {
	if errors.Is(err, context.Canceled) {
		return msgListFailed
	}
	s.logger.Warn().Err(err).Str("screen", screen).Msg("load movie list")
	if errors.Is(err, backend.ErrUnavailable) {
		return msgBackendClosed
	}
	return msgListFailed
}

// buildDetail opens the detail panel for ?movie=<id>. The summary is only
// requested while its tab is active.
func (s *Server) buildDetail(r *http.Request, movies []domain.MovieDetail) *detailView {
	q := r.URL.Query()
	id, err := strconv.ParseInt(strings.TrimSpace(q.Get("movie")), 10, 64)
	if err != nil {
		return nil
	}
	movie, ok := domain.FindMovie(movies, id)
	if !ok {
		return nil
	}

	view := &detailView{
		Movie:    movie,
		Tab:      ui.ParseTab(q.Get("tab")),
		Tabs:     ui.Tabs(),
		CloseURL: ui.WithParams(r.URL.RequestURI(), map[string]string{"movie": "", "tab": ""}),
	}
	switch view.Tab {
	case ui.TabReviews:
		view.Reviews = s.reviews(movie)
	case ui.TabSummary:
		view.Summary, view.SummaryFallback = s.summary(backendContext(r), movie.ID)
	}
	return view
}

func (s *Server) reviews(movie domain.MovieDetail) []domain.Review {
	reviews, err := domain.ParseReviews(movie.Reviews)
	if err != nil {
		s.logger.Debug().Err(err).Int64("movie_id", movie.ID).Msg("ignoring malformed reviews")
	}
	return reviews
}

// summary returns the formatted review summary, or the fallback text when the
// backend fails or returns nothing.
func (s *Server) summary(ctx context.Context, movieID int64) ([]domain.SummaryPart, bool) {
	text, err := s.backend.Summarize(ctx, movieID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("movie_id", movieID).Msg("summarize reviews")
	}
	parts := domain.FormatSummary(text)
	if err != nil || len(parts) == 0 {
		return domain.FormatSummary(domain.FallbackSummary), true
	}
	return parts, false
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
