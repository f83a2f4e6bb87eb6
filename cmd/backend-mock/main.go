// Command backend-mock serves canned recommendation-backend responses from a
// JSON fixture, for local development and the client smoke test.
package main

import (
	"flag"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/reelview/internal/logging"
)

type movieEntry struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Year        int      `json:"year"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Country     []string `json:"country"`
	Actors      []string `json:"actors"`
	Reviews     string   `json:"reviews"`
}

type userEntry struct {
	ID       int64  `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type fixture struct {
	Users     []userEntry       `json:"users"`
	Movies    []movieEntry      `json:"movies"`
	Recommend []int64           `json:"recommend"`
	History   []int64           `json:"history"`
	Analytics json.RawMessage   `json:"analytics"`
	Summaries map[string]string `json:"summaries"`
}

type mock struct {
	mu     sync.Mutex
	data   fixture
	logger zerolog.Logger
}

func main() {
	var (
		port    = flag.String("port", "5001", "port to listen on")
		data    = flag.String("data", "cmd/backend-mock/mock-backend.json", "path to mock data file")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Format: "console"})

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.Fatal().Err(err).Msg("read mock data")
	}
	m := &mock{logger: logger}
	if err := json.Unmarshal(file, &m.data); err != nil {
		logger.Fatal().Err(err).Msg("parse mock data")
	}

	r := chi.NewRouter()
	if *verbose {
		r.Use(middleware.Logger)
	}
	r.Post("/login", m.handleLogin)
	r.Post("/register", m.handleRegister)
	r.Post("/change_password", m.handleChangePassword)
	r.Get("/recommend", m.withUser(func(w http.ResponseWriter, r *http.Request, _ userEntry) {
		writeJSON(w, http.StatusOK, m.lookup(m.data.Recommend))
	}))
	r.Get("/history", m.withUser(func(w http.ResponseWriter, r *http.Request, _ userEntry) {
		writeJSON(w, http.StatusOK, paginate(m.lookup(m.data.History), r))
	}))
	r.Get("/profile", m.withUser(func(w http.ResponseWriter, r *http.Request, u userEntry) {
		writeJSON(w, http.StatusOK, map[string]any{"username": u.Username, "user_id": u.ID})
	}))
	r.Get("/analytics", m.withUser(func(w http.ResponseWriter, r *http.Request, _ userEntry) {
		writeJSON(w, http.StatusOK, m.data.Analytics)
	}))
	r.Get("/movies", m.handleMovies)
	r.Get("/movies/filters", m.handleFilters)
	r.Get("/summarize", m.handleSummarize)

	addr := ":" + *port
	logger.Info().Str("addr", addr).Int("movies", len(m.data.Movies)).Int("users", len(m.data.Users)).Msg("mock backend listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func (m *mock) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req userEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.data.Users {
		if u.Username == req.Username && u.Password == req.Password {
			writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "token": "mock-" + strconv.FormatInt(u.ID, 10)})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
}

func (m *mock) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req userEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var next int64 = 1
	for _, u := range m.data.Users {
		if u.Username == req.Username {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "User already exists"})
			return
		}
		next = max(next, u.ID+1)
	}
	m.data.Users = append(m.data.Users, userEntry{ID: next, Username: req.Username, Password: req.Password})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered"})
}

func (m *mock) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID          int64  `json:"user_id"`
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.data.Users {
		if u.ID != req.UserID {
			continue
		}
		if u.Password != req.CurrentPassword {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Current password is incorrect"})
			return
		}
		m.data.Users[i].Password = req.NewPassword
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
}

func (m *mock) withUser(next func(http.ResponseWriter, *http.Request, userEntry)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
			return
		}
		m.mu.Lock()
		idx := slices.IndexFunc(m.data.Users, func(u userEntry) bool { return u.ID == id })
		var user userEntry
		if idx >= 0 {
			user = m.data.Users[idx]
		}
		m.mu.Unlock()
		if idx < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}
		next(w, r, user)
	}
}

func (m *mock) handleMovies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := strings.ToLower(strings.TrimSpace(q.Get("search")))
	years := splitParam(q.Get("years"))
	countries := splitParam(q.Get("countries"))
	genres := splitParam(q.Get("genres"))

	var out []movieEntry
	for _, mv := range m.data.Movies {
		if term != "" && !strings.Contains(strings.ToLower(mv.Name), term) {
			continue
		}
		if len(years) > 0 && !slices.Contains(years, strconv.Itoa(mv.Year)) {
			continue
		}
		if len(countries) > 0 && !overlaps(countries, mv.Country) {
			continue
		}
		if len(genres) > 0 && !overlaps(genres, mv.Genres) {
			continue
		}
		out = append(out, mv)
	}
	writeJSON(w, http.StatusOK, paginate(out, r))
}

func (m *mock) handleFilters(w http.ResponseWriter, _ *http.Request) {
	var (
		years             []int
		countries, genres []string
	)
	for _, mv := range m.data.Movies {
		if mv.Year > 0 {
			years = append(years, mv.Year)
		}
		countries = append(countries, mv.Country...)
		genres = append(genres, mv.Genres...)
	}
	slices.Sort(years)
	slices.Sort(countries)
	slices.Sort(genres)
	writeJSON(w, http.StatusOK, map[string]any{
		"years":     slices.Compact(years),
		"countries": slices.Compact(countries),
		"genres":    slices.Compact(genres),
	})
}

func (m *mock) handleSummarize(w http.ResponseWriter, r *http.Request) {
	summary, ok := m.data.Summaries[r.URL.Query().Get("movie_id")]
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Summarizer unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (m *mock) lookup(ids []int64) []movieEntry {
	out := make([]movieEntry, 0, len(ids))
	for _, id := range ids {
		if idx := slices.IndexFunc(m.data.Movies, func(mv movieEntry) bool { return mv.ID == id }); idx >= 0 {
			out = append(out, m.data.Movies[idx])
		}
	}
	return out
}

func paginate(movies []movieEntry, r *http.Request) map[string]any {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	page = max(page, 1)
	if perPage <= 0 {
		perPage = 21
	}
	total := max((len(movies)+perPage-1)/perPage, 1)
	start := min((page-1)*perPage, len(movies))
	end := min(start+perPage, len(movies))
	return map[string]any{"movies": movies[start:end], "total_pages": total}
}

func splitParam(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func overlaps(want, have []string) bool {
	for _, v := range have {
		if slices.Contains(want, v) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
