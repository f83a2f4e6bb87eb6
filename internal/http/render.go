package httpserver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/ui"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"login.html",
	"list.html",
	"profile.html",
	"search.html",
}

type pageTemplate struct {
	tpl *template.Template
}

// gridView and pagerView carry the request path into the shared partials.
type gridView struct {
	Path   string
	Movies []domain.MovieDetail
}

type pagerView struct {
	Path    string
	Current int
	Total   int
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseTemplates() (map[string]*pageTemplate, error) {
	funcs := template.FuncMap{
		"withParams": func(path string, kv ...string) string {
			params := make(map[string]string, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				params[kv[i]] = kv[i+1]
			}
			return ui.WithParams(path, params)
		},
		"itoa":  strconv.Itoa,
		"i64":   func(v int64) string { return strconv.FormatInt(v, 10) },
		"add":   func(a, b int) int { return a + b },
		"pages": pageRange,
		"hasInt": func(values []int, v int) bool {
			for _, x := range values {
				if x == v {
					return true
				}
			}
			return false
		},
		"hasString": func(values []string, v string) bool {
			for _, x := range values {
				if x == v {
					return true
				}
			}
			return false
		},
		"pct": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
		"grid": func(path string, movies []domain.MovieDetail) gridView {
			return gridView{Path: path, Movies: movies}
		},
		"pager": func(path string, current, total int) pagerView {
			return pagerView{Path: path, Current: current, Total: total}
		},
	}
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	out := make(map[string]*pageTemplate, len(pageNames))
	for _, page := range pageNames {
		tpl, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := tpl.ParseFS(templateFS, "templates/"+page); err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		out[page] = &pageTemplate{tpl: tpl}
	}
	return out, nil
}

// pageRange lists the page numbers shown around current, at most 7.
func pageRange(current, total int) []int {
	if total < 1 {
		total = 1
	}
	first := max(1, current-3)
	last := min(total, first+6)
	first = max(1, last-6)
	out := make([]int, 0, last-first+1)
	for p := first; p <= last; p++ {
		out = append(out, p)
	}
	return out
}

// render executes a page into a buffer first so a template failure never
// leaves a half-written page behind.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	page, ok := s.templates[name]
	if !ok {
		s.logger.Error().Str("template", name).Msg("template not found")
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := page.tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
