package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseReviews(t *testing.T) {
	tests := []struct {
		name      string
		raw       RawReviews
		wantLen   int
		wantError bool
	}{
		{"empty", "", 0, false},
		{"valid", `[{"author":"ann","text":"great"},{"author":"","text":"meh"}]`, 2, false},
		{"null literal", "null", 0, false},
		{"not json", "this is not json", 0, true},
		{"object instead of list", `{"author":"ann"}`, 0, true},
		{"truncated", `[{"author":"ann"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReviews(tt.raw)
			if got == nil {
				t.Fatalf("ParseReviews returned nil slice")
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantError != (err != nil) {
				t.Fatalf("err = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !errors.Is(err, ErrMalformedReviews) {
				t.Fatalf("error should wrap ErrMalformedReviews: %v", err)
			}
		})
	}
}

func FuzzParseReviews(f *testing.F) {
	f.Add(`[{"author":"a","text":"b"}]`)
	f.Add("not json")
	f.Add("")
	f.Fuzz(func(t *testing.T, raw string) {
		got, _ := ParseReviews(RawReviews(raw))
		if got == nil {
			t.Fatalf("ParseReviews returned nil for %q", raw)
		}
	})
}

func TestMovieDetailDecoding(t *testing.T) {
	payload := `{
		"id": 7,
		"name": "Heat",
		"year": 1995.0,
		"link": "",
		"genres": ["Crime"],
		"country": ["USA"],
		"actors": ["Al Pacino", "Robert De Niro"],
		"reviews": "[{\"author\":\"critic\",\"text\":\"tense\"}]"
	}`
	var movie MovieDetail
	if err := json.Unmarshal([]byte(payload), &movie); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if movie.ID != 7 || movie.Year != 1995 {
		t.Fatalf("unexpected movie: %+v", movie.MovieSummary)
	}
	if movie.PosterURL() != PlaceholderPoster {
		t.Fatalf("PosterURL = %q, want placeholder", movie.PosterURL())
	}
	if movie.ActorList() != "Al Pacino, Robert De Niro" {
		t.Fatalf("ActorList = %q", movie.ActorList())
	}
	if movie.DisplayDescription() != "N/A" {
		t.Fatalf("DisplayDescription = %q", movie.DisplayDescription())
	}
	reviews, err := ParseReviews(movie.Reviews)
	if err != nil || len(reviews) != 1 || reviews[0].Author != "critic" {
		t.Fatalf("reviews = %+v, err = %v", reviews, err)
	}
}

func TestMovieDetailReviewsAsArrayAndNull(t *testing.T) {
	var withArray MovieDetail
	if err := json.Unmarshal([]byte(`{"id":1,"reviews":[{"author":"x","text":"y"}]}`), &withArray); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, _ := ParseReviews(withArray.Reviews); len(got) != 1 {
		t.Fatalf("array reviews not preserved: %q", withArray.Reviews)
	}

	var withNull MovieDetail
	if err := json.Unmarshal([]byte(`{"id":1,"year":null,"reviews":null}`), &withNull); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if withNull.Reviews != "" || withNull.Year.String() != "N/A" {
		t.Fatalf("null fields not tolerated: %+v", withNull)
	}
}

func TestDecodeMoviePage(t *testing.T) {
	page, err := DecodeMoviePage([]byte(`[{"id":1},{"id":2}]`))
	if err != nil {
		t.Fatalf("decode array: %v", err)
	}
	if len(page.Movies) != 2 || page.TotalPages != 1 {
		t.Fatalf("array page = %+v", page)
	}

	page, err = DecodeMoviePage([]byte(`{"movies":[{"id":3}],"total_pages":4}`))
	if err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if len(page.Movies) != 1 || page.TotalPages != 4 {
		t.Fatalf("object page = %+v", page)
	}

	page, err = DecodeMoviePage([]byte(`{"movies":null,"total_pages":0}`))
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if page.Movies == nil || page.TotalPages != 1 {
		t.Fatalf("empty page not normalized: %+v", page)
	}
}

func TestFilterTupleCanonical(t *testing.T) {
	a := FilterTuple{Query: " heat ", Years: []int{1999, 1995, 1999}, Genres: []string{"Drama", "Crime", "Drama"}}
	b := FilterTuple{Query: "heat", Years: []int{1995, 1999}, Genres: []string{"Crime", "Drama"}}
	if !a.Equal(b) {
		t.Fatalf("expected tuples to be equal: %+v vs %+v", a.Canonical(), b.Canonical())
	}
	if a.Equal(FilterTuple{Query: "heat"}) {
		t.Fatalf("tuples with different sets compared equal")
	}
}

func TestMovieQueryValues(t *testing.T) {
	q := MovieQuery{
		Filters: FilterTuple{Query: "shrek", Years: []int{2010, 2004}, Genres: []string{"Comedy"}},
		Page:    0,
		PerPage: 21,
	}
	got := q.Values()
	want := map[string]string{"search": "shrek", "years": "2004,2010", "genres": "Comedy", "page": "1", "per_page": "21"}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("Values()[%s] = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseYearsAndSplitList(t *testing.T) {
	years := ParseYears([]string{"2001,2002", "abc", " 2003 "})
	if len(years) != 3 || years[2] != 2003 {
		t.Fatalf("ParseYears = %v", years)
	}
	if got := SplitList([]string{"", "a, b", "c"}); len(got) != 3 {
		t.Fatalf("SplitList = %v", got)
	}
}

func TestWeekdayViewsConversion(t *testing.T) {
	w := WeekdayViews{Weekday: "Monday", Duration: 5400}
	if w.Hours() != 1.5 {
		t.Fatalf("Hours = %v, want 1.5", w.Hours())
	}
	if w.Label() != "1h 30m" {
		t.Fatalf("Label = %q, want 1h 30m", w.Label())
	}
	if FormatDuration(-10) != "0h 0m" {
		t.Fatalf("negative duration not clamped")
	}
}

func TestProfileKeepsExtraFields(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"username":"alice","created_at":"2024-01-01"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.DisplayUsername() != "alice" || p.Extra["created_at"] != "2024-01-01" {
		t.Fatalf("profile = %+v", p)
	}
	if (Profile{}).DisplayUsername() != "Unknown" {
		t.Fatalf("empty profile should render Unknown")
	}
}

func TestParseUserID(t *testing.T) {
	if id, ok := ParseUserID("42"); !ok || id != 42 {
		t.Fatalf("ParseUserID(42) = %v, %v", id, ok)
	}
	for _, raw := range []string{"", "abc", "-1", "0"} {
		if _, ok := ParseUserID(raw); ok {
			t.Fatalf("ParseUserID(%q) should fail", raw)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	text := "### Summary of reviews:\n\nViewers liked **the visuals**.\nSome found it slow.\n\n- Humour: mixed\n\n### Overall opinion:\nA solid finale."
	parts := FormatSummary(text)
	if len(parts) != 5 {
		t.Fatalf("len(parts) = %d, want 5: %+v", len(parts), parts)
	}
	if !parts[0].IsHeader() || parts[0].Lines[0] != "Summary of reviews:" {
		t.Fatalf("first part = %+v", parts[0])
	}
	if parts[1].IsHeader() || len(parts[1].Lines) != 2 || parts[1].Lines[0] != "Viewers liked the visuals." {
		t.Fatalf("second part = %+v", parts[1])
	}
	if !parts[3].IsHeader() || parts[4].Lines[0] != "A solid finale." {
		t.Fatalf("trailing parts = %+v %+v", parts[3], parts[4])
	}
	if FormatSummary("  ") != nil {
		t.Fatalf("blank summary should format to nil")
	}
}

func TestFallbackSummaryFormats(t *testing.T) {
	parts := FormatSummary(FallbackSummary)
	if len(parts) == 0 {
		t.Fatalf("fallback summary produced no parts")
	}
	for _, p := range parts {
		for _, line := range p.Lines {
			if strings.Contains(line, "#") {
				t.Fatalf("heading marker leaked into %q", line)
			}
		}
	}
}
