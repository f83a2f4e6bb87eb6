package domain

import (
	"slices"
	"strconv"
	"strings"
)

// FilterOptions lists the distinct values the catalog can be filtered by.
type FilterOptions struct {
	Years     []int    `json:"years"`
	Countries []string `json:"countries"`
	Genres    []string `json:"genres"`
}

// Normalize replaces nil lists with empty ones.
func (o FilterOptions) Normalize() FilterOptions {
	if o.Years == nil {
		o.Years = []int{}
	}
	if o.Countries == nil {
		o.Countries = []string{}
	}
	if o.Genres == nil {
		o.Genres = []string{}
	}
	return o
}

// FilterTuple is the free-text query plus the selected year, country and genre sets.
type FilterTuple struct {
	Query     string   `json:"search"`
	Years     []int    `json:"years"`
	Countries []string `json:"countries"`
	Genres    []string `json:"genres"`
}

// Canonical returns the tuple with a trimmed query and sorted, de-duplicated sets,
// so that two selections of the same values compare equal.
func (f FilterTuple) Canonical() FilterTuple {
	out := FilterTuple{Query: strings.TrimSpace(f.Query)}
	years := append([]int(nil), f.Years...)
	slices.Sort(years)
	out.Years = slices.Compact(years)
	out.Countries = compactStrings(f.Countries)
	out.Genres = compactStrings(f.Genres)
	return out
}

// Equal compares canonical forms.
func (f FilterTuple) Equal(other FilterTuple) bool {
	a, b := f.Canonical(), other.Canonical()
	return a.Query == b.Query &&
		slices.Equal(a.Years, b.Years) &&
		slices.Equal(a.Countries, b.Countries) &&
		slices.Equal(a.Genres, b.Genres)
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// MovieQuery is the full key of one movies request.
type MovieQuery struct {
	Filters FilterTuple
	Page    int
	PerPage int
}

// Values renders the query parameters the backend expects. Empty sets are omitted.
func (q MovieQuery) Values() map[string]string {
	f := q.Filters.Canonical()
	out := map[string]string{
		"page":     strconv.Itoa(max(q.Page, 1)),
		"per_page": strconv.Itoa(q.PerPage),
	}
	if f.Query != "" {
		out["search"] = f.Query
	}
	if len(f.Years) > 0 {
		years := make([]string, len(f.Years))
		for i, y := range f.Years {
			years[i] = strconv.Itoa(y)
		}
		out["years"] = strings.Join(years, ",")
	}
	if len(f.Countries) > 0 {
		out["countries"] = strings.Join(f.Countries, ",")
	}
	if len(f.Genres) > 0 {
		out["genres"] = strings.Join(f.Genres, ",")
	}
	return out
}

// ParseYears parses year values, skipping anything that is not an integer.
func ParseYears(values []string) []int {
	out := make([]int, 0, len(values))
	for _, raw := range SplitList(values) {
		if y, err := strconv.Atoi(raw); err == nil {
			out = append(out, y)
		}
	}
	return out
}

// SplitList flattens repeated and comma-separated values.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
