package ui

import (
	"strconv"
	"strings"

	"github.com/Clark-Hu/reelview/internal/domain"
)

// Palette colours chart series in order, wrapping around.
var Palette = []string{"#3b82f6", "#10b981", "#8b5cf6", "#6b7280", "#22d3ee", "#a3e635", "#f87171", "#34d399", "#a78bfa", "#9ca3af"}

// Color returns the palette entry for series index i.
func Color(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// ChartKind selects an analytics chart.
type ChartKind int

const (
	ChartGenres ChartKind = iota
	ChartCountries
	ChartWeekdays
	ChartActors
)

// ParseChart maps the chart query value; unknown values show genres.
func ParseChart(raw string) ChartKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "countries":
		return ChartCountries
	case "weekday_views", "weekdays":
		return ChartWeekdays
	case "top_actors", "actors":
		return ChartActors
	default:
		return ChartGenres
	}
}

func (k ChartKind) String() string {
	switch k {
	case ChartCountries:
		return "countries"
	case ChartWeekdays:
		return "weekday_views"
	case ChartActors:
		return "top_actors"
	default:
		return "genres"
	}
}

// Label is the chart tab caption.
func (k ChartKind) Label() string {
	switch k {
	case ChartCountries:
		return "Countries"
	case ChartWeekdays:
		return "Weekdays"
	case ChartActors:
		return "Top actors"
	default:
		return "Genres"
	}
}

// Charts lists the analytics tabs in display order.
func Charts() []ChartKind {
	return []ChartKind{ChartGenres, ChartCountries, ChartWeekdays, ChartActors}
}

// Bar is one rendered chart entry. Percent is relative to the largest value.
type Bar struct {
	Label   string
	Value   float64
	Display string
	Percent float64
	Color   string
}

// Series builds the bars for one chart.
func Series(a domain.Analytics, kind ChartKind) []Bar {
	var bars []Bar
	switch kind {
	case ChartWeekdays:
		for _, w := range OrderWeekdays(a.WeekdayViews) {
			bars = append(bars, Bar{Label: WeekdayName(w.Weekday), Value: w.Hours(), Display: w.Label()})
		}
	default:
		for _, s := range slicesFor(a, kind) {
			bars = append(bars, Bar{Label: s.Name, Value: s.Value, Display: formatValue(s.Value)})
		}
	}

	var peak float64
	for _, b := range bars {
		peak = max(peak, b.Value)
	}
	for i := range bars {
		bars[i].Color = Color(i)
		if peak > 0 {
			bars[i].Percent = bars[i].Value / peak * 100
		}
	}
	return bars
}

func slicesFor(a domain.Analytics, kind ChartKind) []domain.Slice {
	switch kind {
	case ChartCountries:
		return a.Countries
	case ChartActors:
		return a.TopActors
	default:
		return a.Genres
	}
}

var weekdayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var weekdayNames = map[string]string{
	"monday":    "Monday",
	"mon":       "Monday",
	"tuesday":   "Tuesday",
	"tue":       "Tuesday",
	"wednesday": "Wednesday",
	"wed":       "Wednesday",
	"thursday":  "Thursday",
	"thu":       "Thursday",
	"friday":    "Friday",
	"fri":       "Friday",
	"saturday":  "Saturday",
	"sat":       "Saturday",
	"sunday":    "Sunday",
	"sun":       "Sunday",
}

// WeekdayName maps the backend's weekday key to its display name; unknown keys pass through.
func WeekdayName(raw string) string {
	if name, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return name
	}
	return raw
}

// OrderWeekdays sorts weekday entries Monday first; unknown keys keep their order at the end.
func OrderWeekdays(views []domain.WeekdayViews) []domain.WeekdayViews {
	out := make([]domain.WeekdayViews, 0, len(views))
	used := make([]bool, len(views))
	for _, day := range weekdayOrder {
		for i, v := range views {
			if !used[i] && WeekdayName(v.Weekday) == day {
				out = append(out, v)
				used[i] = true
			}
		}
	}
	for i, v := range views {
		if !used[i] {
			out = append(out, v)
		}
	}
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
