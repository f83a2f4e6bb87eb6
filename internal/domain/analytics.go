package domain

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Slice is one named share of a distribution chart.
type Slice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// WeekdayViews is total watch duration, in seconds, on one weekday.
type WeekdayViews struct {
	Weekday  string  `json:"weekday"`
	Duration float64 `json:"duration"`
}

// Hours converts the duration to hours rounded to one decimal.
func (w WeekdayViews) Hours() float64 {
	return math.Round(w.Duration/3600*10) / 10
}

// Label formats the duration as "Hh Mm".
func (w WeekdayViews) Label() string {
	return FormatDuration(w.Duration)
}

// FormatDuration renders seconds as whole hours and minutes.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
}

// Analytics is the read-only aggregate the profile screen charts.
type Analytics struct {
	Genres       []Slice        `json:"genres"`
	Countries    []Slice        `json:"countries"`
	WeekdayViews []WeekdayViews `json:"weekday_views"`
	TopActors    []Slice        `json:"top_actors"`
}

// Empty reports whether no series carries data.
func (a Analytics) Empty() bool {
	return len(a.Genres) == 0 && len(a.Countries) == 0 && len(a.WeekdayViews) == 0 && len(a.TopActors) == 0
}

// Profile is the account summary. Fields the screen does not know are kept in Extra.
type Profile struct {
	Username string         `json:"username"`
	Extra    map[string]any `json:"-"`
}

// DisplayUsername returns the username or a placeholder.
func (p Profile) DisplayUsername() string {
	if p.Username == "" {
		return unknownName
	}
	return p.Username
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if name, ok := fields["username"].(string); ok {
		p.Username = name
	}
	delete(fields, "username")
	p.Extra = fields
	return nil
}
