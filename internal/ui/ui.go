// Package ui holds the presentation state shared by every screen: the shell
// (theme and session, passed explicitly to each page), the detail-panel tab
// variant and the chart series built from analytics.
package ui

import (
	"net/url"
	"strings"

	"github.com/Clark-Hu/reelview/internal/domain"
)

// Theme is the light/dark display mode.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark"; anything else is the light default.
func ParseTheme(raw string) Theme {
	if Theme(strings.ToLower(strings.TrimSpace(raw))) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the other mode.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// IsDark is a template helper.
func (t Theme) IsDark() bool { return t == ThemeDark }

// Screen names a top-level routed view.
type Screen string

const (
	ScreenLogin     Screen = "login"
	ScreenRecommend Screen = "recommend"
	ScreenHistory   Screen = "history"
	ScreenProfile   Screen = "profile"
	ScreenSearch    Screen = "search"
)

// Shell is the per-request presentation context handed to every screen.
type Shell struct {
	Theme   Theme
	Session domain.Session
	Screen  Screen
	// Path is the request path and query, used to return after theme toggles.
	Path string
}

// LoggedIn reports whether a user is attached.
func (s Shell) LoggedIn() bool { return s.Session.Valid() }

// Link builds a screen URL carrying the user id, the way every screen is addressed.
func (s Shell) Link(screen Screen) string {
	if !s.Session.Valid() {
		return "/login"
	}
	return "/" + string(screen) + "?user_id=" + s.Session.UserID.String()
}

// Tab is the detail-panel section.
type Tab int

const (
	TabDetails Tab = iota
	TabReviews
	TabSummary
)

// ParseTab maps the tab query value; unknown values open the details tab.
func ParseTab(raw string) Tab {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "reviews":
		return TabReviews
	case "summary":
		return TabSummary
	default:
		return TabDetails
	}
}

func (t Tab) String() string {
	switch t {
	case TabReviews:
		return "reviews"
	case TabSummary:
		return "summary"
	default:
		return "details"
	}
}

// Tabs lists the detail tabs in display order.
func Tabs() []Tab { return []Tab{TabDetails, TabReviews, TabSummary} }

// Label is the tab caption.
func (t Tab) Label() string {
	switch t {
	case TabReviews:
		return "Reviews"
	case TabSummary:
		return "Summary"
	default:
		return "Details"
	}
}

// WithParams returns path with the given query values replaced; empty values are removed.
func WithParams(path string, params map[string]string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	for k, v := range params {
		if v == "" {
			q.Del(k)
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
