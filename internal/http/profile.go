package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/reelview/internal/backend"
	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/ui"
)

// passwordDismissDelay is how long the success message stays before the dialog closes.
const passwordDismissDelay = 1500 * time.Millisecond

const (
	msgProfileFailed     = "Could not load the profile."
	msgAnalyticsFailed   = "Could not load viewing analytics."
	msgPasswordRequired  = "Fill in all password fields."
	msgPasswordMismatch  = "Passwords do not match."
	msgPasswordFailed    = "Password change failed."
	msgPasswordDefaultOK = "Password changed."
)

type passwordForm struct {
	Current string `validate:"required"`
	New     string `validate:"required"`
	Confirm string `validate:"required,eqfield=New"`
}

type chartTab struct {
	Kind   ui.ChartKind
	Active bool
}

type profilePage struct {
	basePage
	Missing        bool
	Error          string
	BaseURL        string
	Profile        domain.Profile
	ProfileError   string
	AnalyticsError string
	Charts         []chartTab
	Chart          ui.ChartKind
	Bars           []ui.Bar
	DialogOpen     bool
	PasswordError  string
	PasswordOK     string
	DismissURL     string
	DismissSecs    string
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	page, status := s.loadProfile(r)
	page.DialogOpen = r.URL.Query().Get("dialog") == "password"
	s.render(w, status, "profile.html", page)
}

// loadProfile fetches profile and analytics concurrently. Each failure is
// reported in its own slot; one does not hide the other.
func (s *Server) loadProfile(r *http.Request) (profilePage, int) {
	page := profilePage{
		basePage: basePage{Shell: shellFrom(r, ui.ScreenProfile), Title: "Profile"},
		Chart:    ui.ParseChart(r.URL.Query().Get("chart")),
	}
	for _, kind := range ui.Charts() {
		page.Charts = append(page.Charts, chartTab{Kind: kind, Active: kind == page.Chart})
	}

	_, missing, foreign := screenUser(r)
	switch {
	case missing:
		page.Missing = true
		page.Error = msgMissingUser
		return page, http.StatusBadRequest
	case foreign:
		page.Error = msgForeignUser
		return page, http.StatusForbidden
	}
	userID := currentSession(r).UserID
	page.BaseURL = ui.WithParams("/profile", map[string]string{
		"user_id": userID.String(),
		"chart":   page.Chart.String(),
	})

	var (
		profile   domain.Profile
		analytics domain.Analytics
		g         errgroup.Group
	)
	ctx := backendContext(r)
	g.Go(func() error {
		var err error
		if profile, err = s.backend.Profile(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Msg("load profile")
			page.ProfileError = msgProfileFailed
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if analytics, err = s.backend.Analytics(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Msg("load analytics")
			page.AnalyticsError = msgAnalyticsFailed
		}
		return nil
	})
	_ = g.Wait()

	page.Profile = profile
	page.Bars = ui.Series(analytics, page.Chart)
	return page, http.StatusOK
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	page, status := s.loadProfile(r)
	page.DialogOpen = true
	// Links on the rendered page point back at the profile screen, not the form target.
	page.Shell.Path = ui.WithParams(page.BaseURL, map[string]string{"dialog": "password"})
	if status != http.StatusOK {
		s.render(w, status, "profile.html", page)
		return
	}

	form := passwordForm{
		Current: r.PostForm.Get("current_password"),
		New:     r.PostForm.Get("new_password"),
		Confirm: r.PostForm.Get("confirm_password"),
	}
	if err := s.validate.Struct(form); err != nil {
		page.PasswordError = passwordValidationMessage(err)
		s.render(w, http.StatusUnprocessableEntity, "profile.html", page)
		return
	}

	msg, err := s.backend.ChangePassword(backendContext(r), currentSession(r).UserID, form.Current, form.New)
	if err != nil {
		page.PasswordError = msgPasswordFailed
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && statusErr.Message != "" && statusErr.Status < 500 {
			page.PasswordError = statusErr.Message
		} else {
			s.logger.Warn().Err(err).Msg("change password")
		}
		s.render(w, http.StatusUnprocessableEntity, "profile.html", page)
		return
	}

	if msg == "" {
		msg = msgPasswordDefaultOK
	}
	page.PasswordOK = msg
	page.DismissURL = page.BaseURL
	page.DismissSecs = formatSeconds(passwordDismissDelay)
	s.render(w, http.StatusOK, "profile.html", page)
}

func passwordValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "eqfield" {
				return msgPasswordMismatch
			}
		}
	}
	return msgPasswordRequired
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
