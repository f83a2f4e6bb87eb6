package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Clark-Hu/reelview/internal/backend"
	"github.com/Clark-Hu/reelview/internal/ui"
)

const (
	modeLogin    = "login"
	modeRegister = "register"

	msgFieldsRequired     = "Username and password are required."
	msgInvalidCredentials = "Invalid username or password."
	msgLoginFailed        = "Login failed. Please try again later."
	msgUserExists         = "User already exists."
	msgRegisterFailed     = "Registration failed."
	msgRegistered         = "Registration successful! You can log in now."
)

type credentialsForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type loginPage struct {
	basePage
	Mode     string
	Username string
	Error    string
	Success  string
}

func (p loginPage) Registering() bool { return p.Mode == modeRegister }

func newLoginPage(r *http.Request, mode string) loginPage {
	if mode != modeRegister {
		mode = modeLogin
	}
	return loginPage{basePage: basePage{Shell: shellFrom(r, ui.ScreenLogin), Title: "Login"}, Mode: mode}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if cur := currentSession(r); cur.Valid() {
		http.Redirect(w, r, shellFrom(r, ui.ScreenRecommend).Link(ui.ScreenRecommend), http.StatusSeeOther)
		return
	}
	// Switching mode always starts from an empty form.
	s.render(w, http.StatusOK, "login.html", newLoginPage(r, r.URL.Query().Get("mode")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	page := newLoginPage(r, modeLogin)
	form, ok := s.parseCredentials(r)
	page.Username = form.Username
	if !ok {
		page.Error = msgFieldsRequired
		s.render(w, http.StatusUnprocessableEntity, "login.html", page)
		return
	}

	sess, err := s.backend.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		status := http.StatusBadGateway
		page.Error = msgLoginFailed
		if errors.Is(err, backend.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
			page.Error = msgInvalidCredentials
		} else {
			s.logger.Warn().Err(err).Msg("login")
		}
		s.render(w, status, "login.html", page)
		return
	}

	if _, err := s.sessions.Login(w, r, sess); err != nil {
		s.logger.Error().Err(err).Msg("persist session")
		page.Error = msgLoginFailed
		s.render(w, http.StatusInternalServerError, "login.html", page)
		return
	}
	http.Redirect(w, r, "/recommend?user_id="+sess.UserID.String(), http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	page := newLoginPage(r, modeRegister)
	form, ok := s.parseCredentials(r)
	page.Username = form.Username
	if !ok {
		page.Error = msgFieldsRequired
		s.render(w, http.StatusUnprocessableEntity, "login.html", page)
		return
	}

	if err := s.backend.Register(r.Context(), form.Username, form.Password); err != nil {
		status := http.StatusBadGateway
		page.Error = msgRegisterFailed
		var statusErr *backend.StatusError
		switch {
		case errors.Is(err, backend.ErrUserExists):
			status = http.StatusConflict
			page.Error = msgUserExists
		case errors.As(err, &statusErr) && statusErr.Status < 500:
			status = http.StatusUnprocessableEntity
		default:
			s.logger.Warn().Err(err).Msg("register")
		}
		s.render(w, status, "login.html", page)
		return
	}

	done := newLoginPage(r, modeLogin)
	done.Success = msgRegistered
	s.render(w, http.StatusOK, "login.html", done)
}

func (s *Server) parseCredentials(r *http.Request) (credentialsForm, bool) {
	if err := r.ParseForm(); err != nil {
		return credentialsForm{}, false
	}
	form := credentialsForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	return form, s.validate.Struct(form) == nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cur := currentSession(r)
	if err := s.sessions.Logout(w, r); err != nil {
		s.logger.Warn().Err(err).Msg("logout")
	}
	if cur.ID != "" {
		s.searches.Remove(cur.ID)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	shell := shellFrom(r, ui.ScreenLogin)
	_ = r.ParseForm()
	s.sessions.SetTheme(w, r, shell.Session.UserID, string(shell.Theme.Toggle()))
	http.Redirect(w, r, safeReturn(r.PostForm.Get("return")), http.StatusSeeOther)
}

// safeReturn keeps redirects on this site.
func safeReturn(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return "/"
	}
	return path
}
