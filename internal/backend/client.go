package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/metrics"
)

const maxResponseBody = 8 << 20 // 8 MiB

// Client defines the contract for the recommendation/auth/analytics backend.
type Client interface {
	Login(ctx context.Context, username, password string) (domain.Session, error)
	Register(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, userID domain.UserID, current, next string) (string, error)
	Recommendations(ctx context.Context, userID domain.UserID) ([]domain.MovieDetail, error)
	History(ctx context.Context, userID domain.UserID, page, perPage int) (domain.MoviePage, error)
	Profile(ctx context.Context, userID domain.UserID) (domain.Profile, error)
	Analytics(ctx context.Context, userID domain.UserID) (domain.Analytics, error)
	Movies(ctx context.Context, query domain.MovieQuery) (domain.MoviePage, error)
	FilterOptions(ctx context.Context) (domain.FilterOptions, error)
	Summarize(ctx context.Context, movieID int64) (string, error)
}

// Options tunes the HTTP client.
type Options struct {
	Timeout time.Duration
	// RateLimit caps outgoing requests per second; zero disables the limiter.
	RateLimit int
	Logger    zerolog.Logger
}

// HTTPClient implements Client over HTTP+JSON.
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
	breaker *breaker
	limiter *rate.Limiter
	flights singleflight.Group
	logger  zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a backend client rooted at baseURL.
func NewHTTPClient(baseURL string, opts Options) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &HTTPClient{
		baseURL: parsed,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost:   16,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: opts.Logger.With().Str("component", "backend").Logger(),
	}
	c.breaker = newBreaker("backend", c.logger)
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	return c, nil
}

// Login exchanges credentials for a session.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (domain.Session, error) {
	body, err := c.send(ctx, "login", http.MethodPost, "/login", nil, credentials{Username: username, Password: password})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && (statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden) {
			return domain.Session{}, ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	var payload loginResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Session{}, fmt.Errorf("decode login response: %w", err)
	}
	if payload.UserID <= 0 {
		return domain.Session{}, fmt.Errorf("login response carries no user_id")
	}
	return domain.Session{UserID: domain.UserID(payload.UserID), Token: payload.Token}, nil
}

// Register creates an account. A duplicate username yields ErrUserExists.
func (c *HTTPClient) Register(ctx context.Context, username, password string) error {
	_, err := c.send(ctx, "register", http.MethodPost, "/register", nil, credentials{Username: username, Password: password})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusConflict {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// ChangePassword asks the backend to replace the password and returns its confirmation message.
func (c *HTTPClient) ChangePassword(ctx context.Context, userID domain.UserID, current, next string) (string, error) {
	if userID <= 0 {
		return "", ErrMissingUserID
	}
	req := changePasswordRequest{UserID: int64(userID), CurrentPassword: current, NewPassword: next}
	body, err := c.send(ctx, "change_password", http.MethodPost, "/change_password", nil, req)
	if err != nil {
		return "", err
	}
	var payload messageResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode change_password response: %w", err)
	}
	return payload.Message, nil
}

// Recommendations returns the movies recommended for a user.
func (c *HTTPClient) Recommendations(ctx context.Context, userID domain.UserID) ([]domain.MovieDetail, error) {
	if userID <= 0 {
		return nil, ErrMissingUserID
	}
	body, err := c.get(ctx, "recommend", "/recommend", url.Values{"user_id": {userID.String()}})
	if err != nil {
		return nil, err
	}
	page, err := domain.DecodeMoviePage(body)
	if err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return page.Movies, nil
}

// History returns one page of a user's watch history.
func (c *HTTPClient) History(ctx context.Context, userID domain.UserID, page, perPage int) (domain.MoviePage, error) {
	if userID <= 0 {
		return domain.MoviePage{}, ErrMissingUserID
	}
	q := url.Values{"user_id": {userID.String()}, "page": {strconv.Itoa(max(page, 1))}}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	body, err := c.get(ctx, "history", "/history", q)
	if err != nil {
		return domain.MoviePage{}, err
	}
	result, err := domain.DecodeMoviePage(body)
	if err != nil {
		return domain.MoviePage{}, fmt.Errorf("decode history: %w", err)
	}
	return result, nil
}

// Profile returns the account summary.
func (c *HTTPClient) Profile(ctx context.Context, userID domain.UserID) (domain.Profile, error) {
	if userID <= 0 {
		return domain.Profile{}, ErrMissingUserID
	}
	var profile domain.Profile
	if err := c.getJSON(ctx, "profile", "/profile", url.Values{"user_id": {userID.String()}}, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// Analytics returns the viewing aggregates for a user.
func (c *HTTPClient) Analytics(ctx context.Context, userID domain.UserID) (domain.Analytics, error) {
	if userID <= 0 {
		return domain.Analytics{}, ErrMissingUserID
	}
	var analytics domain.Analytics
	if err := c.getJSON(ctx, "analytics", "/analytics", url.Values{"user_id": {userID.String()}}, &analytics); err != nil {
		return domain.Analytics{}, err
	}
	return analytics, nil
}

// Movies searches the catalog.
func (c *HTTPClient) Movies(ctx context.Context, query domain.MovieQuery) (domain.MoviePage, error) {
	q := url.Values{}
	for k, v := range query.Values() {
		q.Set(k, v)
	}
	body, err := c.get(ctx, "movies", "/movies", q)
	if err != nil {
		return domain.MoviePage{}, err
	}
	page, err := domain.DecodeMoviePage(body)
	if err != nil {
		return domain.MoviePage{}, fmt.Errorf("decode movies: %w", err)
	}
	return page, nil
}

// FilterOptions lists the values the catalog can be filtered by.
func (c *HTTPClient) FilterOptions(ctx context.Context) (domain.FilterOptions, error) {
	var opts domain.FilterOptions
	if err := c.getJSON(ctx, "movies_filters", "/movies/filters", nil, &opts); err != nil {
		return domain.FilterOptions{}, err
	}
	return opts.Normalize(), nil
}

// Summarize returns the generated review summary for a movie.
func (c *HTTPClient) Summarize(ctx context.Context, movieID int64) (string, error) {
	var payload summaryResponse
	if err := c.getJSON(ctx, "summarize", "/summarize", url.Values{"movie_id": {strconv.FormatInt(movieID, 10)}}, &payload); err != nil {
		return "", err
	}
	return payload.Summary, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint, path string, query url.Values, dst any) error {
	body, err := c.get(ctx, endpoint, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// get deduplicates identical in-flight GETs. The shared request runs detached
// from any single caller's cancellation; each caller stops waiting on its own ctx.
func (c *HTTPClient) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	target := c.resolve(path, query)
	token := TokenFromContext(ctx)
	key := target + "\x00" + token

	ch := c.flights.DoChan(key, func() (any, error) {
		return c.roundTrip(context.WithoutCancel(ctx), endpoint, http.MethodGet, target, nil)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.BackendCoalesced.WithLabelValues(endpoint).Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *HTTPClient) send(ctx context.Context, endpoint, method, path string, query url.Values, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = encoded
	}
	return c.roundTrip(ctx, endpoint, method, c.resolve(path, query), body)
}

func (c *HTTPClient) resolve(path string, query url.Values) string {
	rel := &url.URL{Path: strings.TrimRight(c.baseURL.Path, "/") + path}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	return c.baseURL.ResolveReference(rel).String()
}

func (c *HTTPClient) roundTrip(ctx context.Context, endpoint, method, target string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	data, err := c.breaker.execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, method, target, body)
	})
	metrics.BackendLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.BackendRequests.WithLabelValues(endpoint, outcome(err)).Inc()

	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			c.logger.Warn().Str("endpoint", endpoint).Msg("backend circuit open, request rejected")
		}
		return nil, err
	}
	return data, nil
}

func (c *HTTPClient) do(ctx context.Context, endpoint, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	statusErr := &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Message: errorMessage(data)}
	if resp.StatusCode >= 500 {
		c.logger.Error().Str("endpoint", endpoint).Int("status", resp.StatusCode).Str("message", statusErr.Message).Msg("backend returned server error")
	}
	return nil, statusErr
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrUnavailable) {
		return "rejected"
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Status >= 500 {
			return "server_error"
		}
		return "client_error"
	}
	return "transport_error"
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	UserID          int64  `json:"user_id"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type loginResponse struct {
	UserID flexibleID `json:"user_id"`
	Token  string     `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// flexibleID accepts ids encoded as JSON numbers or numeric strings.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	*f = flexibleID(id)
	return nil
}
