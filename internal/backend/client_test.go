package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/logging"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(srv.URL, Options{Timeout: 2 * time.Second, Logger: logging.Nop()})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client, srv
}

func TestNewHTTPClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewHTTPClient("localhost:5001", Options{}); err == nil {
		t.Fatalf("expected error for URL without scheme")
	}
}

func TestLoginSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" || body["password"] != "pw123" {
			t.Errorf("unexpected credentials %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":42,"token":"t1"}`))
	}))

	sess, err := client.Login(context.Background(), "alice", "pw123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.UserID != 42 || sess.Token != "t1" {
		t.Fatalf("session = %+v, want {42 t1}", sess)
	}
}

func TestLoginAcceptsStringUserID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_id":"7"}`))
	}))
	sess, err := client.Login(context.Background(), "bob", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.UserID != 7 || sess.Token != "" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
	}))
	_, err := client.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterConflict(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	if err := client.Register(context.Background(), "alice", "pw"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestRegisterGenericFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Username and password are required"}`))
	}))
	err := client.Register(context.Background(), "", "")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want StatusError 400", err)
	}
	if statusErr.Message != "Username and password are required" {
		t.Fatalf("message = %q", statusErr.Message)
	}
	if errors.Is(err, ErrUserExists) {
		t.Fatalf("400 must not map to ErrUserExists")
	}
}

func TestUserScopedCallsSkipRequestWithoutUserID(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	ctx := context.Background()

	if _, err := client.Recommendations(ctx, 0); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("Recommendations err = %v", err)
	}
	if _, err := client.History(ctx, 0, 1, 10); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("History err = %v", err)
	}
	if _, err := client.Profile(ctx, 0); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("Profile err = %v", err)
	}
	if _, err := client.Analytics(ctx, 0); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("Analytics err = %v", err)
	}
	if _, err := client.ChangePassword(ctx, 0, "a", "b"); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("ChangePassword err = %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("backend received %d requests, want 0", hits.Load())
	}
}

func TestHistoryPagination(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user_id") != "42" || q.Get("page") != "2" || q.Get("per_page") != "10" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"movies":[{"id":1,"name":"Heat"}],"total_pages":3}`))
	}))

	page, err := client.History(context.Background(), 42, 2, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.TotalPages != 3 || len(page.Movies) != 1 || page.Movies[0].Name != "Heat" {
		t.Fatalf("page = %+v", page)
	}
}

func TestMoviesQueryParameters(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/movies" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q.Get("search") != "shrek" || q.Get("genres") != "Animation,Comedy" || q.Get("page") != "1" || q.Get("per_page") != "21" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Has("years") || q.Has("countries") {
			t.Errorf("empty filters must be omitted: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"movies":[],"total_pages":0}`))
	}))

	page, err := client.Movies(context.Background(), domain.MovieQuery{
		Filters: domain.FilterTuple{Query: "shrek", Genres: []string{"Comedy", "Animation"}},
		Page:    1,
		PerPage: 21,
	})
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if page.TotalPages != 1 || page.Movies == nil {
		t.Fatalf("page not normalized: %+v", page)
	}
}

func TestFilterOptionsAndSummarize(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movies/filters":
			_, _ = w.Write([]byte(`{"years":[2001,2002],"genres":["Drama"]}`))
		case "/summarize":
			if r.URL.Query().Get("movie_id") != "9" {
				t.Errorf("movie_id = %s", r.URL.Query().Get("movie_id"))
			}
			_, _ = w.Write([]byte(`{"summary":"### Summary:\n\nfine"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	opts, err := client.FilterOptions(context.Background())
	if err != nil {
		t.Fatalf("FilterOptions: %v", err)
	}
	if len(opts.Years) != 2 || opts.Countries == nil {
		t.Fatalf("options = %+v", opts)
	}

	summary, err := client.Summarize(context.Background(), 9)
	if err != nil || summary == "" {
		t.Fatalf("Summarize = %q, %v", summary, err)
	}
}

func TestTokenForwarded(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer t1" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"username":"alice"}`))
	}))
	ctx := WithToken(context.Background(), "t1")
	profile, err := client.Profile(ctx, 42)
	if err != nil || profile.Username != "alice" {
		t.Fatalf("Profile = %+v, %v", profile, err)
	}
}

func TestChangePasswordError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req changePasswordRequest
		_ = json.Unmarshal(body, &req)
		if req.UserID != 42 || req.CurrentPassword != "old" || req.NewPassword != "new" {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Current password is incorrect"}`))
	}))
	_, err := client.ChangePassword(context.Background(), 42, "old", "new")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Message != "Current password is incorrect" {
		t.Fatalf("err = %v", err)
	}
}

func TestIdenticalGetsAreCoalesced(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"years":[],"countries":[],"genres":[]}`))
	}))

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.FilterOptions(context.Background())
			errs <- err
		}()
	}

	// Give every caller time to join the flight before the server answers.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("FilterOptions: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("backend hits = %d, want 1", hits.Load())
	}
}

func TestCallerCancellationDoesNotFailSharedFlight(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"years":[1999],"countries":[],"genres":[]}`))
	}))

	cancelled, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.FilterOptions(cancelled)
		firstErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	secondResult := make(chan domain.FilterOptions, 1)
	go func() {
		opts, err := client.FilterOptions(context.Background())
		if err != nil {
			t.Errorf("second caller: %v", err)
		}
		secondResult <- opts
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller err = %v, want context.Canceled", err)
	}
	close(release)

	if opts := <-secondResult; len(opts.Years) != 1 {
		t.Fatalf("second caller got %+v", opts)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 5; i++ {
		if _, err := client.Summarize(context.Background(), int64(i)); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}
	if client.breaker.state() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", client.breaker.state())
	}
	if _, err := client.Summarize(context.Background(), 99); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if hits.Load() != 5 {
		t.Fatalf("backend hits = %d, want 5", hits.Load())
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	for i := 0; i < 10; i++ {
		_, _ = client.Login(context.Background(), "alice", "bad")
	}
	if client.breaker.state() != gobreaker.StateClosed {
		t.Fatalf("breaker opened on 4xx responses")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":"boom"}`, "boom"},
		{`{"message":"nope"}`, "nope"},
		{"plain text", "plain text"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Fatalf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
