// Package search coordinates the filter-options and movie-list requests behind
// the search screen.
//
// A Coordinator loads the catalog's filter options first and only then issues
// movie queries. Every query is tagged with a generation; a response is applied
// only while its generation is the newest one issued, so a late answer for a
// superseded filter tuple or page never replaces the current result.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/metrics"
)

// MovieSource is the subset of the backend client the coordinator needs.
type MovieSource interface {
	FilterOptions(ctx context.Context) (domain.FilterOptions, error)
	Movies(ctx context.Context, query domain.MovieQuery) (domain.MoviePage, error)
}

// State is the coordinator's position in the load sequence.
type State int

const (
	FiltersLoading State = iota
	FiltersError
	FiltersReady
	MoviesLoading
	MoviesReady
	MoviesError
)

func (s State) String() string {
	switch s {
	case FiltersLoading:
		return "filters_loading"
	case FiltersError:
		return "filters_error"
	case FiltersReady:
		return "filters_ready"
	case MoviesLoading:
		return "movies_loading"
	case MoviesReady:
		return "movies_ready"
	case MoviesError:
		return "movies_error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrNotStarted is returned by Wait when Start was never called.
var ErrNotStarted = errors.New("search coordinator not started")

// Change is one user mutation. A nil Filters keeps the current tuple; a Page
// of zero or less keeps the current page. Changing the tuple always moves back
// to page 1, whatever Page says.
type Change struct {
	Filters *domain.FilterTuple
	Page    int
}

// Options tunes a Coordinator.
type Options struct {
	PerPage int
	// Debounce delays fetches caused by free-text query edits. Zero issues immediately.
	Debounce time.Duration
	Logger   zerolog.Logger
}

// Snapshot is the coordinator's visible state.
type Snapshot struct {
	State          State                `json:"state"`
	Generation     uint64               `json:"generation"`
	Filters        domain.FilterTuple   `json:"filters"`
	Page           int                  `json:"page"`
	TotalPages     int                  `json:"total_pages"`
	Movies         []domain.MovieDetail `json:"movies"`
	Options        domain.FilterOptions `json:"options"`
	FiltersLoading bool                 `json:"filters_loading"`
	MoviesLoading  bool                 `json:"movies_loading"`
	Err            error                `json:"-"`
	ErrorMessage   string               `json:"error,omitempty"`
}

// Coordinator owns one browsing session's search state.
type Coordinator struct {
	src     MovieSource
	ctx     context.Context
	stop    context.CancelFunc
	perPage int
	wait    time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	started bool
	state   State
	options domain.FilterOptions
	filters domain.FilterTuple
	page    int
	movies  []domain.MovieDetail
	total   int
	err     error
	gen     uint64 // newest generation requested
	applied uint64 // newest generation whose response was applied
	cancel  context.CancelFunc
	timer   *time.Timer
	changed chan struct{}
	closed  bool
}

// NewCoordinator builds an idle coordinator. All fetches run under ctx, which
// should carry the session token; Close cancels them.
func NewCoordinator(ctx context.Context, src MovieSource, opts Options) *Coordinator {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 21
	}
	ctx, stop := context.WithCancel(ctx)
	return &Coordinator{
		src:     src,
		ctx:     ctx,
		stop:    stop,
		perPage: perPage,
		wait:    opts.Debounce,
		logger:  opts.Logger.With().Str("component", "search").Logger(),
		state:   FiltersLoading,
		page:    1,
		total:   1,
		movies:  []domain.MovieDetail{},
		options: domain.FilterOptions{}.Normalize(),
		changed: make(chan struct{}),
	}
}

// Start issues the filter-options request. It is a no-op while options are
// loading or loaded; after a failure it retries.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (c.started && c.state != FiltersError) {
		return
	}
	c.started = true
	c.state = FiltersLoading
	c.err = nil
	if c.gen == 0 {
		// The initial unfiltered page is generation 1.
		c.gen = 1
	}
	c.notifyLocked()

	metrics.SearchFetches.WithLabelValues("filters").Inc()
	go c.loadFilters()
}

func (c *Coordinator) loadFilters() {
	opts, err := c.src.FilterOptions(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err != nil {
		c.state = FiltersError
		c.err = err
		c.logger.Warn().Err(err).Msg("load filter options")
		c.notifyLocked()
		return
	}
	c.options = opts.Normalize()
	c.state = FiltersReady
	c.notifyLocked()
	// Whatever was selected while options loaded is issued now, once.
	c.issueLocked(c.gen)
}

// Update applies a mutation and returns the generation whose result reflects
// it. An update that changes nothing returns the current generation and issues
// no request.
func (c *Coordinator) Update(change Change) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.gen
	}

	filters, page := c.filters, c.page
	queryOnly := false
	if change.Filters != nil {
		next := change.Filters.Canonical()
		if !next.Equal(c.filters) {
			queryOnly = next.Query != c.filters.Query && sameSets(next, c.filters)
			filters = next
			page = 1
		}
	}
	if filters.Equal(c.filters) && change.Page > 0 {
		page = change.Page
	}
	if filters.Equal(c.filters) && page == c.page {
		return c.gen
	}

	c.filters, c.page = filters, page
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if !c.ready() {
		// Held until filter options arrive.
		c.notifyLocked()
		return gen
	}
	if queryOnly && c.wait > 0 {
		c.state = MoviesLoading
		c.notifyLocked()
		c.timer = time.AfterFunc(c.wait, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if !c.closed && c.gen == gen {
				c.issueLocked(gen)
			}
		})
		return gen
	}
	c.issueLocked(gen)
	return gen
}

func (c *Coordinator) ready() bool {
	return c.state != FiltersLoading && c.state != FiltersError
}

func (c *Coordinator) issueLocked(gen uint64) {
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	c.state = MoviesLoading
	c.notifyLocked()

	query := domain.MovieQuery{Filters: c.filters, Page: c.page, PerPage: c.perPage}
	metrics.SearchFetches.WithLabelValues("movies").Inc()
	go c.fetchMovies(ctx, gen, query)
}

func (c *Coordinator) fetchMovies(ctx context.Context, gen uint64, query domain.MovieQuery) {
	page, err := c.src.Movies(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if gen != c.gen {
		metrics.SearchStaleResponses.Inc()
		c.logger.Debug().Uint64("generation", gen).Uint64("current", c.gen).Msg("discarding superseded search response")
		return
	}

	c.cancel = nil
	c.applied = gen
	if err != nil {
		c.state = MoviesError
		c.err = err
		c.movies = []domain.MovieDetail{}
		c.total = 1
		c.logger.Warn().Err(err).Int("page", query.Page).Msg("search movies")
	} else {
		page = page.Normalize()
		c.state = MoviesReady
		c.err = nil
		c.movies = page.Movies
		c.total = page.TotalPages
	}
	c.notifyLocked()
}

// Snapshot returns the current visible state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:          c.state,
		Generation:     c.gen,
		Filters:        c.filters,
		Page:           c.page,
		TotalPages:     c.total,
		Movies:         c.movies,
		Options:        c.options,
		FiltersLoading: c.state == FiltersLoading,
		MoviesLoading:  c.ready() && c.applied < c.gen,
		Err:            c.err,
	}
	if c.err != nil {
		s.ErrorMessage = c.err.Error()
	}
	return s
}

// Wait blocks until generation gen has been applied or superseded, or the
// filter options failed to load, then returns the snapshot.
func (c *Coordinator) Wait(ctx context.Context, gen uint64) (Snapshot, error) {
	for {
		c.mu.Lock()
		if !c.started {
			c.mu.Unlock()
			return Snapshot{}, ErrNotStarted
		}
		if c.settledLocked(gen) {
			s := c.snapshotLocked()
			c.mu.Unlock()
			return s, nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case <-ch:
		}
	}
}

func (c *Coordinator) settledLocked(gen uint64) bool {
	return c.closed || c.state == FiltersError || gen < c.gen || c.applied >= gen
}

// Close cancels in-flight fetches and wakes any waiters.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.stop()
	c.notifyLocked()
}

func (c *Coordinator) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func sameSets(a, b domain.FilterTuple) bool {
	a.Query, b.Query = "", ""
	return a.Equal(b)
}
