package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// PlaceholderPoster is shown when a movie has no poster link or it fails to load.
const PlaceholderPoster = "https://via.placeholder.com/600x900?text=No+image"

const (
	unknownName  = "Unknown"
	notAvailable = "N/A"
)

// Year tolerates the shapes the backend emits for a release year: integers,
// floats from dataframe exports, numeric strings and null.
type Year int

// UnmarshalJSON implements json.Unmarshaler.
func (y *Year) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*y = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*y = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid year %q", raw)
	}
	*y = Year(f)
	return nil
}

// String renders the year or N/A.
func (y Year) String() string {
	if y <= 0 {
		return notAvailable
	}
	return strconv.Itoa(int(y))
}

// MovieSummary is the card-level view of one movie in a list.
type MovieSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Year Year   `json:"year"`
	Link string `json:"link"`
}

// DisplayName returns the name or a placeholder.
func (m MovieSummary) DisplayName() string {
	if strings.TrimSpace(m.Name) == "" {
		return unknownName
	}
	return m.Name
}

// PosterURL returns the poster link or the placeholder image.
func (m MovieSummary) PosterURL() string {
	if strings.TrimSpace(m.Link) == "" {
		return PlaceholderPoster
	}
	return m.Link
}

// MovieDetail is a list record carrying everything the detail panel shows.
// There is no separate detail endpoint; list responses embed these fields.
type MovieDetail struct {
	MovieSummary
	Description string     `json:"description"`
	Genres      []string   `json:"genres"`
	Country     []string   `json:"country"`
	Actors      []string   `json:"actors"`
	Reviews     RawReviews `json:"reviews"`
}

// DisplayDescription returns the description or N/A.
func (m MovieDetail) DisplayDescription() string {
	if strings.TrimSpace(m.Description) == "" {
		return notAvailable
	}
	return m.Description
}

// GenreList joins genres for display.
func (m MovieDetail) GenreList() string { return joinOrNA(m.Genres) }

// CountryList joins countries for display.
func (m MovieDetail) CountryList() string { return joinOrNA(m.Country) }

// ActorList joins actors for display.
func (m MovieDetail) ActorList() string { return joinOrNA(m.Actors) }

func joinOrNA(values []string) string {
	if len(values) == 0 {
		return notAvailable
	}
	return strings.Join(values, ", ")
}

// FindMovie returns the movie with the given id from a list.
func FindMovie(movies []MovieDetail, id int64) (MovieDetail, bool) {
	for _, m := range movies {
		if m.ID == id {
			return m, true
		}
	}
	return MovieDetail{}, false
}

// MoviePage is one server-side page of movies.
type MoviePage struct {
	Movies     []MovieDetail `json:"movies"`
	TotalPages int           `json:"total_pages"`
}

// Normalize applies the defaults the screens rely on: never nil, at least one page.
func (p MoviePage) Normalize() MoviePage {
	if p.Movies == nil {
		p.Movies = []MovieDetail{}
	}
	if p.TotalPages < 1 {
		p.TotalPages = 1
	}
	return p
}

// DecodeMoviePage accepts either a bare JSON array of movies or a
// {movies, total_pages} object.
func DecodeMoviePage(data []byte) (MoviePage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var movies []MovieDetail
		if err := json.Unmarshal(trimmed, &movies); err != nil {
			return MoviePage{}, err
		}
		return MoviePage{Movies: movies, TotalPages: 1}.Normalize(), nil
	}
	var page MoviePage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return MoviePage{}, err
	}
	return page.Normalize(), nil
}
