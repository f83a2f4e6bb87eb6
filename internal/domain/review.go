package domain

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// ReviewExpandThreshold is the length in characters above which a review
// renders collapsed behind a "read more" toggle.
const ReviewExpandThreshold = 200

// RawReviews holds the reviews field exactly as the backend sent it. The
// backend encodes the list as a JSON string; a plain JSON array is accepted too.
type RawReviews string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawReviews) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = RawReviews(s)
		return nil
	}
	*r = RawReviews(trimmed)
	return nil
}

// Review is one audience review.
type Review struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// DisplayAuthor returns the author or "Anonymous".
func (r Review) DisplayAuthor() string {
	if strings.TrimSpace(r.Author) == "" {
		return "Anonymous"
	}
	return r.Author
}

// DisplayText returns the text or a placeholder.
func (r Review) DisplayText() string {
	if strings.TrimSpace(r.Text) == "" {
		return "No review text"
	}
	return r.Text
}

// Long reports whether the review is collapsed by default.
func (r Review) Long() bool {
	return utf8.RuneCountInString(r.Text) > ReviewExpandThreshold
}

// ErrMalformedReviews marks a reviews payload that is not a JSON array.
var ErrMalformedReviews = errors.New("reviews: not a JSON array")

// ParseReviews decodes the embedded reviews list. The returned slice is never
// nil; on malformed input it is empty and the error is only meant for logging.
func ParseReviews(raw RawReviews) ([]Review, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return []Review{}, nil
	}
	var reviews []Review
	if err := json.Unmarshal([]byte(text), &reviews); err != nil {
		return []Review{}, errors.Join(ErrMalformedReviews, err)
	}
	if reviews == nil {
		return []Review{}, nil
	}
	return reviews, nil
}
