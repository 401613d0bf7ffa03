// Package catalog provides read-only access to the pre-populated title database.
package catalog

import "strconv"

// Kind distinguishes movies from series. Title ids are unique per kind.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Window selects a trending snapshot.
type Window string

const (
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// Order selects a browse collection ordering.
type Order string

const (
	OrderPopular Order = "popular"
	OrderRating  Order = "rating"
	OrderRecent  Order = "recent"
)

// Title is one catalog entry, movie or series.
type Title struct {
	ID          int64
	Kind        Kind
	Name        string
	Overview    string
	ReleaseDate string // YYYY-MM-DD, empty if unknown
	Rating      *float64
	Votes       int
	Popularity  float64
	RuntimeMin  *int
	Poster      *string
	Backdrop    *string
	Logo        *string // provider logo path
	LocalLogo   *string // locally stored logo, wins over Logo
	Providers   string  // comma-separated attributions, series only
}

// Year returns the release year, nil if the date is absent or malformed.
func (t *Title) Year() *int {
	if len(t.ReleaseDate) < 4 {
		return nil
	}
	y, err := strconv.Atoi(t.ReleaseDate[:4])
	if err != nil {
		return nil
	}
	return &y
}

// Translation is one localized text record for a title.
type Translation struct {
	Lang     string
	Name     string
	Overview string
}

// CastMember belongs to exactly one title.
type CastMember struct {
	Name    string
	Role    string
	Order   int
	Profile *string
}

// Season summarizes one season of a series.
type Season struct {
	Season       int
	EpisodeCount int
}

// Episode is one episode of a series season.
type Episode struct {
	Episode    int
	Name       string
	RuntimeMin *int
	Still      *string
	AirDate    string // YYYY-MM-DD, empty if unknown
}

// Video is a trailer reference.
type Video struct {
	Site string
	Key  string
}

// NameRef is a lightweight (title, display name) pair used by fuzzy search.
type NameRef struct {
	ID     int64
	Kind   Kind
	Name   string
	Rating *float64
}
