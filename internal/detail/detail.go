// Package detail assembles the full title detail payload.
package detail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/lang"
	"github.com/kinolab/marquee/internal/respcache"
)

const castLimit = 24

// Store is the catalog access the assembler needs.
type Store interface {
	LookupTitle(ctx context.Context, id int64) (*catalog.Title, error)
	Genres(ctx context.Context, kind catalog.Kind, id int64) ([]string, error)
	Cast(ctx context.Context, kind catalog.Kind, id int64, limit int) ([]catalog.CastMember, error)
	Trailer(ctx context.Context, kind catalog.Kind, id int64) (*catalog.Video, error)
	Seasons(ctx context.Context, seriesID int64) ([]catalog.Season, error)
	Episodes(ctx context.Context, seriesID int64, season int) ([]catalog.Episode, error)
	LatestAiredSeason(ctx context.Context, seriesID int64, now time.Time) (int, error)
	Similar(ctx context.Context, kind catalog.Kind, id int64) ([]*catalog.Title, error)
}

// Trailer is a YouTube trailer reference.
type Trailer struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// SeasonEntry is one season row in the detail payload.
type SeasonEntry struct {
	Season       int `json:"season"`
	EpisodeCount int `json:"episode_count"`
}

// EpisodeEntry is one prefetched episode.
type EpisodeEntry struct {
	Episode    int     `json:"episode"`
	Name       string  `json:"name"`
	RuntimeMin *int    `json:"runtime_min"`
	Still      *string `json:"still"`
}

// CastEntry is one cast row in the detail payload.
type CastEntry struct {
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	Order   int     `json:"order"`
	Profile *string `json:"profile"`
}

// Payload is the title detail response. Season fields are present only for
// series.
type Payload struct {
	ID               int64          `json:"id"`
	Kind             catalog.Kind   `json:"kind"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Tags             []string       `json:"tags"`
	Year             *int           `json:"year"`
	RuntimeMin       *int           `json:"runtime_min"`
	Rating           *float64       `json:"rating"`
	Poster           *string        `json:"poster"`
	Logo             *string        `json:"logo"`
	Backdrop         *string        `json:"backdrop"`
	TrailerYouTube   *Trailer       `json:"trailer_youtube"`
	Seasons          []SeasonEntry  `json:"seasons,omitempty"`
	PrefetchSeason   *int           `json:"prefetch_season,omitempty"`
	PrefetchEpisodes []EpisodeEntry `json:"prefetch_episodes,omitempty"`
	Cast             []CastEntry    `json:"cast"`
	Similar          []card.Card    `json:"similar"`
}

// Assembler builds detail payloads. Only the similar list is cached; the rest
// is assembled per request.
type Assembler struct {
	store      Store
	loc        *lang.Localizer
	cards      *card.Builder
	cache      *respcache.Cache
	similarTTL time.Duration

	now func() time.Time
}

// New creates a detail assembler.
func New(store Store, loc *lang.Localizer, cards *card.Builder, cache *respcache.Cache, similarTTL time.Duration) *Assembler {
	return &Assembler{
		store:      store,
		loc:        loc,
		cards:      cards,
		cache:      cache,
		similarTTL: similarTTL,
		now:        time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (a *Assembler) SetClock(now func() time.Time) { a.now = now }

// Title assembles the detail payload for one title id, trying movies before
// series. Returns catalog.ErrNotFound when the id resolves to neither.
func (a *Assembler) Title(ctx context.Context, id int64, tag string) (*Payload, error) {
	tag = lang.Normalize(tag)
	t, err := a.store.LookupTitle(ctx, id)
	if err != nil {
		return nil, err
	}

	tr, err := a.loc.Resolve(ctx, t.Kind, t.ID, tag)
	if err != nil {
		return nil, err
	}
	name := t.Name
	description := t.Overview
	if tr != nil {
		if tr.Name != "" {
			name = tr.Name
		}
		if tr.Overview != "" {
			description = tr.Overview
		}
	}

	tags, err := a.store.Genres(ctx, t.Kind, t.ID)
	if err != nil {
		return nil, fmt.Errorf("genres: %w", err)
	}

	members, err := a.store.Cast(ctx, t.Kind, t.ID, castLimit)
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	cast := make([]CastEntry, 0, len(members))
	for _, m := range members {
		cast = append(cast, CastEntry{Name: m.Name, Role: m.Role, Order: m.Order, Profile: m.Profile})
	}

	trailer, err := a.trailer(ctx, t.Kind, t.ID)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		ID:             t.ID,
		Kind:           t.Kind,
		Name:           name,
		Description:    description,
		Tags:           tags,
		Year:           t.Year(),
		RuntimeMin:     t.RuntimeMin,
		Rating:         t.Rating,
		Poster:         t.Poster,
		Logo:           detailLogo(t),
		Backdrop:       t.Backdrop,
		TrailerYouTube: trailer,
		Cast:           cast,
	}

	if t.Kind == catalog.KindSeries {
		if err := a.fillSeasons(ctx, t.ID, p); err != nil {
			return nil, err
		}
	}

	similar, err := a.similar(ctx, t.Kind, t.ID, tag)
	if err != nil {
		return nil, err
	}
	p.Similar = similar

	return p, nil
}

// detailLogo keeps the detail page honest about artwork: a stored logo or
// nothing, unlike card rendering which degrades to the poster.
func detailLogo(t *catalog.Title) *string {
	if t.LocalLogo != nil {
		return t.LocalLogo
	}
	return t.Logo
}

// trailer returns the YouTube trailer reference, or nil. Video rows for
// other sites carry no derivable URL and are skipped.
func (a *Assembler) trailer(ctx context.Context, kind catalog.Kind, id int64) (*Trailer, error) {
	v, err := a.store.Trailer(ctx, kind, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("trailer: %w", err)
	}
	if !strings.EqualFold(v.Site, "youtube") || v.Key == "" {
		return nil, nil
	}
	return &Trailer{Key: v.Key, URL: "https://www.youtube.com/watch?v=" + v.Key}, nil
}

// fillSeasons adds the season list and the prefetch block: the regular season
// with the most recently aired episode as of now, else the lowest-numbered
// regular season. Specials (season 0) are listed but never prefetched.
// Episode names are localized at ingest, so no per-language work happens here.
func (a *Assembler) fillSeasons(ctx context.Context, seriesID int64, p *Payload) error {
	seasons, err := a.store.Seasons(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("seasons: %w", err)
	}
	p.Seasons = make([]SeasonEntry, 0, len(seasons))
	for _, s := range seasons {
		p.Seasons = append(p.Seasons, SeasonEntry{Season: s.Season, EpisodeCount: s.EpisodeCount})
	}
	if len(seasons) == 0 {
		return nil
	}

	sn, err := a.store.LatestAiredSeason(ctx, seriesID, a.now())
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("latest aired season: %w", err)
		}
		sn = 0
		for _, s := range seasons {
			if s.Season > 0 {
				sn = s.Season
				break
			}
		}
		if sn == 0 {
			return nil
		}
	}

	episodes, err := a.store.Episodes(ctx, seriesID, sn)
	if err != nil {
		return fmt.Errorf("episodes: %w", err)
	}
	p.PrefetchSeason = &sn
	p.PrefetchEpisodes = make([]EpisodeEntry, 0, len(episodes))
	for _, e := range episodes {
		p.PrefetchEpisodes = append(p.PrefetchEpisodes, EpisodeEntry{
			Episode:    e.Episode,
			Name:       e.Name,
			RuntimeMin: e.RuntimeMin,
			Still:      e.Still,
		})
	}
	return nil
}

// similar renders the cached similar-titles list for a title, keyed per
// language.
func (a *Assembler) similar(ctx context.Context, kind catalog.Kind, id int64, tag string) ([]card.Card, error) {
	key := fmt.Sprintf("similar:%s:%d:%s", kind, id, tag)
	v, err := a.cache.GetOrCompute(ctx, key, a.similarTTL, func() (any, error) {
		cctx := context.WithoutCancel(ctx)
		titles, err := a.store.Similar(cctx, kind, id)
		if err != nil {
			return nil, fmt.Errorf("similar: %w", err)
		}
		return a.cards.LocalizedAll(cctx, titles, tag, false)
	})
	if err != nil {
		return nil, err
	}
	return v.([]card.Card), nil
}

var _ Store = (*catalog.Store)(nil)
