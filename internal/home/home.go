// Package home assembles the home page payload.
package home

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/respcache"
)

const (
	sampleSize    = 10
	seriesOnLimit = 18
	topRatedLimit = 12
	genreRowLimit = 18
)

// Provider is one configured streaming attribution and its match needles.
type Provider struct {
	Name    string
	Needles []string
}

// Genre is one configured home page genre row.
type Genre struct {
	Key     string
	Needles []string
}

// Store is the catalog access the aggregator needs.
type Store interface {
	Trending(ctx context.Context, w catalog.Window) ([]*catalog.Title, error)
	SeriesByProvider(ctx context.Context, needles []string, limit int) ([]*catalog.Title, error)
	TopRated(ctx context.Context, kind catalog.Kind, limit int) ([]*catalog.Title, error)
	TitlesByGenre(ctx context.Context, needles []string, limit, offset int) ([]*catalog.Title, error)
}

// Payload is the home page response shape.
type Payload struct {
	AsOf          int64                  `json:"as_of"`
	Providers     []string               `json:"providers"`
	Slider        []card.Card            `json:"slider"`
	Top10Today    []card.Card            `json:"top10_today"`
	TrendingToday []card.Card            `json:"trending_today"`
	SeriesOn      map[string][]card.Card `json:"series_on"`
	TopRated      TopRated               `json:"top_rated"`
	Genres        map[string][]card.Card `json:"genres"`
}

// TopRated holds the best-rated movie and series lists.
type TopRated struct {
	Movies []card.Card `json:"movies"`
	Series []card.Card `json:"series"`
}

// Aggregator builds and caches the home payload per language.
type Aggregator struct {
	store     Store
	cards     *card.Builder
	cache     *respcache.Cache
	ttl       time.Duration
	providers []Provider
	genres    []Genre
	log       *slog.Logger

	// injected for deterministic tests
	now  func() time.Time
	perm func(n int) []int
}

// New creates a home aggregator. The cache is shared process-wide and owns
// the per-language entries under "home:<lang>" keys.
func New(store Store, cards *card.Builder, cache *respcache.Cache, ttl time.Duration, providers []Provider, genres []Genre, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		store:     store,
		cards:     cards,
		cache:     cache,
		ttl:       ttl,
		providers: providers,
		genres:    genres,
		log:       log,
		now:       time.Now,
		perm:      rand.Perm,
	}
}

// SetClock overrides the time source, for tests.
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }

// SetPerm overrides the sampling permutation source, for tests.
func (a *Aggregator) SetPerm(perm func(n int) []int) { a.perm = perm }

// Home returns the home payload for a normalized language tag, computing it
// at most once per TTL window.
func (a *Aggregator) Home(ctx context.Context, tag string) (*Payload, error) {
	key := "home:" + tag
	v, err := a.cache.GetOrCompute(ctx, key, a.ttl, func() (any, error) {
		// The computation serves every waiter on this key; it must not die
		// with the caller that happened to trigger it.
		return a.build(context.WithoutCancel(ctx), tag)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Payload), nil
}

func (a *Aggregator) build(ctx context.Context, tag string) (*Payload, error) {
	start := a.now()

	day, err := a.store.Trending(ctx, catalog.WindowDay)
	if err != nil {
		return nil, fmt.Errorf("trending day: %w", err)
	}
	week, err := a.store.Trending(ctx, catalog.WindowWeek)
	if err != nil {
		return nil, fmt.Errorf("trending week: %w", err)
	}

	// Two independent samples per recompute. Sampling lives inside the
	// single-flight computation so a TTL window serves one stable pick.
	slider, err := a.cards.LocalizedAll(ctx, a.sample(day), tag, true)
	if err != nil {
		return nil, err
	}
	top10, err := a.cards.LocalizedAll(ctx, a.sample(day), tag, false)
	if err != nil {
		return nil, err
	}
	trendingToday, err := a.cards.LocalizedAll(ctx, week, tag, false)
	if err != nil {
		return nil, err
	}

	seriesOn := make(map[string][]card.Card, len(a.providers))
	providerNames := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		providerNames = append(providerNames, p.Name)
		titles, err := a.store.SeriesByProvider(ctx, p.Needles, seriesOnLimit)
		if err != nil {
			return nil, fmt.Errorf("series on %s: %w", p.Name, err)
		}
		cards, err := a.cards.LocalizedAll(ctx, titles, tag, false)
		if err != nil {
			return nil, err
		}
		seriesOn[p.Name] = cards
	}

	var topRated TopRated
	for _, kind := range []catalog.Kind{catalog.KindMovie, catalog.KindSeries} {
		titles, err := a.store.TopRated(ctx, kind, topRatedLimit)
		if err != nil {
			return nil, fmt.Errorf("top rated %s: %w", kind, err)
		}
		cards, err := a.cards.LocalizedAll(ctx, titles, tag, false)
		if err != nil {
			return nil, err
		}
		if kind == catalog.KindMovie {
			topRated.Movies = cards
		} else {
			topRated.Series = cards
		}
	}

	genres := make(map[string][]card.Card, len(a.genres))
	for _, g := range a.genres {
		titles, err := a.store.TitlesByGenre(ctx, g.Needles, genreRowLimit, 0)
		if err != nil {
			return nil, fmt.Errorf("genre %s: %w", g.Key, err)
		}
		cards, err := a.cards.LocalizedAll(ctx, titles, tag, false)
		if err != nil {
			return nil, err
		}
		genres[g.Key] = cards
	}

	a.log.Debug("home payload built",
		"lang", tag,
		"trending_day", len(day),
		"trending_week", len(week),
		"duration_ms", a.now().Sub(start).Milliseconds(),
	)

	// Stamped at the end of the build so as_of matches the moment the
	// entry enters the cache, not when the build started.
	return &Payload{
		AsOf:          a.now().Unix(),
		Providers:     providerNames,
		Slider:        slider,
		Top10Today:    top10,
		TrendingToday: trendingToday,
		SeriesOn:      seriesOn,
		TopRated:      topRated,
		Genres:        genres,
	}, nil
}

// sample draws up to sampleSize titles without replacement. Shorter lists
// are returned whole, unpadded.
func (a *Aggregator) sample(titles []*catalog.Title) []*catalog.Title {
	if len(titles) <= sampleSize {
		return titles
	}
	idx := a.perm(len(titles))
	out := make([]*catalog.Title, 0, sampleSize)
	for _, i := range idx[:sampleSize] {
		out = append(out, titles[i])
	}
	return out
}

var _ Store = (*catalog.Store)(nil)
