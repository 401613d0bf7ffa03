// Package search implements ranked title search.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/lang"
)

const (
	// maxResults bounds every result list, applied after ranking.
	maxResults = 12

	// candidateLimit is how many substring candidates the store is asked
	// for before ranking trims them.
	candidateLimit = 200

	// fuzzyPool and fuzzyThreshold drive the Jaro-Winkler fallback pass
	// over the most popular titles when substring matching finds nothing.
	fuzzyPool      = 500
	fuzzyThreshold = 0.84
)

// matchRank orders match quality: exact beats prefix beats substring.
type matchRank int

const (
	rankExact matchRank = iota
	rankPrefix
	rankSubstring
)

// Store is the catalog access the engine needs.
type Store interface {
	SearchCandidates(ctx context.Context, query string, langs []string, limit int) ([]*catalog.Title, error)
	NamesForLang(ctx context.Context, lang string, limit int) ([]catalog.NameRef, error)
	GetTitle(ctx context.Context, kind catalog.Kind, id int64) (*catalog.Title, error)
}

// Result is the search response shape.
type Result struct {
	Query   string      `json:"query"`
	Results []card.Card `json:"results"`
}

// Engine ranks titles against a query.
type Engine struct {
	store Store
	loc   *lang.Localizer
	cards *card.Builder
}

// New creates a search engine.
func New(store Store, loc *lang.Localizer, cards *card.Builder) *Engine {
	return &Engine{store: store, loc: loc, cards: cards}
}

type scored struct {
	title *catalog.Title
	rank  matchRank
}

// Search returns up to 12 titles matching the query, best matches first. An
// empty query returns an empty result set.
func (e *Engine) Search(ctx context.Context, query, tag string) (*Result, error) {
	q := strings.TrimSpace(query)
	out := &Result{Query: q, Results: []card.Card{}}
	if q == "" {
		return out, nil
	}

	titles, err := e.store.SearchCandidates(ctx, q, searchLangs(tag), candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	qfold := strings.ToLower(q)
	matches := make([]scored, 0, len(titles))
	for _, t := range titles {
		name, err := e.displayName(ctx, t, tag)
		if err != nil {
			return nil, err
		}
		rank, ok := classify(qfold, name, t.Name)
		if !ok {
			continue
		}
		matches = append(matches, scored{title: t, rank: rank})
	}

	if len(matches) == 0 {
		return e.fuzzy(ctx, qfold, tag, out)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		ar, br := derefRating(a.title.Rating), derefRating(b.title.Rating)
		if ar != br {
			return ar > br
		}
		return a.title.ID < b.title.ID
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	for _, m := range matches {
		c, err := e.cards.Localized(ctx, m.title, tag, false)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, c)
	}
	return out, nil
}

// classify ranks the query against the localized name, falling back to the
// original name. Case-insensitive.
func classify(qfold, localized, original string) (matchRank, bool) {
	best := matchRank(-1)
	for _, name := range []string{localized, original} {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		var r matchRank
		switch {
		case n == qfold:
			r = rankExact
		case strings.HasPrefix(n, qfold):
			r = rankPrefix
		case strings.Contains(n, qfold):
			r = rankSubstring
		default:
			continue
		}
		if best < 0 || r < best {
			best = r
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// fuzzy fills the result list from a Jaro-Winkler pass over popular titles
// when substring matching came up empty.
func (e *Engine) fuzzy(ctx context.Context, qfold, tag string, out *Result) (*Result, error) {
	names, err := e.store.NamesForLang(ctx, lang.Normalize(tag), fuzzyPool)
	if err != nil {
		return nil, fmt.Errorf("fuzzy pool: %w", err)
	}

	type hit struct {
		ref   catalog.NameRef
		score float64
	}
	hits := make([]hit, 0, maxResults)
	for _, n := range names {
		score := float64(edlib.JaroWinklerSimilarity(qfold, strings.ToLower(n.Name)))
		if score >= fuzzyThreshold {
			hits = append(hits, hit{ref: n, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.score != b.score {
			return a.score > b.score
		}
		ar, br := derefRating(a.ref.Rating), derefRating(b.ref.Rating)
		if ar != br {
			return ar > br
		}
		return a.ref.ID < b.ref.ID
	})
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	for _, h := range hits {
		t, err := e.store.GetTitle(ctx, h.ref.Kind, h.ref.ID)
		if err != nil {
			return nil, err
		}
		c, err := e.cards.Localized(ctx, t, tag, false)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, c)
	}
	return out, nil
}

func (e *Engine) displayName(ctx context.Context, t *catalog.Title, tag string) (string, error) {
	tr, err := e.loc.Resolve(ctx, t.Kind, t.ID, tag)
	if err != nil {
		return "", err
	}
	if tr != nil && tr.Name != "" {
		return tr.Name, nil
	}
	return t.Name, nil
}

// searchLangs is the translation language set matched against: the requested
// tag, its base, and the default.
func searchLangs(tag string) []string {
	tag = lang.Normalize(tag)
	set := []string{tag}
	if b := lang.Base(tag); b != tag {
		set = append(set, b)
	}
	for _, s := range set {
		if s == lang.DefaultTag {
			return set
		}
	}
	return append(set, lang.DefaultTag)
}

// derefRating treats a missing rating as lowest for tie-breaking.
func derefRating(r *float64) float64 {
	if r == nil {
		return -1
	}
	return *r
}

var _ Store = (*catalog.Store)(nil)
