// Package browse serves paginated tab listings.
package browse

import (
	"context"
	"fmt"

	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
)

// Tab is one configured browse collection: either a sort order over the whole
// catalog or a genre with its match needles.
type Tab struct {
	Key     string
	Order   catalog.Order
	Needles []string
}

// Store is the catalog access the paginator needs.
type Store interface {
	BrowsePage(ctx context.Context, order catalog.Order, limit, offset int) ([]*catalog.Title, error)
	TitlesByGenre(ctx context.Context, needles []string, limit, offset int) ([]*catalog.Title, error)
}

// Page is the browse response shape.
type Page struct {
	Tab      string      `json:"tab"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	HasMore  bool        `json:"has_more"`
	Items    []card.Card `json:"items"`
}

// Paginator pages through the configured tabs. Pages are assembled per
// request; the probe row, not a stored count, decides has_more.
type Paginator struct {
	store    Store
	cards    *card.Builder
	tabs     map[string]Tab
	pageSize int
}

// New creates a paginator over a closed tab set.
func New(store Store, cards *card.Builder, tabs []Tab, pageSize int) *Paginator {
	m := make(map[string]Tab, len(tabs))
	for _, t := range tabs {
		m[t.Key] = t
	}
	return &Paginator{store: store, cards: cards, tabs: m, pageSize: pageSize}
}

// GetPage returns one page of a tab. page is 1-indexed and must be positive;
// the API boundary rejects everything else before calling here. An unknown
// tab yields an empty page, not an error. Pages beyond the end yield an empty
// item list with has_more false.
func (p *Paginator) GetPage(ctx context.Context, tab string, page int, tag string) (*Page, error) {
	out := &Page{Tab: tab, Page: page, PageSize: p.pageSize, Items: []card.Card{}}

	t, ok := p.tabs[tab]
	if !ok {
		return out, nil
	}

	offset := (page - 1) * p.pageSize
	limit := p.pageSize + 1 // probe one past the page to decide has_more

	var titles []*catalog.Title
	var err error
	if len(t.Needles) > 0 {
		titles, err = p.store.TitlesByGenre(ctx, t.Needles, limit, offset)
	} else {
		titles, err = p.store.BrowsePage(ctx, t.Order, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("browse %s page %d: %w", tab, page, err)
	}

	if len(titles) > p.pageSize {
		out.HasMore = true
		titles = titles[:p.pageSize]
	}
	cards, err := p.cards.LocalizedAll(ctx, titles, tag, false)
	if err != nil {
		return nil, err
	}
	out.Items = cards
	return out, nil
}

var _ Store = (*catalog.Store)(nil)
