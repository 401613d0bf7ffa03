// Package card projects titles into the compact localized summary shape
// shared by list endpoints.
package card

import (
	"context"
	"unicode/utf8"

	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/lang"
)

// maxDescription clips card descriptions, matching the list payload budget.
const maxDescription = 240

// Card is the TitleCard projection. Computed on demand, never stored.
type Card struct {
	ID          int64        `json:"id"`
	Kind        catalog.Kind `json:"kind"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Year        *int         `json:"year"`
	Rating      *float64     `json:"rating"`
	Poster      *string      `json:"poster"`
	Backdrop    *string      `json:"backdrop"`
	Logo        *string      `json:"logo"`
}

// Build projects a title snapshot plus an already-resolved translation (nil
// when no language in the chain had one) into a Card. Pure function.
func Build(t *catalog.Title, tr *catalog.Translation, withDescription bool) Card {
	c := Card{
		ID:       t.ID,
		Kind:     t.Kind,
		Name:     t.Name,
		Year:     t.Year(),
		Rating:   t.Rating,
		Poster:   t.Poster,
		Backdrop: t.Backdrop,
		Logo:     pickLogo(t),
	}
	if tr != nil && tr.Name != "" {
		c.Name = tr.Name
	}
	if withDescription {
		over := t.Overview
		if tr != nil && tr.Overview != "" {
			over = tr.Overview
		}
		if s := clip(over); s != "" {
			c.Description = &s
		}
	}
	return c
}

// pickLogo applies the logo precedence: locally stored logo, else provider
// logo, else poster, else nil.
func pickLogo(t *catalog.Title) *string {
	if t.LocalLogo != nil {
		return t.LocalLogo
	}
	if t.Logo != nil {
		return t.Logo
	}
	return t.Poster
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxDescription {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxDescription]) + "…"
}

// Builder binds Build to a Localizer so aggregators can render cards in one
// call per title.
type Builder struct {
	loc *lang.Localizer
}

// NewBuilder creates a card builder.
func NewBuilder(loc *lang.Localizer) *Builder {
	return &Builder{loc: loc}
}

// Localized resolves the title's translation and builds the card.
func (b *Builder) Localized(ctx context.Context, t *catalog.Title, tag string, withDescription bool) (Card, error) {
	tr, err := b.loc.Resolve(ctx, t.Kind, t.ID, tag)
	if err != nil {
		return Card{}, err
	}
	return Build(t, tr, withDescription), nil
}

// LocalizedAll renders a card per title, preserving order.
func (b *Builder) LocalizedAll(ctx context.Context, titles []*catalog.Title, tag string, withDescription bool) ([]Card, error) {
	out := make([]Card, 0, len(titles))
	for _, t := range titles {
		c, err := b.Localized(ctx, t, tag, withDescription)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
