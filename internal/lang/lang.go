// Package lang handles language negotiation and localized text fallback.
package lang

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/language"

	"github.com/kinolab/marquee/internal/catalog"
)

// DefaultTag is the final fallback language.
const DefaultTag = "en"

// Normalize canonicalizes a language tag for use as a cache partition key:
// trimmed, case-folded, underscores treated as dashes. Unparseable or empty
// input normalizes to DefaultTag.
func Normalize(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	if s == "" {
		return DefaultTag
	}
	tag, err := language.Parse(s)
	if err != nil || tag == language.Und {
		return strings.ToLower(s)
	}
	return strings.ToLower(tag.String())
}

// Base returns the primary language subtag ("pt-br" -> "pt").
func Base(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}

// Negotiate picks the request language: an explicit query value wins when
// non-empty, else the preferred Accept-Language entry, else DefaultTag.
func Negotiate(queryLang, acceptLanguage string) string {
	if v := strings.TrimSpace(queryLang); v != "" {
		return Normalize(v)
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultTag
	}
	return Normalize(tags[0].String())
}

// TranslationSource looks up one localized text record by exact tag.
type TranslationSource interface {
	Translation(ctx context.Context, kind catalog.Kind, id int64, lang string) (*catalog.Translation, error)
}

// Localizer resolves localized text with a deterministic fallback chain:
// requested tag, its base language, then DefaultTag. Absence is not an error;
// callers fall back to the stored base text.
type Localizer struct {
	src TranslationSource
}

// NewLocalizer creates a Localizer over a translation source.
func NewLocalizer(src TranslationSource) *Localizer {
	return &Localizer{src: src}
}

// Resolve returns the best translation for a title, or nil when none of the
// chain languages has one.
func (l *Localizer) Resolve(ctx context.Context, kind catalog.Kind, id int64, tag string) (*catalog.Translation, error) {
	tag = Normalize(tag)
	chain := []string{tag}
	if b := Base(tag); b != tag {
		chain = append(chain, b)
	}
	if tag != DefaultTag && Base(tag) != DefaultTag {
		chain = append(chain, DefaultTag)
	}
	for _, lg := range chain {
		tr, err := l.src.Translation(ctx, kind, id, lg)
		if err == nil && tr.Name != "" {
			return tr, nil
		}
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}
