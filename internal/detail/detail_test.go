package detail

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/lang"
	"github.com/kinolab/marquee/internal/respcache"
	"github.com/kinolab/marquee/internal/schema"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(schema.DDL)
	require.NoError(t, err)
	return db
}

func newAssembler(t *testing.T, db *sql.DB) *Assembler {
	t.Helper()
	store := catalog.NewStore(db)
	loc := lang.NewLocalizer(store)
	return New(store, loc, card.NewBuilder(loc), respcache.New(), 72*time.Hour)
}

func exec(t *testing.T, db *sql.DB, q string, args ...any) {
	t.Helper()
	_, err := db.Exec(q, args...)
	require.NoError(t, err)
}

func seedMovie(t *testing.T, db *sql.DB) {
	t.Helper()
	exec(t, db, `INSERT INTO titles (id, kind, name, overview, release_date, rating, runtime_min, poster, logo)
	             VALUES (42, 'movie', 'Heat', 'A heist thriller.', '1995-12-15', 8.3, 170, '/heat.jpg', '/heat-logo.png')`)
	exec(t, db, "INSERT INTO title_genres (kind, title_id, genre) VALUES ('movie', 42, 'Crime')")
	exec(t, db, "INSERT INTO title_genres (kind, title_id, genre) VALUES ('movie', 42, 'Thriller')")
	exec(t, db, "INSERT INTO cast_members (kind, title_id, name, role, ord) VALUES ('movie', 42, 'Al Pacino', 'Vincent Hanna', 0)")
	exec(t, db, "INSERT INTO cast_members (kind, title_id, name, role, ord) VALUES ('movie', 42, 'Robert De Niro', 'Neil McCauley', 1)")
	exec(t, db, "INSERT INTO videos (kind, title_id, site, key) VALUES ('movie', 42, 'YouTube', 'abc123')")
}

func TestAssembler_Movie(t *testing.T) {
	db := setupTestDB(t)
	seedMovie(t, db)
	asm := newAssembler(t, db)

	p, err := asm.Title(context.Background(), 42, "en")
	require.NoError(t, err)

	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, catalog.KindMovie, p.Kind)
	assert.Equal(t, "Heat", p.Name)
	assert.Equal(t, "A heist thriller.", p.Description)
	assert.Equal(t, []string{"Crime", "Thriller"}, p.Tags)
	require.NotNil(t, p.Year)
	assert.Equal(t, 1995, *p.Year)
	require.NotNil(t, p.RuntimeMin)
	assert.Equal(t, 170, *p.RuntimeMin)

	require.NotNil(t, p.TrailerYouTube)
	assert.Equal(t, "abc123", p.TrailerYouTube.Key)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", p.TrailerYouTube.URL)

	require.Len(t, p.Cast, 2)
	assert.Equal(t, "Al Pacino", p.Cast[0].Name)
	assert.Equal(t, "Vincent Hanna", p.Cast[0].Role)

	// Movies carry no season fields at all.
	assert.Nil(t, p.Seasons)
	assert.Nil(t, p.PrefetchSeason)
	assert.Nil(t, p.PrefetchEpisodes)
}

func TestAssembler_NotFound(t *testing.T) {
	db := setupTestDB(t)
	asm := newAssembler(t, db)

	_, err := asm.Title(context.Background(), 999999, "en")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestAssembler_Localized(t *testing.T) {
	db := setupTestDB(t)
	seedMovie(t, db)
	exec(t, db, "INSERT INTO translations (kind, title_id, lang, name, overview) VALUES ('movie', 42, 'pt', 'Fogo Contra Fogo', 'Um thriller de assalto.')")
	asm := newAssembler(t, db)

	p, err := asm.Title(context.Background(), 42, "pt-BR")
	require.NoError(t, err)
	assert.Equal(t, "Fogo Contra Fogo", p.Name)
	assert.Equal(t, "Um thriller de assalto.", p.Description)
}

func TestAssembler_NonYouTubeTrailerDropped(t *testing.T) {
	db := setupTestDB(t)
	exec(t, db, "INSERT INTO titles (id, kind, name) VALUES (1, 'movie', 'M')")
	exec(t, db, "INSERT INTO videos (kind, title_id, site, key) VALUES ('movie', 1, 'Vimeo', 'xyz')")
	asm := newAssembler(t, db)

	p, err := asm.Title(context.Background(), 1, "en")
	require.NoError(t, err)
	assert.Nil(t, p.TrailerYouTube)
}

func seedSeries(t *testing.T, db *sql.DB) {
	t.Helper()
	exec(t, db, "INSERT INTO titles (id, kind, name, overview) VALUES (7, 'series', 'The Wire', 'Baltimore.')")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (7, 1, 2)")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (7, 2, 2)")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (7, 3, 1)")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, runtime_min, air_date) VALUES (7, 1, 1, 'The Target', 60, '2002-06-02')")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, runtime_min, air_date) VALUES (7, 1, 2, 'The Detail', 58, '2002-06-09')")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, runtime_min, air_date) VALUES (7, 2, 1, 'Ebb Tide', 59, '2003-06-01')")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, runtime_min, air_date) VALUES (7, 2, 2, 'Collateral Damage', 59, '2003-06-08')")
	// Season 3 has not aired yet.
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, air_date) VALUES (7, 3, 1, 'Future', '2099-01-01')")
}

func TestAssembler_SeriesPrefetchMostRecentlyAired(t *testing.T) {
	db := setupTestDB(t)
	seedSeries(t, db)
	asm := newAssembler(t, db)
	asm.SetClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	p, err := asm.Title(context.Background(), 7, "en")
	require.NoError(t, err)

	require.Len(t, p.Seasons, 3)
	assert.Equal(t, SeasonEntry{Season: 1, EpisodeCount: 2}, p.Seasons[0])
	assert.Equal(t, SeasonEntry{Season: 3, EpisodeCount: 1}, p.Seasons[2])

	// Season 2 aired most recently as of the pinned clock.
	require.NotNil(t, p.PrefetchSeason)
	assert.Equal(t, 2, *p.PrefetchSeason)
	require.Len(t, p.PrefetchEpisodes, 2)
	assert.Equal(t, "Ebb Tide", p.PrefetchEpisodes[0].Name)
	assert.Equal(t, 1, p.PrefetchEpisodes[0].Episode)
}

func TestAssembler_SeriesPrefetchNothingAired(t *testing.T) {
	db := setupTestDB(t)
	exec(t, db, "INSERT INTO titles (id, kind, name) VALUES (8, 'series', 'Upcoming')")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (8, 1, 1)")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, air_date) VALUES (8, 1, 1, 'Pilot', '2099-06-01')")
	asm := newAssembler(t, db)

	p, err := asm.Title(context.Background(), 8, "en")
	require.NoError(t, err)
	require.NotNil(t, p.PrefetchSeason)
	assert.Equal(t, 1, *p.PrefetchSeason)
	require.Len(t, p.PrefetchEpisodes, 1)
	assert.Equal(t, "Pilot", p.PrefetchEpisodes[0].Name)
}

func TestAssembler_SpecialsNeverPrefetched(t *testing.T) {
	db := setupTestDB(t)
	exec(t, db, "INSERT INTO titles (id, kind, name) VALUES (9, 'series', 'Event Horizon')")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (9, 0, 1)")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (9, 1, 1)")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, air_date) VALUES (9, 1, 1, 'Finale', '2025-05-08')")
	// A holiday special airs after the finale but must not win the prefetch.
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, air_date) VALUES (9, 0, 1, 'Holiday Special', '2025-12-25')")
	asm := newAssembler(t, db)
	asm.SetClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	p, err := asm.Title(context.Background(), 9, "en")
	require.NoError(t, err)
	require.Len(t, p.Seasons, 2)
	require.NotNil(t, p.PrefetchSeason)
	assert.Equal(t, 1, *p.PrefetchSeason)
	require.Len(t, p.PrefetchEpisodes, 1)
	assert.Equal(t, "Finale", p.PrefetchEpisodes[0].Name)
}

func TestAssembler_SpecialsSkippedInFallback(t *testing.T) {
	db := setupTestDB(t)
	exec(t, db, "INSERT INTO titles (id, kind, name) VALUES (10, 'series', 'Not Yet Aired')")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (10, 0, 1)")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (10, 1, 1)")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, air_date) VALUES (10, 0, 1, 'Preview Special', '2099-01-01')")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, air_date) VALUES (10, 1, 1, 'Pilot', '2099-06-01')")
	asm := newAssembler(t, db)

	p, err := asm.Title(context.Background(), 10, "en")
	require.NoError(t, err)
	require.NotNil(t, p.PrefetchSeason)
	assert.Equal(t, 1, *p.PrefetchSeason)
	require.Len(t, p.PrefetchEpisodes, 1)
	assert.Equal(t, "Pilot", p.PrefetchEpisodes[0].Name)
}

func TestAssembler_OnlySpecialsNoPrefetch(t *testing.T) {
	db := setupTestDB(t)
	exec(t, db, "INSERT INTO titles (id, kind, name) VALUES (11, 'series', 'Specials Only')")
	exec(t, db, "INSERT INTO seasons (series_id, season, episode_count) VALUES (11, 0, 2)")
	exec(t, db, "INSERT INTO episodes (series_id, season, episode, name, air_date) VALUES (11, 0, 1, 'Special', '2020-01-01')")
	asm := newAssembler(t, db)

	p, err := asm.Title(context.Background(), 11, "en")
	require.NoError(t, err)
	require.Len(t, p.Seasons, 1)
	assert.Nil(t, p.PrefetchSeason)
	assert.Nil(t, p.PrefetchEpisodes)
}

func TestAssembler_SimilarCachedPerTitle(t *testing.T) {
	db := setupTestDB(t)
	seedMovie(t, db)
	exec(t, db, "INSERT INTO titles (id, kind, name) VALUES (43, 'movie', 'Ronin')")
	exec(t, db, "INSERT INTO similar (kind, title_id, position, rel_kind, rel_id) VALUES ('movie', 42, 1, 'movie', 43)")

	store := catalog.NewStore(db)
	loc := lang.NewLocalizer(store)
	cache := respcache.New()
	asm := New(store, loc, card.NewBuilder(loc), cache, 72*time.Hour)

	p, err := asm.Title(context.Background(), 42, "en")
	require.NoError(t, err)
	require.Len(t, p.Similar, 1)
	assert.Equal(t, "Ronin", p.Similar[0].Name)

	_, ok := cache.ComputedAt("similar:movie:42:en")
	assert.True(t, ok)

	// A second request reuses the cached list even after the row is gone.
	exec(t, db, "DELETE FROM similar")
	p, err = asm.Title(context.Background(), 42, "en")
	require.NoError(t, err)
	assert.Len(t, p.Similar, 1)
}
