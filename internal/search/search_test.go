package search

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/lang"
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

func newEngine(t *testing.T, db *sql.DB) *Engine {
	t.Helper()
	store := catalog.NewStore(db)
	loc := lang.NewLocalizer(store)
	return New(store, loc, card.NewBuilder(loc))
}

func insertMovie(t *testing.T, db *sql.DB, id int64, name string, rating, popularity float64) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO titles (id, kind, name, rating, popularity) VALUES (?, 'movie', ?, ?, ?)",
		id, name, rating, popularity)
	require.NoError(t, err)
}

func TestEngine_ExactBeatsSubstring(t *testing.T) {
	db := setupTestDB(t)
	// The substring match is more popular and better rated; exact still wins.
	insertMovie(t, db, 1, "Batman", 6.0, 10)
	insertMovie(t, db, 2, "The Batman Returns", 9.5, 90)
	e := newEngine(t, db)

	res, err := e.Search(context.Background(), "batman", "en")
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "Batman", res.Results[0].Name)
	assert.Equal(t, "The Batman Returns", res.Results[1].Name)
}

func TestEngine_PrefixBeatsSubstring(t *testing.T) {
	db := setupTestDB(t)
	insertMovie(t, db, 1, "Batman Begins", 5.0, 10)
	insertMovie(t, db, 2, "The Batman", 9.0, 90)
	e := newEngine(t, db)

	res, err := e.Search(context.Background(), "batman", "en")
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "Batman Begins", res.Results[0].Name)
}

func TestEngine_TieBreakRatingThenID(t *testing.T) {
	db := setupTestDB(t)
	insertMovie(t, db, 3, "Batman Forever", 7.0, 10)
	insertMovie(t, db, 1, "Batman Begins", 7.0, 10)
	insertMovie(t, db, 2, "Batman Returns", 8.0, 10)
	e := newEngine(t, db)

	res, err := e.Search(context.Background(), "batman", "en")
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "Batman Returns", res.Results[0].Name)
	assert.Equal(t, "Batman Begins", res.Results[1].Name)
	assert.Equal(t, "Batman Forever", res.Results[2].Name)
}

func TestEngine_BoundedToTwelveAfterRanking(t *testing.T) {
	db := setupTestDB(t)
	// 20 substring matches plus one exact match with the worst rating.
	for i := int64(1); i <= 20; i++ {
		insertMovie(t, db, i, fmt.Sprintf("Batman Story %d", i), 8.0, float64(i))
	}
	insertMovie(t, db, 21, "Batman", 1.0, 0)
	e := newEngine(t, db)

	res, err := e.Search(context.Background(), "batman", "en")
	require.NoError(t, err)
	require.Len(t, res.Results, 12)
	// Truncation happens after ranking, so the exact match survives it.
	assert.Equal(t, "Batman", res.Results[0].Name)
}

func TestEngine_LocalizedNameMatches(t *testing.T) {
	db := setupTestDB(t)
	insertMovie(t, db, 1, "The Godfather", 9.2, 90)
	_, err := db.Exec(
		"INSERT INTO translations (kind, title_id, lang, name, overview) VALUES ('movie', 1, 'pt', 'O Poderoso Chefão', '')")
	require.NoError(t, err)
	e := newEngine(t, db)

	res, err := e.Search(context.Background(), "poderoso", "pt-br")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "O Poderoso Chefão", res.Results[0].Name)
}

func TestEngine_EmptyQuery(t *testing.T) {
	db := setupTestDB(t)
	insertMovie(t, db, 1, "Anything", 5.0, 10)
	e := newEngine(t, db)

	res, err := e.Search(context.Background(), "   ", "en")
	require.NoError(t, err)
	assert.Equal(t, "", res.Query)
	assert.Empty(t, res.Results)
}

func TestEngine_FuzzyFallback(t *testing.T) {
	db := setupTestDB(t)
	insertMovie(t, db, 1, "Inception", 8.8, 90)
	insertMovie(t, db, 2, "Unrelated", 5.0, 10)
	e := newEngine(t, db)

	// No substring match for the typo; the fuzzy pass finds it.
	res, err := e.Search(context.Background(), "inceptoin", "en")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Inception", res.Results[0].Name)
}

func TestEngine_NoMatchAtAll(t *testing.T) {
	db := setupTestDB(t)
	insertMovie(t, db, 1, "Inception", 8.8, 90)
	e := newEngine(t, db)

	res, err := e.Search(context.Background(), "zzzzqqqq", "en")
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, "zzzzqqqq", res.Query)
}
