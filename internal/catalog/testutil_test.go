package catalog

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/kinolab/marquee/internal/schema"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(schema.DDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// titleRow holds the columns a fixture cares about; zero values insert NULLs
// for the nullable columns.
type titleRow struct {
	id         int64
	kind       Kind
	name       string
	overview   string
	date       string
	rating     *float64
	popularity float64
	runtime    *int
	poster     string
	logo       string
	localLogo  string
	providers  string
}

func insertTitle(t *testing.T, db *sql.DB, r titleRow) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO titles (id, kind, name, overview, release_date, rating, popularity,
		   runtime_min, poster, backdrop, logo, local_logo, providers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		r.id, r.kind, r.name, nullIfEmpty(r.overview), nullIfEmpty(r.date),
		r.rating, r.popularity, r.runtime,
		nullIfEmpty(r.poster), nullIfEmpty(r.logo), nullIfEmpty(r.localLogo),
		nullIfEmpty(r.providers),
	)
	if err != nil {
		t.Fatalf("insert title %d: %v", r.id, err)
	}
}

func insertTranslation(t *testing.T, db *sql.DB, kind Kind, id int64, lang, name, overview string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO translations (kind, title_id, lang, name, overview) VALUES (?, ?, ?, ?, ?)",
		kind, id, lang, name, overview)
	if err != nil {
		t.Fatalf("insert translation: %v", err)
	}
}

func insertTrending(t *testing.T, db *sql.DB, w Window, position int, kind Kind, id int64) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO trending (win, position, kind, title_id) VALUES (?, ?, ?, ?)",
		w, position, kind, id)
	if err != nil {
		t.Fatalf("insert trending: %v", err)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}
