package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store reads the catalog database. It never writes; the serving process
// shares the file with the ingestion pipeline.
type Store struct {
	db *sql.DB
}

// NewStore creates a read-only catalog store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// mapDBError converts driver errors to the package's sentinel errors.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

const titleCols = `id, kind, name, COALESCE(overview,''), COALESCE(release_date,''),
	rating, votes, popularity, runtime_min, poster, backdrop, logo, local_logo,
	COALESCE(providers,'')`

// titleColsT is titleCols qualified with the "t" alias for joined queries.
const titleColsT = `t.id, t.kind, t.name, COALESCE(t.overview,''), COALESCE(t.release_date,''),
	t.rating, t.votes, t.popularity, t.runtime_min, t.poster, t.backdrop, t.logo, t.local_logo,
	COALESCE(t.providers,'')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTitle(r rowScanner) (*Title, error) {
	t := &Title{}
	var rating sql.NullFloat64
	var runtime sql.NullInt64
	var poster, backdrop, logo, localLogo sql.NullString
	err := r.Scan(
		&t.ID, &t.Kind, &t.Name, &t.Overview, &t.ReleaseDate,
		&rating, &t.Votes, &t.Popularity, &runtime,
		&poster, &backdrop, &logo, &localLogo, &t.Providers,
	)
	if err != nil {
		return nil, err
	}
	if rating.Valid {
		t.Rating = &rating.Float64
	}
	if runtime.Valid {
		m := int(runtime.Int64)
		t.RuntimeMin = &m
	}
	t.Poster = nullableString(poster)
	t.Backdrop = nullableString(backdrop)
	t.Logo = nullableString(logo)
	t.LocalLogo = nullableString(localLogo)
	return t, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}

func (s *Store) queryTitles(ctx context.Context, query string, args ...any) ([]*Title, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, mapDBError(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// GetTitle retrieves one title by kind and id.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetTitle(ctx context.Context, kind Kind, id int64) (*Title, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+titleCols+" FROM titles WHERE kind = ? AND id = ?", kind, id)
	t, err := scanTitle(row)
	if err != nil {
		return nil, fmt.Errorf("get title %s/%d: %w", kind, id, mapDBError(err))
	}
	return t, nil
}

// LookupTitle resolves a bare id, checking movies before series.
// Ids are unique per kind, so a movie and a series may share one.
func (s *Store) LookupTitle(ctx context.Context, id int64) (*Title, error) {
	t, err := s.GetTitle(ctx, KindMovie, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.GetTitle(ctx, KindSeries, id)
}

// Translation retrieves the localized text record for an exact language tag.
// Returns ErrNotFound when the title has no translation in that language.
func (s *Store) Translation(ctx context.Context, kind Kind, id int64, lang string) (*Translation, error) {
	tr := &Translation{Lang: lang}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(name,''), COALESCE(overview,'')
		 FROM translations WHERE kind = ? AND title_id = ? AND lang = ?`,
		kind, id, lang,
	).Scan(&tr.Name, &tr.Overview)
	if err != nil {
		return nil, mapDBError(err)
	}
	return tr, nil
}

// Genres returns the genre tags of a title.
func (s *Store) Genres(ctx context.Context, kind Kind, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT genre FROM title_genres WHERE kind = ? AND title_id = ? ORDER BY genre",
		kind, id)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, mapDBError(err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// Cast returns the cast entries of a title, display order ascending.
func (s *Store) Cast(ctx context.Context, kind Kind, id int64, limit int) ([]CastMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, COALESCE(role,''), COALESCE(ord,9999), profile
		 FROM cast_members WHERE kind = ? AND title_id = ?
		 ORDER BY COALESCE(ord,9999) ASC LIMIT ?`,
		kind, id, limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []CastMember
	for rows.Next() {
		var m CastMember
		var profile sql.NullString
		if err := rows.Scan(&m.Name, &m.Role, &m.Order, &profile); err != nil {
			return nil, mapDBError(err)
		}
		m.Profile = nullableString(profile)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// Trailer returns the stored trailer reference for a title.
// Returns ErrNotFound when none exists.
func (s *Store) Trailer(ctx context.Context, kind Kind, id int64) (*Video, error) {
	v := &Video{}
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(site,''), COALESCE(key,'') FROM videos WHERE kind = ? AND title_id = ?",
		kind, id,
	).Scan(&v.Site, &v.Key)
	if err != nil {
		return nil, mapDBError(err)
	}
	return v, nil
}

// Seasons returns a series' seasons ordered by season number ascending.
func (s *Store) Seasons(ctx context.Context, seriesID int64) ([]Season, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT season, episode_count FROM seasons WHERE series_id = ? ORDER BY season ASC",
		seriesID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []Season
	for rows.Next() {
		var se Season
		if err := rows.Scan(&se.Season, &se.EpisodeCount); err != nil {
			return nil, mapDBError(err)
		}
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// Episodes returns one season's episodes ordered by episode number ascending.
func (s *Store) Episodes(ctx context.Context, seriesID int64, season int) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode, COALESCE(name,''), runtime_min, still, COALESCE(air_date,'')
		 FROM episodes WHERE series_id = ? AND season = ?
		 ORDER BY episode ASC`,
		seriesID, season)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []Episode
	for rows.Next() {
		var e Episode
		var runtime sql.NullInt64
		var still sql.NullString
		if err := rows.Scan(&e.Episode, &e.Name, &runtime, &still, &e.AirDate); err != nil {
			return nil, mapDBError(err)
		}
		if runtime.Valid {
			m := int(runtime.Int64)
			e.RuntimeMin = &m
		}
		e.Still = nullableString(still)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// LatestAiredSeason returns the regular season containing the most recently
// aired episode as of now. Specials (season 0) are ignored. Returns
// ErrNotFound when no regular episode has aired yet.
func (s *Store) LatestAiredSeason(ctx context.Context, seriesID int64, now time.Time) (int, error) {
	var season int
	err := s.db.QueryRowContext(ctx,
		`SELECT season FROM episodes
		 WHERE series_id = ? AND season > 0 AND COALESCE(air_date,'') <> '' AND air_date <= ?
		 GROUP BY season
		 ORDER BY MAX(air_date) DESC, season DESC
		 LIMIT 1`,
		seriesID, now.Format("2006-01-02"),
	).Scan(&season)
	if err != nil {
		return 0, mapDBError(err)
	}
	return season, nil
}

// Trending returns the snapshot list for a window in stored position order.
func (s *Store) Trending(ctx context.Context, w Window) ([]*Title, error) {
	return s.queryTitles(ctx,
		`SELECT `+titleColsT+`
		 FROM trending tr
		 JOIN titles t ON t.kind = tr.kind AND t.id = tr.title_id
		 WHERE tr.win = ?
		 ORDER BY tr.position ASC`,
		string(w))
}

// SeriesByProvider returns the most popular series attributed to any of the
// given provider needles.
func (s *Store) SeriesByProvider(ctx context.Context, needles []string, limit int) ([]*Title, error) {
	if len(needles) == 0 {
		return nil, nil
	}
	conds := make([]string, len(needles))
	args := make([]any, 0, len(needles)+1)
	for i, n := range needles {
		conds[i] = "COALESCE(providers,'') LIKE ?"
		args = append(args, "%"+n+"%")
	}
	args = append(args, limit)
	return s.queryTitles(ctx,
		`SELECT `+titleCols+` FROM titles
		 WHERE kind = 'series' AND (`+strings.Join(conds, " OR ")+`)
		 ORDER BY popularity DESC, id ASC LIMIT ?`,
		args...)
}

// TopRated returns the best-rated titles of one kind, rating descending with
// a stable id tie-break.
func (s *Store) TopRated(ctx context.Context, kind Kind, limit int) ([]*Title, error) {
	return s.queryTitles(ctx,
		`SELECT `+titleCols+` FROM titles WHERE kind = ?
		 ORDER BY COALESCE(rating,0) DESC, id ASC LIMIT ?`,
		kind, limit)
}

// TitlesByGenre returns titles tagged with any of the genre needles,
// popularity descending.
func (s *Store) TitlesByGenre(ctx context.Context, needles []string, limit, offset int) ([]*Title, error) {
	if len(needles) == 0 {
		return nil, nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(needles)), ",")
	args := make([]any, 0, len(needles)+2)
	for _, n := range needles {
		args = append(args, n)
	}
	args = append(args, limit, offset)
	return s.queryTitles(ctx,
		`SELECT DISTINCT `+titleColsT+`
		 FROM titles t
		 JOIN title_genres g ON g.kind = t.kind AND g.title_id = t.id
		 WHERE g.genre IN (`+ph+`)
		 ORDER BY t.popularity DESC, t.id ASC
		 LIMIT ? OFFSET ?`,
		args...)
}

// BrowsePage returns one page of the mixed movie/series collection in the
// given ordering. Callers probe limit = pageSize+1 to detect further pages.
func (s *Store) BrowsePage(ctx context.Context, order Order, limit, offset int) ([]*Title, error) {
	var by string
	switch order {
	case OrderRating:
		by = "COALESCE(rating,0) DESC, popularity DESC, id ASC"
	case OrderRecent:
		by = "COALESCE(release_date,'') DESC, popularity DESC, id ASC"
	default:
		by = "popularity DESC, id ASC"
	}
	return s.queryTitles(ctx,
		"SELECT "+titleCols+" FROM titles ORDER BY "+by+" LIMIT ? OFFSET ?",
		limit, offset)
}

// SearchCandidates returns titles whose stored or localized name contains the
// query, most popular first. Ranking happens in the search engine.
func (s *Store) SearchCandidates(ctx context.Context, query string, langs []string, limit int) ([]*Title, error) {
	like := "%" + query + "%"
	var trCond string
	args := []any{like}
	if len(langs) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?,", len(langs)), ",")
		trCond = ` OR EXISTS (
		   SELECT 1 FROM translations tr
		   WHERE tr.kind = t.kind AND tr.title_id = t.id
		     AND tr.lang IN (` + ph + `) AND tr.name LIKE ?)`
		for _, l := range langs {
			args = append(args, l)
		}
		args = append(args, like)
	}
	args = append(args, limit)
	return s.queryTitles(ctx,
		`SELECT `+titleColsT+` FROM titles t
		 WHERE t.name LIKE ?`+trCond+`
		 ORDER BY t.popularity DESC, t.id ASC LIMIT ?`,
		args...)
}

// NamesForLang returns the display names of the most popular titles, localized
// where a translation exists. Used by the fuzzy search fallback.
func (s *Store) NamesForLang(ctx context.Context, lang string, limit int) ([]NameRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.kind, COALESCE(NULLIF(tr.name,''), t.name), t.rating
		 FROM titles t
		 LEFT JOIN translations tr
		   ON tr.kind = t.kind AND tr.title_id = t.id AND tr.lang = ?
		 ORDER BY t.popularity DESC, t.id ASC LIMIT ?`,
		lang, limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []NameRef
	for rows.Next() {
		var n NameRef
		var rating sql.NullFloat64
		if err := rows.Scan(&n.ID, &n.Kind, &n.Name, &rating); err != nil {
			return nil, mapDBError(err)
		}
		if rating.Valid {
			n.Rating = &rating.Float64
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// Similar returns the titles recorded as similar to the given one, in stored
// position order.
func (s *Store) Similar(ctx context.Context, kind Kind, id int64) ([]*Title, error) {
	return s.queryTitles(ctx,
		`SELECT `+titleColsT+`
		 FROM similar si
		 JOIN titles t ON t.kind = si.rel_kind AND t.id = si.rel_id
		 WHERE si.kind = ? AND si.title_id = ?
		 ORDER BY si.position ASC`,
		kind, id)
}

