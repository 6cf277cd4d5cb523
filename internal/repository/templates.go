package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/debemdeboas/postkey/internal/db"
	"github.com/debemdeboas/postkey/internal/metrics"
	"github.com/debemdeboas/postkey/internal/model"
	"github.com/debemdeboas/postkey/internal/util"
	"github.com/debemdeboas/postkey/internal/util/compression"
)

const DefaultKeyAttempts = 5

type DBTemplateRepository struct { // implements TemplateRepository
	db         db.DB
	compressor compression.Compressor

	newKey   KeyGenerator
	attempts int
	now      func() time.Time
}

type TemplateOption func(*DBTemplateRepository)

func WithCompressor(c compression.Compressor) TemplateOption {
	return func(r *DBTemplateRepository) { r.compressor = c }
}

func WithKeyGenerator(g KeyGenerator) TemplateOption {
	return func(r *DBTemplateRepository) { r.newKey = g }
}

// WithKeyAttempts bounds the generate-check-insert loop of Commit.
func WithKeyAttempts(n int) TemplateOption {
	return func(r *DBTemplateRepository) {
		if n > 0 {
			r.attempts = n
		}
	}
}

func WithClock(now func() time.Time) TemplateOption {
	return func(r *DBTemplateRepository) { r.now = now }
}

func NewDBTemplateRepository(db db.DB, opts ...TemplateOption) *DBTemplateRepository {
	r := &DBTemplateRepository{
		db: db,

		compressor: compression.ZstdCompressor{},
		newKey:     GenerateKey,
		attempts:   DefaultKeyAttempts,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DBTemplateRepository) Commit(
	ctx context.Context,
	owner model.OwnerID,
	title, body string,
	buttons []model.Row,
	media model.Media,
) (model.TemplateKey, error) {
	if buttons == nil {
		buttons = []model.Row{}
	}
	encodedButtons, err := json.Marshal(buttons)
	if err != nil {
		return "", fmt.Errorf("error encoding buttons: %w", err)
	}

	var compressed []byte
	if body != "" {
		compressed, err = r.compressor.Compress([]byte(body))
		if err != nil {
			return "", fmt.Errorf("error compressing body: %w", err)
		}
	}

	createdAt := r.now().UTC()

	for attempt := 1; attempt <= r.attempts; attempt++ {
		key, err := r.newKey()
		if err != nil {
			return "", err
		}

		taken, err := r.exists(ctx, key)
		if err != nil {
			return "", err
		}
		if taken {
			r.collision(key, attempt)
			continue
		}

		_, err = r.db.Exec(ctx,
			`INSERT INTO templates (key, owner, title, body, buttons, media_kind, media_ref, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(key), string(owner), title, compressed, string(encodedButtons), string(media.Kind), media.Ref, createdAt.UnixNano(),
		)
		if isConstraintViolation(err) {
			// Taken between the lookup and the insert.
			r.collision(key, attempt)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("error saving template: %w", err)
		}

		metrics.TemplatesCommitted.Inc()
		repoLogger.Info().
			Str("key", string(key)).
			Str("owner", string(owner)).
			Str("body_hash", util.ContentHashString(body)).
			Int("rows", len(buttons)).
			Str("media_kind", string(media.Kind)).
			Msg("Template committed")

		return key, nil
	}

	repoLogger.Error().Str("owner", string(owner)).Int("attempts", r.attempts).Msg("Key space exhausted")
	return "", ErrKeySpaceExhausted
}

func (r *DBTemplateRepository) collision(key model.TemplateKey, attempt int) {
	metrics.KeyCollisions.Inc()
	repoLogger.Warn().Str("key", string(key)).Int("attempt", attempt).Msg("Template key collision, retrying")
}

func (r *DBTemplateRepository) exists(ctx context.Context, key model.TemplateKey) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM templates WHERE key = ?`, string(key)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking key: %w", err)
	}
	return true, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func (r *DBTemplateRepository) Get(ctx context.Context, key model.TemplateKey) (*model.Template, error) {
	row := r.db.QueryRow(ctx,
		`SELECT key, owner, title, body, buttons, media_kind, media_ref, created_at FROM templates WHERE key = ?`,
		string(key),
	)

	var (
		tpl        model.Template
		compressed []byte
		buttons    string
		mediaKind  string
		createdAt  int64
	)
	err := row.Scan(&tpl.Key, &tpl.Owner, &tpl.Title, &compressed, &buttons, &mediaKind, &tpl.Media.Ref, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning template: %w", err)
	}

	if len(compressed) > 0 {
		body, err := r.compressor.Decompress(compressed)
		if err != nil {
			return nil, fmt.Errorf("error decompressing body: %w", err)
		}
		tpl.Body = string(body)
	}

	if err := json.Unmarshal([]byte(buttons), &tpl.Buttons); err != nil {
		return nil, fmt.Errorf("error decoding buttons: %w", err)
	}
	if tpl.Buttons == nil {
		tpl.Buttons = []model.Row{}
	}

	tpl.Media.Kind = model.MediaKind(mediaKind)
	tpl.CreatedAt = time.Unix(0, createdAt).UTC()

	return &tpl, nil
}

func (r *DBTemplateRepository) ListByOwner(ctx context.Context, owner model.OwnerID, limit int) ([]model.TemplateSummary, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	rows, err := r.db.Query(ctx,
		`SELECT key, title, created_at FROM templates WHERE owner = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		string(owner), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying templates: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.TemplateSummary, 0)
	for rows.Next() {
		var s model.TemplateSummary
		var createdAt int64
		if err := rows.Scan(&s.Key, &s.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning template: %w", err)
		}
		s.CreatedAt = time.Unix(0, createdAt).UTC()
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (r *DBTemplateRepository) Delete(ctx context.Context, key model.TemplateKey, owner model.OwnerID) (bool, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM templates WHERE key = ? AND owner = ?`, string(key), string(owner))
	if err != nil {
		return false, fmt.Errorf("error deleting template: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error deleting template: %w", err)
	}

	if n > 0 {
		repoLogger.Info().Str("key", string(key)).Str("owner", string(owner)).Msg("Template deleted")
	}
	return n > 0, nil
}

// PurgeOlderThan deletes templates created before now-age.
func (r *DBTemplateRepository) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-age)

	res, err := r.db.Exec(ctx, `DELETE FROM templates WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("error purging templates: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error purging templates: %w", err)
	}

	metrics.TemplatesPurged.Add(float64(n))
	repoLogger.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("Retention sweep finished")

	return n, nil
}
