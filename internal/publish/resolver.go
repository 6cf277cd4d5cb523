// Package publish turns stored templates back into render-ready posts.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/postkey/internal/metrics"
	"github.com/debemdeboas/postkey/internal/model"
	"github.com/debemdeboas/postkey/internal/repository"
)

var publishLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	publishLogger = l
}

type TemplateReader interface {
	Get(ctx context.Context, key model.TemplateKey) (*model.Template, error)
	ListByOwner(ctx context.Context, owner model.OwnerID, limit int) ([]model.TemplateSummary, error)
}

type Resolver struct {
	templates TemplateReader
	// recentLimit bounds the fallback menu shown for an empty key.
	recentLimit int
}

func NewResolver(templates TemplateReader, recentLimit int) *Resolver {
	return &Resolver{templates: templates, recentLimit: recentLimit}
}

// Resolve returns the stored post for key, or repository.ErrNotFound. Any
// owner can resolve any key.
func (r *Resolver) Resolve(ctx context.Context, raw string) (model.RenderablePost, error) {
	key := repository.NormalizeKey(raw)
	if !repository.IsWellFormedKey(key) {
		metrics.InlineLookups.WithLabelValues("malformed").Inc()
		return model.RenderablePost{}, repository.ErrNotFound
	}

	tpl, err := r.templates.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.InlineLookups.WithLabelValues("not_found").Inc()
		publishLogger.Debug().Str("key", string(key)).Msg("Lookup missed")
		return model.RenderablePost{}, repository.ErrNotFound
	}
	if err != nil {
		metrics.InlineLookups.WithLabelValues("error").Inc()
		return model.RenderablePost{}, fmt.Errorf("error resolving %s: %w", key, err)
	}

	metrics.InlineLookups.WithLabelValues("hit").Inc()
	return tpl.Renderable(), nil
}

// Recent is the fallback for an empty lookup: the owner's newest templates.
func (r *Resolver) Recent(ctx context.Context, owner model.OwnerID) ([]model.RenderablePost, error) {
	summaries, err := r.templates.ListByOwner(ctx, owner, r.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing recent templates: %w", err)
	}

	posts := make([]model.RenderablePost, 0, len(summaries))
	for _, s := range summaries {
		tpl, err := r.templates.Get(ctx, s.Key)
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted between the listing and the load.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", s.Key, err)
		}
		posts = append(posts, tpl.Renderable())
	}

	metrics.InlineLookups.WithLabelValues("recent").Inc()
	return posts, nil
}
