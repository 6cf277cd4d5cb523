// Package repository persists templates and saved buttons.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/postkey/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrKeySpaceExhausted is returned when every key attempt collided.
	ErrKeySpaceExhausted = errors.New("could not allocate a unique template key")
	// ErrDuplicate is returned when an edit would make two saved buttons of
	// the same owner identical.
	ErrDuplicate = errors.New("saved button already exists")
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

type TemplateRepository interface {
	// Commit stores a new template under a freshly generated key.
	Commit(ctx context.Context, owner model.OwnerID, title, body string, buttons []model.Row, media model.Media) (model.TemplateKey, error)
	// Get returns ErrNotFound for unknown keys. Lookup is not owner-scoped.
	Get(ctx context.Context, key model.TemplateKey) (*model.Template, error)
	// ListByOwner returns newest first. A limit <= 0 means no limit.
	ListByOwner(ctx context.Context, owner model.OwnerID, limit int) ([]model.TemplateSummary, error)
	Delete(ctx context.Context, key model.TemplateKey, owner model.OwnerID) (bool, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type SavedButtonRepository interface {
	// Upsert inserts unless the owner already has the exact label/target pair.
	Upsert(ctx context.Context, owner model.OwnerID, label, target string) (bool, error)
	// UpsertAll upserts every button and returns how many were new.
	UpsertAll(ctx context.Context, owner model.OwnerID, buttons []model.Button) (int, error)
	Get(ctx context.Context, id model.SavedButtonID, owner model.OwnerID) (*model.SavedButton, error)
	// List returns newest first.
	List(ctx context.Context, owner model.OwnerID) ([]model.SavedButton, error)
	Update(ctx context.Context, id model.SavedButtonID, owner model.OwnerID, label, target string) (bool, error)
	Delete(ctx context.Context, id model.SavedButtonID, owner model.OwnerID) (bool, error)
}
