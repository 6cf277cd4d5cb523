// Package picker merges saved buttons chosen in the multi-select overlay into
// an owner's draft.
package picker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/postkey/internal/draft"
	"github.com/debemdeboas/postkey/internal/model"
	"github.com/debemdeboas/postkey/internal/repository"
)

var pickerLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	pickerLogger = l
}

type Outcome int

const (
	NotFound Outcome = iota
	AlreadyCommitted
	Added
	Removed
	Applied
	NothingSelected
	Cleared
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case AlreadyCommitted:
		return "already_committed"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Applied:
		return "applied"
	case NothingSelected:
		return "nothing_selected"
	case Cleared:
		return "cleared"
	}
	return "unknown"
}

// ButtonLookup is the part of the saved-button library the picker reads.
type ButtonLookup interface {
	Get(ctx context.Context, id model.SavedButtonID, owner model.OwnerID) (*model.SavedButton, error)
	List(ctx context.Context, owner model.OwnerID) ([]model.SavedButton, error)
}

// Engine mutates the draft store directly. Callers serialize calls per owner.
type Engine struct {
	buttons  ButtonLookup
	sessions draft.Store
}

func New(buttons ButtonLookup, sessions draft.Store) *Engine {
	return &Engine{buttons: buttons, sessions: sessions}
}

// Result is the outcome of a picker operation and the session it left behind.
type Result struct {
	Outcome Outcome
	Button  model.Button
	Moved   []model.Button
	Session *draft.Session
}

func (e *Engine) Toggle(ctx context.Context, owner model.OwnerID, id model.SavedButtonID) (Result, error) {
	sb, err := e.buttons.Get(ctx, id, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{Outcome: NotFound, Session: e.sessions.Get(owner)}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("error loading saved button: %w", err)
	}

	s := e.sessions.Get(owner)
	b := sb.Button()

	if s.IsCommitted(b) {
		return Result{Outcome: AlreadyCommitted, Button: b, Session: s}, nil
	}

	outcome := Removed
	if s.Toggle(b) {
		outcome = Added
	}
	e.sessions.Put(s)

	pickerLogger.Debug().
		Str("owner", string(owner)).
		Int64("button_id", int64(id)).
		Stringer("outcome", outcome).
		Int("selected", len(s.Selection)).
		Msg("Picker toggle")

	return Result{Outcome: outcome, Button: b, Session: s}, nil
}

func (e *Engine) Apply(owner model.OwnerID) Result {
	s := e.sessions.Get(owner)
	if len(s.Selection) == 0 {
		return Result{Outcome: NothingSelected, Session: s}
	}

	moved := s.ApplySelection()
	e.sessions.Put(s)

	pickerLogger.Debug().Str("owner", string(owner)).Int("moved", len(moved)).Msg("Picker applied")

	return Result{Outcome: Applied, Moved: moved, Session: s}
}

func (e *Engine) Clear(owner model.OwnerID) Result {
	s := e.sessions.Get(owner)
	if len(s.Selection) > 0 {
		s.ClearSelection()
		e.sessions.Put(s)
	}
	return Result{Outcome: Cleared, Session: s}
}

// Entry is one line of the picker view.
type Entry struct {
	ID        model.SavedButtonID
	Button    model.Button
	Selected  bool
	Committed bool
}

// View lists the owner's saved buttons marked against the current draft.
func (e *Engine) View(ctx context.Context, owner model.OwnerID) ([]Entry, error) {
	saved, err := e.buttons.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("error listing saved buttons: %w", err)
	}

	s := e.sessions.Get(owner)
	entries := make([]Entry, 0, len(saved))
	for _, sb := range saved {
		b := sb.Button()
		entries = append(entries, Entry{
			ID:        sb.ID,
			Button:    b,
			Selected:  s.IsSelected(b),
			Committed: s.IsCommitted(b),
		})
	}
	return entries, nil
}
