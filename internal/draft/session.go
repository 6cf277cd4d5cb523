// Package draft holds the in-progress composition of each owner.
package draft

import (
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/postkey/internal/model"
)

type State int

const (
	Idle State = iota
	AwaitingContent
	AwaitingButtons
	AwaitingSavedButtonEditText
	AwaitingSavedButtonEditURL
	AwaitingNewButtonText
	AwaitingNewButtonURL
)

var stateNames = map[State]string{
	Idle:                        "idle",
	AwaitingContent:             "awaiting_content",
	AwaitingButtons:             "awaiting_buttons",
	AwaitingSavedButtonEditText: "awaiting_saved_button_edit_text",
	AwaitingSavedButtonEditURL:  "awaiting_saved_button_edit_url",
	AwaitingNewButtonText:       "awaiting_new_button_text",
	AwaitingNewButtonURL:        "awaiting_new_button_url",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// InDialog reports whether the state belongs to one of the saved-button dialogs.
func (s State) InDialog() bool {
	switch s {
	case AwaitingSavedButtonEditText, AwaitingSavedButtonEditURL, AwaitingNewButtonText, AwaitingNewButtonURL:
		return true
	}
	return false
}

type Session struct {
	ID    uuid.UUID
	Owner model.OwnerID
	State State

	Body      string
	Media     model.Media
	Committed []model.Row

	// Selection keeps picker order. It never holds a button that is already in Committed.
	Selection []model.Button

	EditingID    model.SavedButtonID
	PendingLabel string
	// ResumeState is where a saved-button dialog returns to.
	ResumeState State

	UpdatedAt time.Time
}

// NewIdle returns an empty session for owner. It has no ID until a post is started.
func NewIdle(owner model.OwnerID) *Session {
	return &Session{Owner: owner, State: Idle}
}

// Start discards whatever the owner had and begins a new post.
func Start(owner model.OwnerID, now time.Time) *Session {
	return &Session{
		ID:        uuid.New(),
		Owner:     owner,
		State:     AwaitingContent,
		UpdatedAt: now,
	}
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Committed = model.CloneRows(s.Committed)
	if s.Selection != nil {
		c.Selection = append([]model.Button(nil), s.Selection...)
	}
	return &c
}

// Active reports whether a post is being composed.
func (s *Session) Active() bool {
	return s != nil && s.ID != uuid.Nil
}

func (s *Session) SetContent(body string, media model.Media) {
	s.Body = body
	s.Media = media
	s.State = AwaitingButtons
}

// AppendRows commits rows and drops any selected button they now contain.
func (s *Session) AppendRows(rows []model.Row) {
	s.Committed = append(s.Committed, model.CloneRows(rows)...)

	if len(s.Selection) == 0 {
		return
	}
	kept := make([]model.Button, 0, len(s.Selection))
	for _, b := range s.Selection {
		if !s.IsCommitted(b) {
			kept = append(kept, b)
		}
	}
	s.Selection = kept
}

func (s *Session) IsCommitted(b model.Button) bool {
	return model.ContainsButton(s.Committed, b)
}

func (s *Session) IsSelected(b model.Button) bool {
	return s.selectedIndex(b) >= 0
}

func (s *Session) selectedIndex(b model.Button) int {
	for i, sel := range s.Selection {
		if sel == b {
			return i
		}
	}
	return -1
}

// Toggle flips b in the selection and reports whether it is now selected.
// Callers must check IsCommitted first.
func (s *Session) Toggle(b model.Button) bool {
	if i := s.selectedIndex(b); i >= 0 {
		s.Selection = append(s.Selection[:i:i], s.Selection[i+1:]...)
		return false
	}
	s.Selection = append(s.Selection, b)
	return true
}

// ApplySelection moves every selected button into Committed as its own row.
func (s *Session) ApplySelection() []model.Button {
	moved := s.Selection
	for _, b := range moved {
		s.Committed = append(s.Committed, model.Row{b})
	}
	s.Selection = nil
	return moved
}

func (s *Session) ClearSelection() {
	s.Selection = nil
}

// BeginDialog switches to a saved-button dialog and remembers where to return.
func (s *Session) BeginDialog(state State, editing model.SavedButtonID) {
	if !s.State.InDialog() {
		s.ResumeState = s.State
	}
	s.State = state
	s.EditingID = editing
	s.PendingLabel = ""
}

// EndDialog leaves a saved-button dialog.
func (s *Session) EndDialog() {
	s.State = s.ResumeState
	s.ResumeState = Idle
	s.EditingID = 0
	s.PendingLabel = ""
}

func (s *Session) Renderable() model.RenderablePost {
	return model.RenderablePost{
		Body:    s.Body,
		Buttons: model.CloneRows(s.Committed),
		Media:   s.Media,
	}
}
