package controller

import "github.com/debemdeboas/postkey/internal/model"

// Effect is something the transport has to show. Presentation is up to the
// transport; effects only carry data.
type Effect interface {
	Recipient() model.OwnerID
}

// Action is a tappable choice attached to a message. Tapping it delivers
// Event on behalf of the tapping owner.
type Action struct {
	Label string
	Event Event
}

// Preview shows the draft as it would be published.
type Preview struct {
	To   model.OwnerID
	Post model.RenderablePost
}

type Message struct {
	To      model.OwnerID
	Text    string
	Actions []Action
}

// KeyIssued reports a successful commit.
type KeyIssued struct {
	To    model.OwnerID
	Key   model.TemplateKey
	Title string
}

type NotFound struct {
	To  model.OwnerID
	Key model.TemplateKey
}

// Resolved answers a lookup. Fallback is set when Posts are the owner's
// recent templates rather than a match for a key.
type Resolved struct {
	To       model.OwnerID
	Posts    []model.RenderablePost
	Fallback bool
}

func (e Preview) Recipient() model.OwnerID   { return e.To }
func (e Message) Recipient() model.OwnerID   { return e.To }
func (e KeyIssued) Recipient() model.OwnerID { return e.To }
func (e NotFound) Recipient() model.OwnerID  { return e.To }
func (e Resolved) Recipient() model.OwnerID  { return e.To }
