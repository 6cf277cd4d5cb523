package controller

import "github.com/debemdeboas/postkey/internal/model"

// Event is something an owner did. The concrete types below are the only
// implementations; Handle switches on them.
type Event interface {
	Owner() model.OwnerID
	Kind() string
}

type StartNewPost struct{ From model.OwnerID }

// TextSubmitted is free input whose meaning depends on the draft state.
type TextSubmitted struct {
	From  model.OwnerID
	Text  string
	Media model.Media
}

type ContentSubmitted struct {
	From  model.OwnerID
	Text  string
	Media model.Media
}

type ButtonTextSubmitted struct {
	From model.OwnerID
	Text string
}

type OpenPicker struct{ From model.OwnerID }

type PickerToggle struct {
	From model.OwnerID
	ID   model.SavedButtonID
}

type PickerApply struct{ From model.OwnerID }

type PickerClear struct{ From model.OwnerID }

type PickerBack struct{ From model.OwnerID }

type Done struct{ From model.OwnerID }

type Cancel struct{ From model.OwnerID }

type Help struct{ From model.OwnerID }

type ListTemplates struct{ From model.OwnerID }

type DeleteTemplate struct {
	From model.OwnerID
	Key  model.TemplateKey
}

type ListSavedButtons struct{ From model.OwnerID }

type AddSavedButton struct {
	From   model.OwnerID
	Label  string
	Target string
}

type BeginNewSavedButton struct{ From model.OwnerID }

type EditSavedButton struct {
	From   model.OwnerID
	ID     model.SavedButtonID
	Label  string
	Target string
}

type BeginEditSavedButton struct {
	From model.OwnerID
	ID   model.SavedButtonID
}

type DeleteSavedButton struct {
	From model.OwnerID
	ID   model.SavedButtonID
}

// ResolveByKey looks a template up. An empty key asks for the owner's recent
// templates instead.
type ResolveByKey struct {
	From model.OwnerID
	Key  string
}

func (e StartNewPost) Owner() model.OwnerID         { return e.From }
func (e TextSubmitted) Owner() model.OwnerID        { return e.From }
func (e ContentSubmitted) Owner() model.OwnerID     { return e.From }
func (e ButtonTextSubmitted) Owner() model.OwnerID  { return e.From }
func (e OpenPicker) Owner() model.OwnerID           { return e.From }
func (e PickerToggle) Owner() model.OwnerID         { return e.From }
func (e PickerApply) Owner() model.OwnerID          { return e.From }
func (e PickerClear) Owner() model.OwnerID          { return e.From }
func (e PickerBack) Owner() model.OwnerID           { return e.From }
func (e Done) Owner() model.OwnerID                 { return e.From }
func (e Cancel) Owner() model.OwnerID               { return e.From }
func (e Help) Owner() model.OwnerID                 { return e.From }
func (e ListTemplates) Owner() model.OwnerID        { return e.From }
func (e DeleteTemplate) Owner() model.OwnerID       { return e.From }
func (e ListSavedButtons) Owner() model.OwnerID     { return e.From }
func (e AddSavedButton) Owner() model.OwnerID       { return e.From }
func (e BeginNewSavedButton) Owner() model.OwnerID  { return e.From }
func (e EditSavedButton) Owner() model.OwnerID      { return e.From }
func (e BeginEditSavedButton) Owner() model.OwnerID { return e.From }
func (e DeleteSavedButton) Owner() model.OwnerID    { return e.From }
func (e ResolveByKey) Owner() model.OwnerID         { return e.From }

func (StartNewPost) Kind() string         { return "start_new_post" }
func (TextSubmitted) Kind() string        { return "text_submitted" }
func (ContentSubmitted) Kind() string     { return "content_submitted" }
func (ButtonTextSubmitted) Kind() string  { return "button_text_submitted" }
func (OpenPicker) Kind() string           { return "open_picker" }
func (PickerToggle) Kind() string         { return "picker_toggle" }
func (PickerApply) Kind() string          { return "picker_apply" }
func (PickerClear) Kind() string          { return "picker_clear" }
func (PickerBack) Kind() string           { return "picker_back" }
func (Done) Kind() string                 { return "done" }
func (Cancel) Kind() string               { return "cancel" }
func (Help) Kind() string                 { return "help" }
func (ListTemplates) Kind() string        { return "list_templates" }
func (DeleteTemplate) Kind() string       { return "delete_template" }
func (ListSavedButtons) Kind() string     { return "list_saved_buttons" }
func (AddSavedButton) Kind() string       { return "add_saved_button" }
func (BeginNewSavedButton) Kind() string  { return "begin_new_saved_button" }
func (EditSavedButton) Kind() string      { return "edit_saved_button" }
func (BeginEditSavedButton) Kind() string { return "begin_edit_saved_button" }
func (DeleteSavedButton) Kind() string    { return "delete_saved_button" }
func (ResolveByKey) Kind() string         { return "resolve_by_key" }
