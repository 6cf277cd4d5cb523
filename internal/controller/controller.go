// Package controller routes owner events through the draft state machine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/postkey/internal/buttons"
	"github.com/debemdeboas/postkey/internal/draft"
	"github.com/debemdeboas/postkey/internal/metrics"
	"github.com/debemdeboas/postkey/internal/model"
	"github.com/debemdeboas/postkey/internal/picker"
	"github.com/debemdeboas/postkey/internal/publish"
	"github.com/debemdeboas/postkey/internal/repository"
)

// ErrInvalidEvent is returned for events without an owner or of an unknown type.
var ErrInvalidEvent = errors.New("invalid event")

var ctrlLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	ctrlLogger = l
}

const (
	DefaultTitleLength = 30
	DefaultListLimit   = 50
	DefaultRecentLimit = 10
)

type Controller struct {
	grammar   buttons.Grammar
	templates repository.TemplateRepository
	saved     repository.SavedButtonRepository
	sessions  draft.Store
	picker    *picker.Engine
	resolver  *publish.Resolver
	locks     *keyedMutex

	titleLength int
	listLimit   int
	recentLimit int
	now         func() time.Time
}

type Option func(*Controller)

func WithGrammar(g buttons.Grammar) Option {
	return func(c *Controller) { c.grammar = g }
}

func WithSessionStore(s draft.Store) Option {
	return func(c *Controller) { c.sessions = s }
}

func WithTitleLength(n int) Option {
	return func(c *Controller) { c.titleLength = n }
}

// WithListLimit caps the template listing. Zero means no cap.
func WithListLimit(n int) Option {
	return func(c *Controller) { c.listLimit = n }
}

// WithRecentLimit caps the fallback menu of an empty lookup.
func WithRecentLimit(n int) Option {
	return func(c *Controller) { c.recentLimit = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(templates repository.TemplateRepository, saved repository.SavedButtonRepository, opts ...Option) *Controller {
	c := &Controller{
		grammar:   buttons.DefaultGrammar(),
		templates: templates,
		saved:     saved,
		sessions:  draft.NewMemoryStore(),
		locks:     newKeyedMutex(),

		titleLength: DefaultTitleLength,
		listLimit:   DefaultListLimit,
		recentLimit: DefaultRecentLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.picker = picker.New(saved, c.sessions)
	c.resolver = publish.NewResolver(templates, c.recentLimit)
	return c
}

// Session returns a copy of the owner's draft.
func (c *Controller) Session(owner model.OwnerID) *draft.Session {
	return c.sessions.Get(owner)
}

// Handle applies ev and returns what should be shown. Validation problems and
// unknown keys come back as effects; an error means the store failed and the
// draft was left as it was.
func (c *Controller) Handle(ctx context.Context, ev Event) ([]Effect, error) {
	if ev == nil || ev.Owner() == "" {
		return nil, ErrInvalidEvent
	}
	owner := ev.Owner()

	// Lookups touch no draft, so they skip the owner lock.
	if e, ok := ev.(ResolveByKey); ok {
		metrics.Events.WithLabelValues(ev.Kind()).Inc()
		return c.resolve(ctx, e)
	}

	unlock := c.locks.Lock(owner)
	defer unlock()

	s := c.sessions.Get(owner)
	log := ctrlLogger.With().
		Str("owner", string(owner)).
		Str("event", ev.Kind()).
		Stringer("state", s.State).
		Logger()
	log.Debug().Msg("Handling event")

	var (
		effects []Effect
		err     error
	)
	switch e := ev.(type) {
	case StartNewPost:
		effects = c.start(owner)
	case TextSubmitted:
		effects, err = c.text(ctx, s, e.Text, e.Media)
	case ContentSubmitted:
		if s.State != draft.AwaitingContent {
			effects = c.hint(s)
			break
		}
		effects = c.content(s, e.Text, e.Media)
	case ButtonTextSubmitted:
		if s.State != draft.AwaitingButtons {
			effects = c.hint(s)
			break
		}
		effects = c.buttonText(ctx, s, e.Text)
	case OpenPicker:
		effects, err = c.openPicker(ctx, s)
	case PickerToggle:
		effects, err = c.pickerToggle(ctx, s, e.ID)
	case PickerApply:
		effects, err = c.pickerApply(ctx, s)
	case PickerClear:
		effects, err = c.pickerClear(ctx, s)
	case PickerBack:
		effects = c.pickerBack(s)
	case Done:
		effects, err = c.done(ctx, s)
	case Cancel:
		effects = c.cancel(s)
	case Help:
		effects = []Effect{Message{To: owner, Text: msgHelp, Actions: []Action{
			{Label: labelNewPost, Event: StartNewPost{From: owner}},
			{Label: labelMyPosts, Event: ListTemplates{From: owner}},
			{Label: labelPicker, Event: ListSavedButtons{From: owner}},
		}}}
	case ListTemplates:
		effects, err = c.listTemplates(ctx, owner)
	case DeleteTemplate:
		effects, err = c.deleteTemplate(ctx, owner, e.Key)
	case ListSavedButtons:
		effects, err = c.listSavedButtons(ctx, owner)
	case AddSavedButton:
		effects, err = c.addSavedButton(ctx, owner, e.Label, e.Target)
	case BeginNewSavedButton:
		effects = c.beginNewSavedButton(s)
	case EditSavedButton:
		effects, err = c.editSavedButton(ctx, owner, e.ID, e.Label, e.Target)
	case BeginEditSavedButton:
		effects, err = c.beginEditSavedButton(ctx, s, e.ID)
	case DeleteSavedButton:
		effects, err = c.deleteSavedButton(ctx, owner, e.ID)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidEvent, ev)
	}

	metrics.Events.WithLabelValues(ev.Kind()).Inc()
	if err != nil {
		log.Error().Err(err).Msg("Event failed")
		return nil, err
	}
	return effects, nil
}

func (c *Controller) put(s *draft.Session) {
	s.UpdatedAt = c.now()
	c.sessions.Put(s)
}

func (c *Controller) rejected(owner model.OwnerID, text string, actions ...Action) []Effect {
	metrics.ValidationErrors.Inc()
	return []Effect{Message{To: owner, Text: text, Actions: actions}}
}

func draftActions(owner model.OwnerID) []Action {
	return []Action{
		{Label: labelPicker, Event: OpenPicker{From: owner}},
		{Label: labelDone, Event: Done{From: owner}},
		{Label: labelCancel, Event: Cancel{From: owner}},
	}
}

func (c *Controller) start(owner model.OwnerID) []Effect {
	prev := c.sessions.Get(owner)
	s := draft.Start(owner, c.now())
	c.put(s)

	ev := ctrlLogger.Info().Str("owner", string(owner)).Str("session_id", s.ID.String())
	if prev.Active() {
		ev = ev.Str("discarded_session_id", prev.ID.String())
	}
	ev.Msg("Draft started")

	return []Effect{Message{To: owner, Text: msgAskContent, Actions: []Action{
		{Label: labelCancel, Event: Cancel{From: owner}},
	}}}
}

// text routes free input by state.
func (c *Controller) text(ctx context.Context, s *draft.Session, text string, media model.Media) ([]Effect, error) {
	switch s.State {
	case draft.AwaitingContent:
		return c.content(s, text, media), nil
	case draft.AwaitingButtons:
		if strings.TrimSpace(text) == "" {
			return c.rejected(s.Owner, msgButtonsNeedText, draftActions(s.Owner)...), nil
		}
		return c.buttonText(ctx, s, text), nil
	case draft.AwaitingNewButtonText, draft.AwaitingSavedButtonEditText:
		return c.dialogLabel(s, text), nil
	case draft.AwaitingNewButtonURL:
		return c.newButtonTarget(ctx, s, text)
	case draft.AwaitingSavedButtonEditURL:
		return c.editButtonTarget(ctx, s, text)
	}
	return c.hint(s), nil
}

// hint re-prompts for whatever the current state expects.
func (c *Controller) hint(s *draft.Session) []Effect {
	owner := s.Owner
	switch s.State {
	case draft.AwaitingContent:
		return []Effect{Message{To: owner, Text: msgAskContent, Actions: []Action{{Label: labelCancel, Event: Cancel{From: owner}}}}}
	case draft.AwaitingButtons:
		return []Effect{Message{To: owner, Text: msgAskButtons, Actions: draftActions(owner)}}
	case draft.AwaitingNewButtonText, draft.AwaitingSavedButtonEditText:
		return []Effect{Message{To: owner, Text: msgAskNewLabel}}
	case draft.AwaitingNewButtonURL, draft.AwaitingSavedButtonEditURL:
		return []Effect{Message{To: owner, Text: msgAskNewTarget(s.PendingLabel)}}
	}
	return []Effect{Message{To: owner, Text: msgIdle, Actions: []Action{
		{Label: labelNewPost, Event: StartNewPost{From: owner}},
		{Label: labelHelp, Event: Help{From: owner}},
	}}}
}

func (c *Controller) content(s *draft.Session, text string, media model.Media) []Effect {
	if media.IsZero() {
		media = model.Media{}
	}
	if strings.TrimSpace(text) == "" && media.IsZero() {
		return c.rejected(s.Owner, msgEmptyContent, Action{Label: labelCancel, Event: Cancel{From: s.Owner}})
	}

	s.SetContent(text, media)
	c.put(s)

	ctrlLogger.Debug().
		Str("owner", string(s.Owner)).
		Str("session_id", s.ID.String()).
		Str("media_kind", string(media.Kind)).
		Msg("Draft content captured")

	return []Effect{
		Preview{To: s.Owner, Post: s.Renderable()},
		Message{To: s.Owner, Text: msgAskButtons, Actions: draftActions(s.Owner)},
	}
}

func (c *Controller) buttonText(ctx context.Context, s *draft.Session, text string) []Effect {
	rows := c.grammar.Parse(text)
	if len(rows) == 0 {
		return c.rejected(s.Owner, msgBadButtons, draftActions(s.Owner)...)
	}

	s.AppendRows(rows)
	c.put(s)

	parsed := model.Flatten(rows)
	if n, err := c.saved.UpsertAll(ctx, s.Owner, parsed); err != nil {
		// The draft already has the rows; growing the library is best effort.
		ctrlLogger.Warn().Err(err).Str("owner", string(s.Owner)).Msg("Failed to save parsed buttons")
	} else if n > 0 {
		ctrlLogger.Debug().Str("owner", string(s.Owner)).Int("saved", n).Msg("Parsed buttons saved")
	}

	return []Effect{
		Preview{To: s.Owner, Post: s.Renderable()},
		Message{To: s.Owner, Text: msgButtonsAdded(len(parsed)), Actions: draftActions(s.Owner)},
	}
}

func (c *Controller) pickerView(ctx context.Context, owner model.OwnerID) ([]Effect, error) {
	entries, err := c.picker.View(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []Effect{Message{To: owner, Text: msgNoSavedButtons, Actions: []Action{
			{Label: labelNewButton, Event: BeginNewSavedButton{From: owner}},
			{Label: labelBack, Event: PickerBack{From: owner}},
		}}}, nil
	}

	actions := make([]Action, 0, len(entries)+3)
	for _, e := range entries {
		label := e.Button.Label
		switch {
		case e.Committed:
			label = markCommitted + label
		case e.Selected:
			label = markSelected + label
		}
		actions = append(actions, Action{Label: label, Event: PickerToggle{From: owner, ID: e.ID}})
	}
	actions = append(actions,
		Action{Label: labelApply, Event: PickerApply{From: owner}},
		Action{Label: labelClear, Event: PickerClear{From: owner}},
		Action{Label: labelBack, Event: PickerBack{From: owner}},
	)

	return []Effect{Message{To: owner, Text: msgPickerTitle, Actions: actions}}, nil
}

func (c *Controller) openPicker(ctx context.Context, s *draft.Session) ([]Effect, error) {
	if s.State != draft.AwaitingButtons {
		return []Effect{Message{To: s.Owner, Text: msgPickerOnlyInDraft}}, nil
	}
	return c.pickerView(ctx, s.Owner)
}

func (c *Controller) pickerToggle(ctx context.Context, s *draft.Session, id model.SavedButtonID) ([]Effect, error) {
	if s.State != draft.AwaitingButtons {
		return []Effect{Message{To: s.Owner, Text: msgPickerOnlyInDraft}}, nil
	}

	res, err := c.picker.Toggle(ctx, s.Owner, id)
	if err != nil {
		return nil, err
	}

	var effects []Effect
	switch res.Outcome {
	case picker.NotFound:
		effects = append(effects, Message{To: s.Owner, Text: msgSavedButtonGone})
	case picker.AlreadyCommitted:
		effects = append(effects, Message{To: s.Owner, Text: msgAlreadyCommitted(res.Button)})
	}

	view, err := c.pickerView(ctx, s.Owner)
	if err != nil {
		return nil, err
	}
	return append(effects, view...), nil
}

func (c *Controller) pickerApply(ctx context.Context, s *draft.Session) ([]Effect, error) {
	if s.State != draft.AwaitingButtons {
		return []Effect{Message{To: s.Owner, Text: msgPickerOnlyInDraft}}, nil
	}

	res := c.picker.Apply(s.Owner)
	if res.Outcome == picker.NothingSelected {
		view, err := c.pickerView(ctx, s.Owner)
		if err != nil {
			return nil, err
		}
		return append([]Effect{Message{To: s.Owner, Text: msgNothingSelected}}, view...), nil
	}

	return []Effect{
		Preview{To: s.Owner, Post: res.Session.Renderable()},
		Message{To: s.Owner, Text: msgButtonsAdded(len(res.Moved)), Actions: draftActions(s.Owner)},
	}, nil
}

func (c *Controller) pickerClear(ctx context.Context, s *draft.Session) ([]Effect, error) {
	if s.State != draft.AwaitingButtons {
		return []Effect{Message{To: s.Owner, Text: msgPickerOnlyInDraft}}, nil
	}
	c.picker.Clear(s.Owner)
	return c.pickerView(ctx, s.Owner)
}

// pickerBack closes the picker and drops the unapplied selection.
func (c *Controller) pickerBack(s *draft.Session) []Effect {
	c.picker.Clear(s.Owner)
	return c.hint(s)
}

func (c *Controller) done(ctx context.Context, s *draft.Session) ([]Effect, error) {
	if s.State != draft.AwaitingButtons {
		return c.hint(s), nil
	}

	title := model.DeriveTitle(s.Body, s.Media, c.titleLength)
	key, err := c.templates.Commit(ctx, s.Owner, title, s.Body, s.Committed, s.Media)
	if err != nil {
		return nil, fmt.Errorf("error committing draft: %w", err)
	}

	c.sessions.Delete(s.Owner)

	ctrlLogger.Info().
		Str("owner", string(s.Owner)).
		Str("session_id", s.ID.String()).
		Str("key", string(key)).
		Int("unapplied", len(s.Selection)).
		Msg("Draft committed")

	return []Effect{KeyIssued{To: s.Owner, Key: key, Title: title}}, nil
}

// cancel resets to Idle from any state.
func (c *Controller) cancel(s *draft.Session) []Effect {
	c.sessions.Delete(s.Owner)
	if s.Active() || s.State != draft.Idle {
		ctrlLogger.Info().
			Str("owner", string(s.Owner)).
			Str("session_id", s.ID.String()).
			Stringer("state", s.State).
			Msg("Draft cancelled")
	}
	return []Effect{Message{To: s.Owner, Text: msgCancelled, Actions: []Action{
		{Label: labelNewPost, Event: StartNewPost{From: s.Owner}},
	}}}
}

func (c *Controller) listTemplates(ctx context.Context, owner model.OwnerID) ([]Effect, error) {
	summaries, err := c.templates.ListByOwner(ctx, owner, c.listLimit)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return []Effect{Message{To: owner, Text: msgNoTemplates, Actions: []Action{
			{Label: labelNewPost, Event: StartNewPost{From: owner}},
		}}}, nil
	}

	actions := make([]Action, 0, len(summaries))
	for _, s := range summaries {
		actions = append(actions, Action{
			Label: markDelete + string(s.Key),
			Event: DeleteTemplate{From: owner, Key: s.Key},
		})
	}
	return []Effect{Message{To: owner, Text: templateListText(summaries), Actions: actions}}, nil
}

func (c *Controller) deleteTemplate(ctx context.Context, owner model.OwnerID, raw model.TemplateKey) ([]Effect, error) {
	key := repository.NormalizeKey(string(raw))
	if key == "" {
		return c.rejected(owner, msgDeleteUsage), nil
	}

	ok, err := c.templates.Delete(ctx, key, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Effect{NotFound{To: owner, Key: key}}, nil
	}
	return []Effect{Message{To: owner, Text: msgTemplateDeleted(key)}}, nil
}

func (c *Controller) listSavedButtons(ctx context.Context, owner model.OwnerID) ([]Effect, error) {
	saved, err := c.saved.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	newButton := Action{Label: labelNewButton, Event: BeginNewSavedButton{From: owner}}
	if len(saved) == 0 {
		return []Effect{Message{To: owner, Text: msgNoSavedButtons, Actions: []Action{newButton}}}, nil
	}

	actions := make([]Action, 0, 2*len(saved)+1)
	for _, sb := range saved {
		actions = append(actions,
			Action{Label: markEdit + sb.Label, Event: BeginEditSavedButton{From: owner, ID: sb.ID}},
			Action{Label: markDelete + sb.Label, Event: DeleteSavedButton{From: owner, ID: sb.ID}},
		)
	}
	actions = append(actions, newButton)

	return []Effect{Message{To: owner, Text: savedButtonListText(saved), Actions: actions}}, nil
}

func (c *Controller) addSavedButton(ctx context.Context, owner model.OwnerID, label, target string) ([]Effect, error) {
	if strings.TrimSpace(label) == "" {
		return c.rejected(owner, msgEmptyLabel), nil
	}
	b, ok := c.grammar.Validate(label, target)
	if !ok {
		return c.rejected(owner, msgBadTarget(c.grammar)), nil
	}

	inserted, err := c.saved.Upsert(ctx, owner, b.Label, b.Target)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return []Effect{Message{To: owner, Text: msgSavedButtonExists}}, nil
	}
	return []Effect{Message{To: owner, Text: msgSavedButtonAdded}}, nil
}

func (c *Controller) editSavedButton(ctx context.Context, owner model.OwnerID, id model.SavedButtonID, label, target string) ([]Effect, error) {
	if strings.TrimSpace(label) == "" {
		return c.rejected(owner, msgEmptyLabel), nil
	}
	b, ok := c.grammar.Validate(label, target)
	if !ok {
		return c.rejected(owner, msgBadTarget(c.grammar)), nil
	}

	updated, err := c.saved.Update(ctx, id, owner, b.Label, b.Target)
	if errors.Is(err, repository.ErrDuplicate) {
		return []Effect{Message{To: owner, Text: msgSavedButtonExists}}, nil
	}
	if err != nil {
		return nil, err
	}
	if !updated {
		return []Effect{Message{To: owner, Text: msgSavedButtonGone}}, nil
	}
	return []Effect{Message{To: owner, Text: msgSavedButtonUpdated}}, nil
}

func (c *Controller) deleteSavedButton(ctx context.Context, owner model.OwnerID, id model.SavedButtonID) ([]Effect, error) {
	deleted, err := c.saved.Delete(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return []Effect{Message{To: owner, Text: msgSavedButtonGone}}, nil
	}
	return []Effect{Message{To: owner, Text: msgSavedButtonDeleted}}, nil
}

func (c *Controller) beginNewSavedButton(s *draft.Session) []Effect {
	s.BeginDialog(draft.AwaitingNewButtonText, 0)
	c.put(s)
	return []Effect{Message{To: s.Owner, Text: msgAskNewLabel, Actions: []Action{
		{Label: labelCancel, Event: Cancel{From: s.Owner}},
	}}}
}

func (c *Controller) beginEditSavedButton(ctx context.Context, s *draft.Session, id model.SavedButtonID) ([]Effect, error) {
	sb, err := c.saved.Get(ctx, id, s.Owner)
	if errors.Is(err, repository.ErrNotFound) {
		return []Effect{Message{To: s.Owner, Text: msgSavedButtonGone}}, nil
	}
	if err != nil {
		return nil, err
	}

	s.BeginDialog(draft.AwaitingSavedButtonEditText, id)
	c.put(s)
	return []Effect{Message{To: s.Owner, Text: msgAskEditLabel(sb), Actions: []Action{
		{Label: labelCancel, Event: Cancel{From: s.Owner}},
	}}}, nil
}

// dialogLabel takes the label step of either saved-button dialog.
func (c *Controller) dialogLabel(s *draft.Session, text string) []Effect {
	label := strings.TrimSpace(text)
	if label == "" {
		return c.rejected(s.Owner, msgEmptyLabel)
	}

	s.PendingLabel = label
	if s.State == draft.AwaitingSavedButtonEditText {
		s.State = draft.AwaitingSavedButtonEditURL
	} else {
		s.State = draft.AwaitingNewButtonURL
	}
	c.put(s)

	return []Effect{Message{To: s.Owner, Text: msgAskNewTarget(label)}}
}

func (c *Controller) newButtonTarget(ctx context.Context, s *draft.Session, text string) ([]Effect, error) {
	b, ok := c.grammar.Validate(s.PendingLabel, text)
	if !ok {
		return c.rejected(s.Owner, msgBadTarget(c.grammar)), nil
	}

	inserted, err := c.saved.Upsert(ctx, s.Owner, b.Label, b.Target)
	if err != nil {
		return nil, err
	}

	s.EndDialog()
	c.put(s)

	reply := msgSavedButtonAdded
	if !inserted {
		reply = msgSavedButtonExists
	}
	return append([]Effect{Message{To: s.Owner, Text: reply}}, c.resume(s)...), nil
}

func (c *Controller) editButtonTarget(ctx context.Context, s *draft.Session, text string) ([]Effect, error) {
	b, ok := c.grammar.Validate(s.PendingLabel, text)
	if !ok {
		return c.rejected(s.Owner, msgBadTarget(c.grammar)), nil
	}

	var reply string
	updated, err := c.saved.Update(ctx, s.EditingID, s.Owner, b.Label, b.Target)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		reply = msgSavedButtonExists
	case err != nil:
		return nil, err
	case !updated:
		reply = msgSavedButtonGone
	default:
		reply = msgSavedButtonUpdated
	}

	ctrlLogger.Debug().
		Str("owner", string(s.Owner)).
		Int64("button_id", int64(s.EditingID)).
		Bool("updated", updated).
		Msg("Saved button edit finished")

	s.EndDialog()
	c.put(s)

	return append([]Effect{Message{To: s.Owner, Text: reply}}, c.resume(s)...), nil
}

// resume re-prompts after a dialog when a post is still in progress.
func (c *Controller) resume(s *draft.Session) []Effect {
	if !s.Active() {
		return nil
	}
	return c.hint(s)
}

func (c *Controller) resolve(ctx context.Context, e ResolveByKey) ([]Effect, error) {
	if strings.TrimSpace(e.Key) == "" {
		posts, err := c.resolver.Recent(ctx, e.From)
		if err != nil {
			return nil, err
		}
		return []Effect{Resolved{To: e.From, Posts: posts, Fallback: true}}, nil
	}

	post, err := c.resolver.Resolve(ctx, e.Key)
	if errors.Is(err, repository.ErrNotFound) {
		return []Effect{NotFound{To: e.From, Key: repository.NormalizeKey(e.Key)}}, nil
	}
	if err != nil {
		return nil, err
	}
	return []Effect{Resolved{To: e.From, Posts: []model.RenderablePost{post}}}, nil
}
