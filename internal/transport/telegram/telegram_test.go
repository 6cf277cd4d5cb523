package telegram

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/debemdeboas/postkey/internal/buttons"
	"github.com/debemdeboas/postkey/internal/controller"
	"github.com/debemdeboas/postkey/internal/dispatch"
	"github.com/debemdeboas/postkey/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBot struct {
	mu        sync.Mutex
	messages  []*telego.SendMessageParams
	photos    []*telego.SendPhotoParams
	videos    []*telego.SendVideoParams
	inline    []*telego.AnswerInlineQueryParams
	callbacks []*telego.AnswerCallbackQueryParams
	updates   chan telego.Update

	callbackErr error
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan telego.Update, 16)}
}

func (f *fakeBot) UpdatesViaLongPolling(ctx context.Context, _ *telego.GetUpdatesParams, _ ...telego.LongPollingOption) (<-chan telego.Update, error) {
	return f.updates, nil
}

func (f *fakeBot) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, p)
	return &telego.Message{}, nil
}

func (f *fakeBot) SendPhoto(_ context.Context, p *telego.SendPhotoParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, p)
	return &telego.Message{}, nil
}

func (f *fakeBot) SendVideo(_ context.Context, p *telego.SendVideoParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, p)
	return &telego.Message{}, nil
}

func (f *fakeBot) AnswerInlineQuery(_ context.Context, p *telego.AnswerInlineQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inline = append(f.inline, p)
	return nil
}

func (f *fakeBot) AnswerCallbackQuery(_ context.Context, p *telego.AnswerCallbackQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, p)
	return f.callbackErr
}

type fakeHandler struct {
	mu      sync.Mutex
	events  []controller.Event
	effects []controller.Effect
	err     error
}

func (h *fakeHandler) Handle(_ context.Context, ev controller.Event) ([]controller.Effect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.effects, h.err
}

func TestCallbackCodec(t *testing.T) {
	const owner model.OwnerID = "42"

	events := []controller.Event{
		controller.StartNewPost{From: owner},
		controller.OpenPicker{From: owner},
		controller.PickerToggle{From: owner, ID: 17},
		controller.PickerApply{From: owner},
		controller.PickerClear{From: owner},
		controller.PickerBack{From: owner},
		controller.Done{From: owner},
		controller.Cancel{From: owner},
		controller.Help{From: owner},
		controller.ListTemplates{From: owner},
		controller.DeleteTemplate{From: owner, Key: "ABCD2345"},
		controller.ListSavedButtons{From: owner},
		controller.BeginNewSavedButton{From: owner},
		controller.BeginEditSavedButton{From: owner, ID: 9},
		controller.DeleteSavedButton{From: owner, ID: 1 << 40},
	}

	for _, ev := range events {
		data, ok := encodeCallback(ev)
		if !ok {
			t.Errorf("%s: expected to be encodable", ev.Kind())
			continue
		}
		if len(data) > maxCallbackData {
			t.Errorf("%s: callback data too long: %q", ev.Kind(), data)
		}

		got, err := decodeCallback(owner, data)
		if err != nil {
			t.Errorf("%s: decode failed: %v", ev.Kind(), err)
			continue
		}
		if got != ev {
			t.Errorf("%s: decoded %#v, want %#v", ev.Kind(), got, ev)
		}
	}

	if _, ok := encodeCallback(controller.TextSubmitted{From: owner, Text: "x"}); ok {
		t.Error("Expected text events to not be encodable")
	}
}

func TestDecodeCallbackRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "nope", "pt:abc", "bedit:", "bdel:1.5"} {
		if _, err := decodeCallback("1", data); !errors.Is(err, ErrUnknownCallback) {
			t.Errorf("decodeCallback(%q) = %v, want ErrUnknownCallback", data, err)
		}
	}
}

func TestCommandEvent(t *testing.T) {
	const owner model.OwnerID = "7"
	g := buttons.DefaultGrammar()

	tests := []struct {
		text string
		want controller.Event
	}{
		{"/start", controller.Help{From: owner}},
		{"/new", controller.StartNewPost{From: owner}},
		{"/new@postkey_bot", controller.StartNewPost{From: owner}},
		{"/list", controller.ListTemplates{From: owner}},
		{"/delete abcd2345", controller.DeleteTemplate{From: owner, Key: "abcd2345"}},
		{"/delete", controller.DeleteTemplate{From: owner}},
		{"/get ABCD2345", controller.ResolveByKey{From: owner, Key: "ABCD2345"}},
		{"/cancel", controller.Cancel{From: owner}},
		{"/done", controller.Done{From: owner}},
		{"/picker", controller.OpenPicker{From: owner}},
		{"/buttons", controller.ListSavedButtons{From: owner}},
		{"/addbutton", controller.BeginNewSavedButton{From: owner}},
		{"/addbutton Book - https://booking.com", controller.AddSavedButton{From: owner, Label: "Book", Target: "https://booking.com"}},
		{"/addbutton Book - booking.com", controller.AddSavedButton{From: owner, Label: "Book", Target: "booking.com"}},
		{"/whatever", controller.Help{From: owner}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := commandEvent(owner, g, tt.text)
			if !ok {
				t.Fatal("Expected a command")
			}
			if got != tt.want {
				t.Errorf("commandEvent(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}

	if _, ok := commandEvent(owner, g, "plain text"); ok {
		t.Error("Expected plain text to not be a command")
	}
}

func newTestChannel(t *testing.T, bot *fakeBot, h *fakeHandler, opts ...Option) *Channel {
	t.Helper()
	d := dispatch.New(context.Background(), 2, 8)
	t.Cleanup(func() { d.Close() })
	return New(bot, h, d, opts...)
}

func privateMessage(user int64, text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		From: &telego.User{ID: user},
		Chat: telego.Chat{ID: user, Type: telego.ChatTypePrivate},
		Text: text,
	}}
}

func TestToIncoming(t *testing.T) {
	c := newTestChannel(t, newFakeBot(), &fakeHandler{})

	t.Run("text", func(t *testing.T) {
		in, ok := c.toIncoming(privateMessage(5, "hello"))
		if !ok {
			t.Fatal("Expected update to be accepted")
		}
		want := controller.TextSubmitted{From: "5", Text: "hello"}
		if in.event != want || in.chat != 5 {
			t.Errorf("Unexpected incoming: %+v", in)
		}
	})

	t.Run("largest photo with caption", func(t *testing.T) {
		u := telego.Update{Message: &telego.Message{
			From:    &telego.User{ID: 5},
			Chat:    telego.Chat{ID: 5, Type: telego.ChatTypePrivate},
			Caption: "caption",
			Photo: []telego.PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: 1280, Height: 960},
				{FileID: "medium", Width: 320, Height: 240},
			},
		}}
		in, _ := c.toIncoming(u)
		want := controller.TextSubmitted{
			From:  "5",
			Text:  "caption",
			Media: model.Media{Kind: model.MediaImage, Ref: "large"},
		}
		if diff := cmp.Diff(controller.Event(want), in.event); diff != "" {
			t.Errorf("event mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("video", func(t *testing.T) {
		u := telego.Update{Message: &telego.Message{
			From:  &telego.User{ID: 5},
			Chat:  telego.Chat{ID: 5, Type: telego.ChatTypePrivate},
			Video: &telego.Video{FileID: "vid"},
		}}
		in, _ := c.toIncoming(u)
		ev, ok := in.event.(controller.TextSubmitted)
		if !ok || ev.Media != (model.Media{Kind: model.MediaVideo, Ref: "vid"}) {
			t.Errorf("Unexpected event: %#v", in.event)
		}
	})

	t.Run("group chats are ignored", func(t *testing.T) {
		u := privateMessage(5, "hello")
		u.Message.Chat = telego.Chat{ID: -100, Type: "supergroup"}
		if _, ok := c.toIncoming(u); ok {
			t.Error("Expected group message to be ignored")
		}
	})

	t.Run("callback", func(t *testing.T) {
		u := telego.Update{CallbackQuery: &telego.CallbackQuery{
			ID:   "cb1",
			From: telego.User{ID: 5},
			Data: "pt:3",
		}}
		in, ok := c.toIncoming(u)
		if !ok || in.callbackQueryID != "cb1" {
			t.Fatalf("Unexpected incoming: %+v", in)
		}
		if in.event != (controller.PickerToggle{From: "5", ID: 3}) {
			t.Errorf("Unexpected event: %#v", in.event)
		}
	})

	t.Run("broken callback is still answered", func(t *testing.T) {
		u := telego.Update{CallbackQuery: &telego.CallbackQuery{ID: "cb2", From: telego.User{ID: 5}, Data: "??"}}
		in, ok := c.toIncoming(u)
		if !ok || in.event != nil || in.callbackQueryID != "cb2" {
			t.Errorf("Unexpected incoming: %+v", in)
		}
	})

	t.Run("inline query", func(t *testing.T) {
		u := telego.Update{InlineQuery: &telego.InlineQuery{ID: "iq", From: telego.User{ID: 5}, Query: "abcd2345"}}
		in, _ := c.toIncoming(u)
		if in.inlineQueryID != "iq" || in.event != (controller.ResolveByKey{From: "5", Key: "abcd2345"}) {
			t.Errorf("Unexpected incoming: %+v", in)
		}
	})
}

func TestLimiterPool(t *testing.T) {
	p := newLimiterPool(1, 2)

	if !p.Allow(1) || !p.Allow(1) {
		t.Fatal("Expected the burst to be allowed")
	}
	if p.Allow(1) {
		t.Error("Expected the third event in a row to be limited")
	}
	if !p.Allow(2) {
		t.Error("Expected another user to have its own bucket")
	}
}

func TestRenderMessagesAndPosts(t *testing.T) {
	bot := newFakeBot()
	c := newTestChannel(t, bot, &fakeHandler{})

	in := incoming{user: 5, chat: 5}
	c.render(context.Background(), in, []controller.Effect{
		controller.Preview{To: "5", Post: model.RenderablePost{
			Body:    "caption",
			Media:   model.Media{Kind: model.MediaImage, Ref: "photo"},
			Buttons: []model.Row{{{Label: "A", Target: "https://a.example"}, {Label: "B", Target: "https://b.example"}}},
		}},
		controller.Message{To: "5", Text: "pick", Actions: []controller.Action{
			{Label: "Done", Event: controller.Done{From: "5"}},
			{Label: "Toggle", Event: controller.PickerToggle{From: "5", ID: 4}},
		}},
		controller.KeyIssued{To: "5", Key: "ABCD2345", Title: "t"},
	})

	if len(bot.photos) != 1 {
		t.Fatalf("Expected one photo, got %d", len(bot.photos))
	}
	photo := bot.photos[0]
	if photo.Caption != "caption" || photo.Photo.FileID != "photo" {
		t.Errorf("Unexpected photo params: %+v", photo)
	}
	kb, ok := photo.ReplyMarkup.(*telego.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("Expected one row of two link buttons, got %#v", photo.ReplyMarkup)
	}
	if kb.InlineKeyboard[0][1].URL != "https://b.example" {
		t.Errorf("Unexpected button: %+v", kb.InlineKeyboard[0][1])
	}

	if len(bot.messages) != 2 {
		t.Fatalf("Expected two messages, got %d", len(bot.messages))
	}
	actions, ok := bot.messages[0].ReplyMarkup.(*telego.InlineKeyboardMarkup)
	if !ok || len(actions.InlineKeyboard) != 2 {
		t.Fatalf("Expected two action rows, got %#v", bot.messages[0].ReplyMarkup)
	}
	if got := actions.InlineKeyboard[1][0].CallbackData; got != "pt:4" {
		t.Errorf("Unexpected callback data %q", got)
	}
	if bot.messages[1].Text != msgKeyIssued("ABCD2345", "t") {
		t.Errorf("Unexpected key message %q", bot.messages[1].Text)
	}
}

func TestRenderInline(t *testing.T) {
	bot := newFakeBot()
	c := newTestChannel(t, bot, &fakeHandler{})

	in := incoming{user: 5, chat: 5, inlineQueryID: "iq"}
	c.render(context.Background(), in, []controller.Effect{
		controller.Resolved{To: "5", Posts: []model.RenderablePost{
			{Key: "AAAA2222", Title: "text", Body: "body"},
			{Key: "BBBB3333", Title: "image post", Media: model.Media{Kind: model.MediaImage, Ref: "p"}},
			{Key: "CCCC4444", Title: "video post", Media: model.Media{Kind: model.MediaVideo, Ref: "v"}},
		}},
	})

	if len(bot.inline) != 1 {
		t.Fatalf("Expected one inline answer, got %d", len(bot.inline))
	}
	results := bot.inline[0].Results
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if _, ok := results[0].(*telego.InlineQueryResultArticle); !ok {
		t.Errorf("Expected article, got %T", results[0])
	}
	if _, ok := results[1].(*telego.InlineQueryResultCachedPhoto); !ok {
		t.Errorf("Expected cached photo, got %T", results[1])
	}
	if _, ok := results[2].(*telego.InlineQueryResultCachedVideo); !ok {
		t.Errorf("Expected cached video, got %T", results[2])
	}
	if len(bot.messages) != 0 {
		t.Error("Expected inline lookups to not send chat messages")
	}

	c.render(context.Background(), in, nil)
	if bot.inline[1].Results == nil {
		t.Error("Expected an empty, non-nil result list")
	}
}

func TestProcessHandlerFailure(t *testing.T) {
	bot := newFakeBot()
	h := &fakeHandler{err: errors.New("store down")}
	c := newTestChannel(t, bot, h)

	c.process(context.Background(), incoming{user: 5, chat: 5, event: controller.Done{From: "5"}})
	if len(bot.messages) != 1 || bot.messages[0].Text != msgTryAgain {
		t.Errorf("Expected a try-again message, got %+v", bot.messages)
	}

	c.process(context.Background(), incoming{user: 5, chat: 5, inlineQueryID: "iq", event: controller.ResolveByKey{From: "5", Key: "X"}})
	if len(bot.inline) != 1 {
		t.Errorf("Expected the inline query to still be answered")
	}
}

func TestRunRoutesUpdates(t *testing.T) {
	bot := newFakeBot()
	h := &fakeHandler{effects: []controller.Effect{controller.Message{To: "5", Text: "ok"}}}
	d := dispatch.New(context.Background(), 2, 8)
	c := New(bot, h, d, WithAllowFrom([]string{"5", "not-a-number"}))

	bot.updates <- privateMessage(5, "/new")
	bot.updates <- privateMessage(6, "/new") // not allowed
	bot.updates <- telego.Update{CallbackQuery: &telego.CallbackQuery{ID: "cb", From: telego.User{ID: 5}, Data: "done"}}
	close(bot.updates)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	d.Close()

	want := []controller.Event{
		controller.StartNewPost{From: "5"},
		controller.Done{From: "5"},
	}
	if diff := cmp.Diff(want, h.events); diff != "" {
		t.Errorf("routed events mismatch (-want +got):\n%s", diff)
	}
	if len(bot.callbacks) != 1 {
		t.Errorf("Expected the callback query to be answered, got %d", len(bot.callbacks))
	}
	if len(bot.messages) != 2 {
		t.Errorf("Expected two replies, got %d", len(bot.messages))
	}
}

func TestRateLimitedCallbackIsAnswered(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	defer SetLogger(zerolog.Nop())

	bot := newFakeBot()
	bot.callbackErr = errors.New("query is too old")
	h := &fakeHandler{}
	d := dispatch.New(context.Background(), 1, 4)
	c := New(bot, h, d, WithRateLimit(1, 1))

	tap := telego.Update{CallbackQuery: &telego.CallbackQuery{ID: "cb", From: telego.User{ID: 5}, Data: "done"}}
	c.route(context.Background(), tap)
	c.route(context.Background(), tap)
	d.Close()

	if len(h.events) != 1 {
		t.Errorf("Expected only the first tap to reach the handler, got %d", len(h.events))
	}

	var slowDown int
	for _, p := range bot.callbacks {
		if p.Text == msgSlowDown {
			slowDown++
		}
	}
	if len(bot.callbacks) != 2 || slowDown != 1 {
		t.Errorf("Expected both taps answered and one slow-down notice, got %+v", bot.callbacks)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Failed to answer callback query")) {
		t.Errorf("Expected the failed answer to be logged, got %s", buf.String())
	}
}
