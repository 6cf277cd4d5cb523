// Package telegram connects the composer to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/postkey/internal/buttons"
	"github.com/debemdeboas/postkey/internal/controller"
	"github.com/debemdeboas/postkey/internal/dispatch"
	"github.com/debemdeboas/postkey/internal/model"
)

var tgLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	tgLogger = l
}

// botAPI is the subset of *telego.Bot the channel uses.
type botAPI interface {
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error)
	AnswerInlineQuery(ctx context.Context, params *telego.AnswerInlineQueryParams) error
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

type Handler interface {
	Handle(ctx context.Context, ev controller.Event) ([]controller.Effect, error)
}

type Channel struct {
	bot        botAPI
	handler    Handler
	dispatcher *dispatch.Dispatcher
	grammar    buttons.Grammar
	limiter    *limiterPool

	allowFrom   map[int64]bool
	pollTimeout int
}

type Option func(*Channel)

// WithAllowFrom restricts the bot to the given user ids. Empty means everyone.
func WithAllowFrom(ids []string) Option {
	return func(c *Channel) {
		for _, raw := range ids {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				tgLogger.Warn().Str("id", raw).Msg("Ignoring malformed allow_from entry")
				continue
			}
			c.allowFrom[id] = true
		}
	}
}

func WithRateLimit(eventsPerSecond float64, burst int) Option {
	return func(c *Channel) { c.limiter = newLimiterPool(eventsPerSecond, burst) }
}

func WithPollTimeout(seconds int) Option {
	return func(c *Channel) { c.pollTimeout = seconds }
}

func WithGrammar(g buttons.Grammar) Option {
	return func(c *Channel) { c.grammar = g }
}

func New(bot botAPI, handler Handler, dispatcher *dispatch.Dispatcher, opts ...Option) *Channel {
	c := &Channel{
		bot:         bot,
		handler:     handler,
		dispatcher:  dispatcher,
		grammar:     buttons.DefaultGrammar(),
		limiter:     newLimiterPool(defaultEventsPerSecond, defaultBurst),
		allowFrom:   make(map[int64]bool),
		pollTimeout: 30,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBot builds the API client with its logging routed through zerolog.
func NewBot(token string) (*telego.Bot, error) {
	bot, err := telego.NewBot(token, telego.WithLogger(telegoLogger{l: tgLogger}))
	if err != nil {
		return nil, fmt.Errorf("error creating bot: %w", err)
	}
	return bot, nil
}

// Run long-polls until ctx is done.
func (c *Channel) Run(ctx context.Context) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        c.pollTimeout,
		AllowedUpdates: []string{"message", "callback_query", "inline_query"},
	})
	if err != nil {
		return fmt.Errorf("error starting long polling: %w", err)
	}

	tgLogger.Info().Int("poll_timeout", c.pollTimeout).Msg("Polling for updates")

	for update := range updates {
		c.route(ctx, update)
	}
	return nil
}

// incoming is an update reduced to what the channel needs.
type incoming struct {
	user            int64
	chat            int64
	event           controller.Event
	callbackQueryID string
	inlineQueryID   string
}

func (c *Channel) route(ctx context.Context, update telego.Update) {
	in, ok := c.toIncoming(update)
	if !ok {
		return
	}

	log := tgLogger.With().Int64("user", in.user).Int("update_id", update.UpdateID).Logger()

	if len(c.allowFrom) > 0 && !c.allowFrom[in.user] {
		log.Debug().Msg("Ignoring update from user not in allow list")
		return
	}
	if !c.limiter.Allow(in.user) {
		log.Warn().Msg("Rate limited")
		if in.callbackQueryID != "" {
			if err := c.bot.AnswerCallbackQuery(ctx, tuCallbackText(in.callbackQueryID, msgSlowDown)); err != nil {
				log.Debug().Err(err).Msg("Failed to answer callback query")
			}
		}
		return
	}

	err := c.dispatcher.Submit(ctx, strconv.FormatInt(in.user, 10), func(jobCtx context.Context) {
		c.process(jobCtx, in)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Failed to queue update")
	}
}

func (c *Channel) process(ctx context.Context, in incoming) {
	if in.callbackQueryID != "" {
		if err := c.bot.AnswerCallbackQuery(ctx, tuCallbackText(in.callbackQueryID, "")); err != nil {
			tgLogger.Debug().Err(err).Msg("Failed to answer callback query")
		}
	}
	if in.event == nil {
		return
	}

	effects, err := c.handler.Handle(ctx, in.event)
	if err != nil {
		tgLogger.Error().Err(err).Int64("user", in.user).Str("event", in.event.Kind()).Msg("Event failed")
		if in.inlineQueryID != "" {
			c.answerInline(ctx, in.inlineQueryID, nil)
			return
		}
		c.send(ctx, in.chat, msgTryAgain, nil)
		return
	}

	c.render(ctx, in, effects)
}

// toIncoming maps an update to an event. Only private chats are served.
func (c *Channel) toIncoming(update telego.Update) (incoming, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat.Type != telego.ChatTypePrivate {
			return incoming{}, false
		}
		owner := ownerOf(msg.From.ID)
		in := incoming{user: msg.From.ID, chat: msg.Chat.ID}

		if ev, ok := commandEvent(owner, c.grammar, msg.Text); ok {
			in.event = ev
			return in, true
		}

		text := msg.Text
		if text == "" {
			text = msg.Caption
		}
		in.event = controller.TextSubmitted{From: owner, Text: text, Media: mediaOf(msg)}
		return in, true

	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		in := incoming{user: q.From.ID, chat: q.From.ID, callbackQueryID: q.ID}

		ev, err := decodeCallback(ownerOf(q.From.ID), q.Data)
		if err != nil {
			tgLogger.Debug().Err(err).Msg("Dropping callback")
			return in, true // still answered
		}
		in.event = ev
		return in, true

	case update.InlineQuery != nil:
		q := update.InlineQuery
		return incoming{
			user:          q.From.ID,
			chat:          q.From.ID,
			inlineQueryID: q.ID,
			event:         controller.ResolveByKey{From: ownerOf(q.From.ID), Key: q.Query},
		}, true
	}
	return incoming{}, false
}

func ownerOf(userID int64) model.OwnerID {
	return model.OwnerID(strconv.FormatInt(userID, 10))
}

// mediaOf picks the largest photo size, or the video.
func mediaOf(msg *telego.Message) model.Media {
	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		return model.Media{Kind: model.MediaImage, Ref: best.FileID}
	}
	if msg.Video != nil {
		return model.Media{Kind: model.MediaVideo, Ref: msg.Video.FileID}
	}
	return model.Media{}
}
