package telegram

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/debemdeboas/postkey/internal/controller"
	"github.com/debemdeboas/postkey/internal/model"
)

const (
	msgTryAgain     = "Something went wrong, please try again."
	msgEmptyPreview = "(no text)"
	msgSlowDown     = "Slow down"
	labelShare      = "Share"
	inlineCacheTime = 1
)

func msgKeyIssued(key model.TemplateKey, title string) string {
	return fmt.Sprintf("Saved %q.\nKey: %s\n\nType @bot %s in any chat to publish it.", title, key, key)
}

func msgNotFound(key model.TemplateKey) string {
	return fmt.Sprintf("Post %s not found.", key)
}

func tuCallbackText(queryID, text string) *telego.AnswerCallbackQueryParams {
	params := tu.CallbackQuery(queryID)
	if text != "" {
		params = params.WithText(text)
	}
	return params
}

func (c *Channel) render(ctx context.Context, in incoming, effects []controller.Effect) {
	if in.inlineQueryID != "" {
		c.renderInline(ctx, in.inlineQueryID, effects)
		return
	}

	for _, effect := range effects {
		switch e := effect.(type) {
		case controller.Preview:
			c.sendPost(ctx, in.chat, e.Post)
		case controller.Message:
			c.send(ctx, in.chat, e.Text, actionKeyboard(e.Actions))
		case controller.KeyIssued:
			kb := tu.InlineKeyboard(tu.InlineKeyboardRow(
				tu.InlineKeyboardButton(labelShare).WithSwitchInlineQuery(string(e.Key)),
			))
			c.send(ctx, in.chat, msgKeyIssued(e.Key, e.Title), kb)
		case controller.NotFound:
			c.send(ctx, in.chat, msgNotFound(e.Key), nil)
		case controller.Resolved:
			for _, post := range e.Posts {
				c.sendPost(ctx, in.chat, post)
			}
		default:
			tgLogger.Warn().Str("effect", fmt.Sprintf("%T", effect)).Msg("Unhandled effect")
		}
	}
}

func (c *Channel) send(ctx context.Context, chat int64, text string, kb *telego.InlineKeyboardMarkup) {
	params := tu.Message(tu.ID(chat), text)
	if kb != nil {
		params = params.WithReplyMarkup(kb)
	}
	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		tgLogger.Error().Err(err).Int64("chat", chat).Msg("Failed to send message")
	}
}

// sendPost shows a post the way it will look when published.
func (c *Channel) sendPost(ctx context.Context, chat int64, post model.RenderablePost) {
	kb := postKeyboard(post.Buttons)

	var err error
	switch {
	case post.Media.Kind == model.MediaImage && post.Media.Ref != "":
		params := tu.Photo(tu.ID(chat), tu.FileFromID(post.Media.Ref)).WithCaption(post.Body)
		if kb != nil {
			params = params.WithReplyMarkup(kb)
		}
		_, err = c.bot.SendPhoto(ctx, params)
	case post.Media.Kind == model.MediaVideo && post.Media.Ref != "":
		params := tu.Video(tu.ID(chat), tu.FileFromID(post.Media.Ref)).WithCaption(post.Body)
		if kb != nil {
			params = params.WithReplyMarkup(kb)
		}
		_, err = c.bot.SendVideo(ctx, params)
	default:
		text := post.Body
		if text == "" {
			text = msgEmptyPreview
		}
		params := tu.Message(tu.ID(chat), text)
		if kb != nil {
			params = params.WithReplyMarkup(kb)
		}
		_, err = c.bot.SendMessage(ctx, params)
	}
	if err != nil {
		tgLogger.Error().Err(err).Int64("chat", chat).Str("key", string(post.Key)).Msg("Failed to send post")
	}
}

func (c *Channel) renderInline(ctx context.Context, queryID string, effects []controller.Effect) {
	var results []telego.InlineQueryResult
	for _, effect := range effects {
		switch e := effect.(type) {
		case controller.Resolved:
			for _, post := range e.Posts {
				results = append(results, inlineResult(post))
			}
		case controller.NotFound:
			results = append(results, tu.ResultArticle(
				uuid.NewString(),
				msgNotFound(e.Key),
				tu.TextMessage(msgNotFound(e.Key)),
			))
		}
	}
	c.answerInline(ctx, queryID, results)
}

func (c *Channel) answerInline(ctx context.Context, queryID string, results []telego.InlineQueryResult) {
	params := tu.InlineQuery(queryID, results...).WithCacheTime(inlineCacheTime).WithIsPersonal()
	if params.Results == nil {
		params.Results = []telego.InlineQueryResult{}
	}
	if err := c.bot.AnswerInlineQuery(ctx, params); err != nil {
		tgLogger.Error().Err(err).Msg("Failed to answer inline query")
	}
}

func inlineResult(post model.RenderablePost) telego.InlineQueryResult {
	id := string(post.Key)
	kb := postKeyboard(post.Buttons)

	switch {
	case post.Media.Kind == model.MediaImage && post.Media.Ref != "":
		r := tu.ResultCachedPhoto(id, post.Media.Ref).WithTitle(post.Title).WithCaption(post.Body)
		if kb != nil {
			r = r.WithReplyMarkup(kb)
		}
		return r
	case post.Media.Kind == model.MediaVideo && post.Media.Ref != "":
		r := tu.ResultCachedVideo(id, post.Media.Ref, post.Title).WithCaption(post.Body)
		if kb != nil {
			r = r.WithReplyMarkup(kb)
		}
		return r
	}

	text := post.Body
	if text == "" {
		text = post.Title
	}
	r := tu.ResultArticle(id, post.Title, tu.TextMessage(text)).WithDescription(string(post.Key))
	if kb != nil {
		r = r.WithReplyMarkup(kb)
	}
	return r
}

// postKeyboard lays out link buttons row by row. Nil when there are none.
func postKeyboard(rows []model.Row) *telego.InlineKeyboardMarkup {
	var kbRows [][]telego.InlineKeyboardButton
	for _, row := range rows {
		var buttons []telego.InlineKeyboardButton
		for _, b := range row {
			buttons = append(buttons, tu.InlineKeyboardButton(b.Label).WithURL(b.Target))
		}
		if len(buttons) > 0 {
			kbRows = append(kbRows, tu.InlineKeyboardRow(buttons...))
		}
	}
	if len(kbRows) == 0 {
		return nil
	}
	return tu.InlineKeyboard(kbRows...)
}

// actionKeyboard puts each action on its own row.
func actionKeyboard(actions []controller.Action) *telego.InlineKeyboardMarkup {
	var kbRows [][]telego.InlineKeyboardButton
	for _, a := range actions {
		data, ok := encodeCallback(a.Event)
		if !ok {
			tgLogger.Warn().Str("event", a.Event.Kind()).Msg("Action cannot be encoded as callback data")
			continue
		}
		kbRows = append(kbRows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(a.Label).WithCallbackData(data)))
	}
	if len(kbRows) == 0 {
		return nil
	}
	return tu.InlineKeyboard(kbRows...)
}
