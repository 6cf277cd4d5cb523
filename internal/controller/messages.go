package controller

import (
	"fmt"
	"strings"

	"github.com/debemdeboas/postkey/internal/buttons"
	"github.com/debemdeboas/postkey/internal/model"
)

const (
	msgHelp = "Post composer\n\n" +
		"/new - start a new post\n" +
		"/list - your posts\n" +
		"/delete KEY - delete a post\n" +
		"/buttons - your saved buttons\n" +
		"/cancel - drop the current draft\n\n" +
		"After /new send the post text, a photo or a video. Then send buttons, one row per line:\n" +
		"Book - https://booking.com | Reviews - https://t.me/reviews\n\n" +
		"Press Done to get a key. In any chat type @bot KEY to publish the post."

	msgAskContent         = "Send the post: text, a photo or a video with a caption."
	msgEmptyContent       = "That message has no text or media. Send the post text, a photo or a video."
	msgAskButtons         = "Send buttons as \"Label - https://link\", one row per line, \"|\" between buttons of a row. Or pick saved buttons."
	msgBadButtons         = "No buttons recognized. Use \"Label - https://link\", one row per line, \"|\" between buttons of a row."
	msgButtonsNeedText    = "Buttons are sent as text."
	msgIdle               = "Nothing in progress. Use /new to start a post."
	msgCancelled          = "Draft discarded."
	msgPickerOnlyInDraft  = "Saved buttons can be added once the post content is in."
	msgNoSavedButtons     = "You have no saved buttons yet."
	msgPickerTitle        = "Tap saved buttons to select them, then Apply."
	msgNothingSelected    = "Nothing selected."
	msgNoTemplates        = "You have no saved posts yet."
	msgSavedButtonGone    = "Saved button not found."
	msgSavedButtonAdded   = "Saved button added."
	msgSavedButtonExists  = "That button is already saved."
	msgSavedButtonUpdated = "Saved button updated."
	msgSavedButtonDeleted = "Saved button deleted."
	msgAskNewLabel        = "Send the label of the new button."
	msgEmptyLabel         = "The label cannot be empty."
	msgDeleteUsage        = "Tell me which post: /delete KEY"
)

const (
	labelNewPost   = "New post"
	labelHelp      = "Help"
	labelPicker    = "Saved buttons"
	labelDone      = "Done"
	labelCancel    = "Cancel"
	labelApply     = "Apply"
	labelClear     = "Clear"
	labelBack      = "Back"
	labelNewButton = "New button"
	labelMyPosts   = "My posts"
	markSelected   = "[x] "
	markCommitted  = "[+] "
	markDelete     = "Delete "
	markEdit       = "Edit "
)

func msgButtonsAdded(n int) string {
	if n == 1 {
		return "Added 1 button. Send more, pick saved ones or press Done."
	}
	return fmt.Sprintf("Added %d buttons. Send more, pick saved ones or press Done.", n)
}

func msgBadTarget(g buttons.Grammar) string {
	allowed := append(append([]string(nil), g.Schemes...), g.ShortLinkPrefixes...)
	return "That link is not allowed. Links must start with " + strings.Join(allowed, ", ") + "."
}

func msgAlreadyCommitted(b model.Button) string {
	return fmt.Sprintf("%q is already on the post.", b.Label)
}

func msgAskNewTarget(label string) string {
	return fmt.Sprintf("Now send the link for %q.", label)
}

func msgAskEditLabel(sb *model.SavedButton) string {
	return fmt.Sprintf("Editing %q (%s). Send the new label.", sb.Label, sb.Target)
}

func msgTemplateDeleted(key model.TemplateKey) string {
	return fmt.Sprintf("Post %s deleted.", key)
}

func templateListText(summaries []model.TemplateSummary) string {
	var sb strings.Builder
	sb.WriteString("Your posts:\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "\n%s - %s", s.Key, s.Title)
	}
	return sb.String()
}

// savedButtonListText lists the library in grammar form, so any line can be
// pasted back as button text.
func savedButtonListText(saved []model.SavedButton) string {
	rows := make([]model.Row, 0, len(saved))
	for _, b := range saved {
		rows = append(rows, model.Row{b.Button()})
	}
	return "Your saved buttons:\n\n" + buttons.Render(rows)
}
