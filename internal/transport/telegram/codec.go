package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/debemdeboas/postkey/internal/buttons"
	"github.com/debemdeboas/postkey/internal/controller"
	"github.com/debemdeboas/postkey/internal/model"
)

var ErrUnknownCallback = errors.New("unknown callback data")

// Callback data is "<op>" or "<op>:<arg>". The owner is never encoded, it is
// always the user who tapped.
const (
	opStartNewPost   = "new"
	opOpenPicker     = "pick"
	opPickerToggle   = "pt"
	opPickerApply    = "pa"
	opPickerClear    = "pc"
	opPickerBack     = "pb"
	opDone           = "done"
	opCancel         = "cancel"
	opHelp           = "help"
	opListTemplates  = "list"
	opDeleteTemplate = "del"
	opListButtons    = "btns"
	opNewButton      = "bnew"
	opEditButton     = "bedit"
	opDeleteButton   = "bdel"
)

// maxCallbackData is the Bot API limit in bytes.
const maxCallbackData = 64

// encodeCallback returns false for events that cannot ride on a button.
func encodeCallback(ev controller.Event) (string, bool) {
	var data string
	switch e := ev.(type) {
	case controller.StartNewPost:
		data = opStartNewPost
	case controller.OpenPicker:
		data = opOpenPicker
	case controller.PickerToggle:
		data = opPickerToggle + ":" + strconv.FormatInt(int64(e.ID), 10)
	case controller.PickerApply:
		data = opPickerApply
	case controller.PickerClear:
		data = opPickerClear
	case controller.PickerBack:
		data = opPickerBack
	case controller.Done:
		data = opDone
	case controller.Cancel:
		data = opCancel
	case controller.Help:
		data = opHelp
	case controller.ListTemplates:
		data = opListTemplates
	case controller.DeleteTemplate:
		data = opDeleteTemplate + ":" + string(e.Key)
	case controller.ListSavedButtons:
		data = opListButtons
	case controller.BeginNewSavedButton:
		data = opNewButton
	case controller.BeginEditSavedButton:
		data = opEditButton + ":" + strconv.FormatInt(int64(e.ID), 10)
	case controller.DeleteSavedButton:
		data = opDeleteButton + ":" + strconv.FormatInt(int64(e.ID), 10)
	default:
		return "", false
	}
	return data, len(data) <= maxCallbackData
}

func decodeCallback(owner model.OwnerID, data string) (controller.Event, error) {
	op, arg, _ := strings.Cut(data, ":")

	id := func() (model.SavedButtonID, error) {
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return model.SavedButtonID(n), nil
	}

	switch op {
	case opStartNewPost:
		return controller.StartNewPost{From: owner}, nil
	case opOpenPicker:
		return controller.OpenPicker{From: owner}, nil
	case opPickerToggle:
		n, err := id()
		if err != nil {
			return nil, err
		}
		return controller.PickerToggle{From: owner, ID: n}, nil
	case opPickerApply:
		return controller.PickerApply{From: owner}, nil
	case opPickerClear:
		return controller.PickerClear{From: owner}, nil
	case opPickerBack:
		return controller.PickerBack{From: owner}, nil
	case opDone:
		return controller.Done{From: owner}, nil
	case opCancel:
		return controller.Cancel{From: owner}, nil
	case opHelp:
		return controller.Help{From: owner}, nil
	case opListTemplates:
		return controller.ListTemplates{From: owner}, nil
	case opDeleteTemplate:
		return controller.DeleteTemplate{From: owner, Key: model.TemplateKey(arg)}, nil
	case opListButtons:
		return controller.ListSavedButtons{From: owner}, nil
	case opNewButton:
		return controller.BeginNewSavedButton{From: owner}, nil
	case opEditButton:
		n, err := id()
		if err != nil {
			return nil, err
		}
		return controller.BeginEditSavedButton{From: owner, ID: n}, nil
	case opDeleteButton:
		n, err := id()
		if err != nil {
			return nil, err
		}
		return controller.DeleteSavedButton{From: owner, ID: n}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
}

// commandEvent maps a slash command to an event. Unknown commands get help.
func commandEvent(owner model.OwnerID, grammar buttons.Grammar, text string) (controller.Event, bool) {
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}

	cmd, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd, _, _ = strings.Cut(cmd, "@") // "/new@postkey_bot"
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "/start", "/help":
		return controller.Help{From: owner}, true
	case "/new":
		return controller.StartNewPost{From: owner}, true
	case "/list":
		return controller.ListTemplates{From: owner}, true
	case "/delete":
		return controller.DeleteTemplate{From: owner, Key: model.TemplateKey(args)}, true
	case "/get":
		return controller.ResolveByKey{From: owner, Key: args}, true
	case "/cancel":
		return controller.Cancel{From: owner}, true
	case "/done":
		return controller.Done{From: owner}, true
	case "/picker":
		return controller.OpenPicker{From: owner}, true
	case "/buttons":
		return controller.ListSavedButtons{From: owner}, true
	case "/addbutton":
		if args == "" {
			return controller.BeginNewSavedButton{From: owner}, true
		}
		if rows := grammar.Parse(args); len(rows) > 0 {
			b := rows[0][0]
			return controller.AddSavedButton{From: owner, Label: b.Label, Target: b.Target}, true
		}
		label, target, _ := strings.Cut(args, " - ")
		return controller.AddSavedButton{From: owner, Label: label, Target: target}, true
	}
	return controller.Help{From: owner}, true
}
