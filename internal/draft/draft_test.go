package draft

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/debemdeboas/postkey/internal/model"
)

var (
	btnA = model.Button{Label: "A", Target: "https://a.example"}
	btnB = model.Button{Label: "B", Target: "https://b.example"}
)

func TestStateString(t *testing.T) {
	if AwaitingButtons.String() != "awaiting_buttons" {
		t.Errorf("Unexpected name %q", AwaitingButtons.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("Expected unknown for out of range state")
	}
	if !AwaitingNewButtonURL.InDialog() || AwaitingButtons.InDialog() {
		t.Error("Unexpected InDialog result")
	}
}

func TestStartAndContent(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := Start("1", now)

	if !s.Active() || s.State != AwaitingContent {
		t.Fatalf("Expected active session awaiting content, got %+v", s)
	}
	if NewIdle("1").Active() {
		t.Error("Expected idle session to be inactive")
	}

	other := Start("1", now)
	if other.ID == s.ID {
		t.Error("Expected each started session to get a fresh id")
	}

	s.SetContent("hello", model.Media{Kind: model.MediaImage, Ref: "p"})
	if s.State != AwaitingButtons || s.Body != "hello" {
		t.Errorf("Unexpected session after content: %+v", s)
	}
}

func TestToggleInvolution(t *testing.T) {
	s := Start("1", time.Now())
	s.Toggle(btnB)
	before := s.Clone()

	if !s.Toggle(btnA) {
		t.Fatal("Expected first toggle to select")
	}
	if s.Toggle(btnA) {
		t.Fatal("Expected second toggle to deselect")
	}

	if diff := cmp.Diff(before.Selection, s.Selection); diff != "" {
		t.Errorf("selection changed after double toggle (-want +got):\n%s", diff)
	}
}

func TestToggleDoesNotAliasClones(t *testing.T) {
	s := Start("1", time.Now())
	s.Toggle(btnA)
	s.Toggle(btnB)

	snapshot := s.Clone()
	s.Toggle(btnA)

	if len(snapshot.Selection) != 2 || snapshot.Selection[0] != btnA {
		t.Errorf("Expected snapshot to be untouched, got %+v", snapshot.Selection)
	}
}

func TestApplySelection(t *testing.T) {
	s := Start("1", time.Now())
	s.SetContent("body", model.Media{})
	s.AppendRows([]model.Row{{{Label: "X", Target: "https://x.example"}}})
	s.Toggle(btnA)
	s.Toggle(btnB)

	moved := s.ApplySelection()
	if len(moved) != 2 {
		t.Fatalf("Expected 2 moved buttons, got %d", len(moved))
	}
	if len(s.Selection) != 0 {
		t.Error("Expected selection to be empty after apply")
	}
	for _, b := range moved {
		if !s.IsCommitted(b) {
			t.Errorf("Expected %+v to be committed", b)
		}
	}

	want := []model.Row{
		{{Label: "X", Target: "https://x.example"}},
		{btnA},
		{btnB},
	}
	if diff := cmp.Diff(want, s.Committed); diff != "" {
		t.Errorf("committed rows mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendRowsPrunesSelection(t *testing.T) {
	s := Start("1", time.Now())
	s.Toggle(btnA)
	s.Toggle(btnB)

	s.AppendRows([]model.Row{{btnA, {Label: "Z", Target: "https://z.example"}}})

	if s.IsSelected(btnA) {
		t.Error("Expected committed button to leave the selection")
	}
	if !s.IsSelected(btnB) {
		t.Error("Expected unrelated selection to stay")
	}
}

func TestDialogResume(t *testing.T) {
	s := Start("1", time.Now())
	s.SetContent("body", model.Media{})

	s.BeginDialog(AwaitingNewButtonText, 0)
	s.PendingLabel = "Label"
	s.BeginDialog(AwaitingNewButtonURL, 0)

	if s.ResumeState != AwaitingButtons {
		t.Errorf("Expected resume state to survive dialog steps, got %v", s.ResumeState)
	}

	s.EndDialog()
	if s.State != AwaitingButtons || s.PendingLabel != "" || s.EditingID != 0 {
		t.Errorf("Unexpected session after dialog: %+v", s)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	t.Run("missing owner is idle", func(t *testing.T) {
		s := store.Get("nobody")
		if s == nil || s.State != Idle || s.Active() {
			t.Errorf("Expected idle session, got %+v", s)
		}
	})

	t.Run("put replaces wholesale", func(t *testing.T) {
		s := Start("1", time.Now())
		store.Put(s)

		got := store.Get("1")
		got.Body = "mutated without put"
		if store.Get("1").Body != "" {
			t.Error("Expected stored session to be isolated from returned copies")
		}

		s.Body = "mutated after put"
		if store.Get("1").Body != "" {
			t.Error("Expected stored session to be isolated from the put value")
		}

		second := Start("1", time.Now())
		store.Put(second)
		if store.Get("1").ID != second.ID {
			t.Error("Expected new session to replace the previous one")
		}
		if store.Len() != 1 {
			t.Errorf("Expected one session, got %d", store.Len())
		}
	})

	t.Run("idle put removes", func(t *testing.T) {
		store.Put(NewIdle("1"))
		if store.Len() != 0 {
			t.Errorf("Expected no sessions, got %d", store.Len())
		}
	})

	t.Run("idle dialog is kept", func(t *testing.T) {
		s := NewIdle("2")
		s.BeginDialog(AwaitingNewButtonText, 0)
		store.Put(s)
		if store.Get("2").State != AwaitingNewButtonText {
			t.Error("Expected dialog state to be stored without an active post")
		}
		store.Delete("2")
		if store.Len() != 0 {
			t.Error("Expected delete to remove the session")
		}
	})
}
