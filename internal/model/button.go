package model

import "time"

// Button is a labeled link. Target is always an allow-listed URL.
type Button struct {
	Label  string `json:"text"`
	Target string `json:"url"`
}

// Row is a group of buttons rendered side by side.
type Row []Button

// CloneRows deep-copies rows so callers can hand them out without sharing
// backing arrays.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = append(Row(nil), r...)
	}
	return out
}

// ContainsButton reports whether b appears anywhere in rows.
func ContainsButton(rows []Row, b Button) bool {
	for _, r := range rows {
		for _, have := range r {
			if have == b {
				return true
			}
		}
	}
	return false
}

// Flatten returns the buttons of rows in render order.
func Flatten(rows []Row) []Button {
	var out []Button
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

type SavedButtonID int64

// SavedButton is an entry of an owner's reusable button library.
type SavedButton struct {
	ID        SavedButtonID
	Owner     OwnerID
	Label     string
	Target    string
	CreatedAt time.Time
}

func (s SavedButton) Button() Button {
	return Button{Label: s.Label, Target: s.Target}
}
