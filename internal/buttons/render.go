package buttons

import (
	"strings"

	"github.com/debemdeboas/postkey/internal/model"
)

// Render writes rows back in the canonical grammar form, so that
// Parse(Render(rows)) yields rows again.
func Render(rows []model.Row) string {
	lines := make([]string, 0, len(rows))

	for _, row := range rows {
		// A hyphenated label only survives the pipe form, which holds a
		// single button.
		if len(row) == 1 && strings.Contains(row[0].Label, pairSeparator) {
			lines = append(lines, segment(row[0], rowSeparator))
			continue
		}

		segs := make([]string, 0, len(row))
		for _, b := range row {
			segs = append(segs, segment(b, pairSeparator))
		}
		lines = append(lines, strings.Join(segs, " "+rowSeparator+" "))
	}

	return strings.Join(lines, "\n")
}

// segment brackets buttons whose own edges look like brackets, since Parse
// strips one wrapping pair.
func segment(b model.Button, sep string) string {
	s := b.Label + " " + sep + " " + b.Target
	if strings.HasPrefix(b.Label, "[") || strings.HasSuffix(b.Target, "]") {
		s = "[" + s + "]"
	}
	return s
}
