// Package buttons implements the text grammar used to describe link buttons:
//
//	Label - https://example.com
//	Left - https://a.example | Right - https://b.example
//
// Every line is a row, and "|" groups several buttons into the same row.
// Parsing never fails: segments that are not a valid label/target pair are
// dropped.
package buttons

import (
	"strings"

	"github.com/debemdeboas/postkey/internal/model"
)

const (
	rowSeparator   = "|"
	pairSeparator  = "-"
	shortLinkProto = "https://"
)

var DefaultSchemes = []string{"http://", "https://", "tg://"}

// Grammar holds the target allow list.
type Grammar struct {
	// Schemes are accepted target prefixes, kept verbatim.
	Schemes []string
	// ShortLinkPrefixes are bare domains (e.g. "bit.ly/") accepted without a
	// scheme; matching targets are prefixed with https://.
	ShortLinkPrefixes []string
}

func DefaultGrammar() Grammar {
	return Grammar{Schemes: DefaultSchemes}
}

// Parse runs the default grammar over text.
func Parse(text string) []model.Row {
	return DefaultGrammar().Parse(text)
}

// Parse turns text into button rows, preserving line and segment order. A
// line contributes a row only when it holds at least one valid button.
func (g Grammar) Parse(text string) []model.Row {
	var rows []model.Row

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var row model.Row
		for _, seg := range strings.Split(line, rowSeparator) {
			if b, ok := g.parseSegment(seg, pairSeparator); ok {
				row = append(row, b)
			}
		}

		// "Label | https://..." is a single button using the pipe as the pair
		// separator.
		if len(row) == 0 && strings.Contains(line, rowSeparator) {
			if b, ok := g.parseSegment(line, rowSeparator); ok {
				row = append(row, b)
			}
		}

		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	return rows
}

func (g Grammar) parseSegment(seg, sep string) (model.Button, bool) {
	seg = strings.TrimSpace(seg)
	if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
		seg = seg[1 : len(seg)-1]
	}

	label, target, found := strings.Cut(seg, sep)
	if !found {
		return model.Button{}, false
	}

	return g.Validate(label, target)
}

// Validate checks a single label/target pair and returns the normalized
// button.
func (g Grammar) Validate(label, target string) (model.Button, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return model.Button{}, false
	}

	target, ok := g.NormalizeTarget(target)
	if !ok {
		return model.Button{}, false
	}

	return model.Button{Label: label, Target: target}, true
}

// NormalizeTarget reports whether raw starts with an allowed scheme or
// short-link prefix and returns it in its stored form.
func (g Grammar) NormalizeTarget(raw string) (string, bool) {
	target := strings.TrimSpace(raw)
	if target == "" || strings.ContainsAny(target, " \t") {
		return "", false
	}

	lower := strings.ToLower(target)
	for _, scheme := range g.Schemes {
		if strings.HasPrefix(lower, strings.ToLower(scheme)) && len(target) > len(scheme) {
			return target, true
		}
	}

	for _, prefix := range g.ShortLinkPrefixes {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) && len(target) > len(prefix) {
			return shortLinkProto + target, true
		}
	}

	return "", false
}
