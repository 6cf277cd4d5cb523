// Package model defines the core data structures shared by the composer, the
// repositories and the transports.
package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

type OwnerID string

type TemplateKey string

type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media references an attachment held by the transport. Ref is opaque.
type Media struct {
	Kind MediaKind `json:"kind"`
	Ref  string    `json:"ref"`
}

func (m Media) IsZero() bool {
	return m.Kind == MediaNone || m.Ref == ""
}

// Template is a committed post. It is never modified after commit.
type Template struct {
	Key   TemplateKey
	Owner OwnerID

	Title   string
	Body    string
	Buttons []Row
	Media   Media

	CreatedAt time.Time
}

// TemplateSummary is the listing view of a template.
type TemplateSummary struct {
	Key       TemplateKey
	Title     string
	CreatedAt time.Time
}

func (t *Template) Summary() TemplateSummary {
	return TemplateSummary{Key: t.Key, Title: t.Title, CreatedAt: t.CreatedAt}
}

// RenderablePost is what gets published: the stored content, untouched.
type RenderablePost struct {
	Key     TemplateKey
	Title   string
	Body    string
	Buttons []Row
	Media   Media
}

func (t *Template) Renderable() RenderablePost {
	return RenderablePost{
		Key:     t.Key,
		Title:   t.Title,
		Body:    t.Body,
		Buttons: t.Buttons,
		Media:   t.Media,
	}
}

const titleEllipsis = "..."

// DeriveTitle builds the preview title of a post: the first maxRunes runes of
// the body, or a placeholder naming the media kind when the body is blank.
func DeriveTitle(body string, media Media, maxRunes int) string {
	body = strings.TrimSpace(body)
	if body == "" {
		switch media.Kind {
		case MediaImage:
			return "image post"
		case MediaVideo:
			return "video post"
		default:
			return "empty post"
		}
	}

	// Titles are single-line.
	body = strings.Join(strings.Fields(body), " ")

	if maxRunes <= 0 || utf8.RuneCountInString(body) <= maxRunes {
		return body
	}

	runes := []rune(body)
	return string(runes[:maxRunes]) + titleEllipsis
}
