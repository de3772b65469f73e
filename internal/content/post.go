package content

import (
	"fmt"
	"strings"
	"time"
)

// Post is an article as listed on the posts page.
type Post struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	UpdatedAt string `json:"updatedAt"`
}

// block is one rich-text node from the CMS.
type block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type document struct {
	UID                 string `json:"uid"`
	Type                string `json:"type"`
	LastPublicationDate string `json:"last_publication_date"`
	Data                struct {
		Title   []block `json:"title"`
		Content []block `json:"content"`
	} `json:"data"`
}

var ptBRMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// publicationLayouts are the timestamp shapes the CMS is known to emit.
var publicationLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// asText flattens rich text into plain text, one space between blocks.
func asText(blocks []block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// excerpt is the text of the first paragraph block, or "".
func excerpt(blocks []block) string {
	for _, b := range blocks {
		if b.Type == "paragraph" {
			return b.Text
		}
	}
	return ""
}

// formatDate renders t as a long pt-BR date, e.g. "02 de abril de 2021".
func formatDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), ptBRMonths[t.Month()-1], t.Year())
}

func parsePublicationDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range publicationLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func toPost(doc document, loc *time.Location) Post {
	p := Post{
		Slug:    doc.UID,
		Title:   asText(doc.Data.Title),
		Excerpt: excerpt(doc.Data.Content),
	}

	if t, err := parsePublicationDate(doc.LastPublicationDate); err == nil {
		p.UpdatedAt = formatDate(t.In(loc))
	}

	return p
}
