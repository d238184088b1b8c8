// Package content derives the previous/current/next text window that the
// companion and assistant panes display for the current page.
package content

import (
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/academic-reader/internal/cursor"
	"github.com/Epistemic-Technology/academic-reader/models"
)

const (
	PlaceholderTranslated = "No translation available"
	PlaceholderOriginal   = "No content available"
)

// Placeholder is the text shown for a page with no record in mode.
func Placeholder(mode models.LanguageMode) string {
	if mode == models.ModeOriginal {
		return PlaceholderOriginal
	}
	return PlaceholderTranslated
}

// DeriveWindow computes the window around page. Neighbour indices are clamped
// into the document, so the first page is its own predecessor and the last
// page its own successor. A nil document yields an empty window.
func DeriveWindow(doc *models.Document, page int, mode models.LanguageMode) models.ContentWindow {
	total := doc.PageCount()
	cur := cursor.Clamp(page, total)
	w := models.ContentWindow{Page: cur, Mode: mode}
	if doc == nil {
		return w
	}
	pages := doc.Pages(mode)
	w.Previous = pageText(pages, cursor.Clamp(cur-1, total), mode)
	w.Current = pageText(pages, cur, mode)
	w.Next = pageText(pages, cursor.Clamp(cur+1, total), mode)
	return w
}

func pageText(pages []models.PageContent, page int, mode models.LanguageMode) string {
	i := page - 1
	if i < 0 || i >= len(pages) || pages[i].Content == "" {
		return Placeholder(mode)
	}
	return pages[i].Content
}

// Nearby renders a window as plain text for the "copy nearby content" action.
func Nearby(w models.ContentWindow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d (%s)\n\n", w.Page, w.Mode)
	fmt.Fprintf(&b, "[previous]\n%s\n\n", w.Previous)
	fmt.Fprintf(&b, "[current]\n%s\n\n", w.Current)
	fmt.Fprintf(&b, "[next]\n%s\n", w.Next)
	return b.String()
}
