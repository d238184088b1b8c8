package models

import "time"

// DocumentStatus is the ingestion state of a document as reported by the backend.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "PENDING"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentCompleted  DocumentStatus = "COMPLETED"
	DocumentFailed     DocumentStatus = "FAILED"
)

type PageContent struct {
	PageNumber int    `json:"page_number,omitempty"`
	Content    string `json:"content"`
}

type SectionCollection struct {
	Pages []PageContent `json:"pages"`
}

// Document is the read-only local copy of a server-side document. Translated
// holds the primary (translated/summarized) pages and Original the pages of
// the source language.
type Document struct {
	ID           ID                 `json:"id"`
	Title        string             `json:"title"`
	Status       DocumentStatus     `json:"status,omitempty"`
	Translated   *SectionCollection `json:"chinese_sections,omitempty"`
	Original     *SectionCollection `json:"english_sections,omitempty"`
	ThumbnailURL string             `json:"thumbnail_url,omitempty"`
	TaskID       ID                 `json:"task_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at,omitzero"`
}

// Pages returns the page collection for mode, or nil if the backend did not
// produce one.
func (d *Document) Pages(mode LanguageMode) []PageContent {
	if d == nil {
		return nil
	}
	var sec *SectionCollection
	if mode == ModeOriginal {
		sec = d.Original
	} else {
		sec = d.Translated
	}
	if sec == nil {
		return nil
	}
	return sec.Pages
}

// PageCount is the length of the longest page collection.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	n := len(d.Pages(ModeTranslated))
	if m := len(d.Pages(ModeOriginal)); m > n {
		n = m
	}
	return n
}

// LanguageMode selects which page collection the companion pane shows.
type LanguageMode int

const (
	ModeTranslated LanguageMode = iota
	ModeOriginal
)

func (m LanguageMode) String() string {
	if m == ModeOriginal {
		return "original"
	}
	return "translated"
}

func (m LanguageMode) Toggle() LanguageMode {
	if m == ModeOriginal {
		return ModeTranslated
	}
	return ModeOriginal
}

// ParseLanguageMode accepts "original" and "translated"; anything else is
// translated.
func ParseLanguageMode(s string) LanguageMode {
	if s == "original" {
		return ModeOriginal
	}
	return ModeTranslated
}

// ContentWindow is the derived previous/current/next text for one cursor
// position.
type ContentWindow struct {
	Page     int          `json:"page"`
	Mode     LanguageMode `json:"-"`
	Previous string       `json:"previous"`
	Current  string       `json:"current"`
	Next     string       `json:"next"`
}

// Collection is a listing of one project collection.
type Collection struct {
	ID              ID             `json:"id"`
	Name            string         `json:"name"`
	Documents       []Document     `json:"documents"`
	ProcessingTasks []IngestionJob `json:"processing_tasks"`
}

type Project struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// SessionContext is the per-installation navigation record.
type SessionContext struct {
	LastProjectID    string `json:"last_project_id,omitempty"`
	LastCollectionID string `json:"last_collection_id,omitempty"`
}

// Outline is the mind-map artifact generated from a document's text.
type Outline struct {
	Title string        `json:"title"`
	Nodes []OutlineNode `json:"nodes,omitempty"`
}

type OutlineNode struct {
	Title    string        `json:"title"`
	Page     int           `json:"page,omitempty"`
	Children []OutlineNode `json:"children,omitempty"`
}
